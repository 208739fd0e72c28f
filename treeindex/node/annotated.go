// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"

	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// Annotation is one entry of get_annotated_list's result: a node paired
// with the structural metadata a template renderer needs to draw nested
// <ul>/<li> markup from a flat pre-order sequence without looking ahead
// (spec section 4.F).
type Annotation struct {
	// Node is the node itself.
	Node *Node

	// Open is true when the node is the first child entered at its
	// level, i.e. a renderer must open a new nesting level before it.
	Open bool

	// Close lists the levels (deepest first) that end after this node --
	// the renderer closes one nesting level per entry, in order.
	Close []int

	// Level is the node's depth, 0-based and relative to the traversal's
	// starting point (the given parent, or the forest root).
	Level int
}

// GetAnnotatedList returns the pre-order traversal of parent and its
// descendants (or, if parent is nil, of the whole forest) as a flat list annotated
// with enough structural metadata to reconstruct the nesting without a
// second pass.
func (t *Tree) GetAnnotatedList(ctx context.Context, parent *Node) ([]Annotation, error) {
	nodes, err := t.GetTree(ctx, parent)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	base, err := baseLevel(ctx, parent)
	if err != nil {
		return nil, err
	}

	levels := make([]int, len(nodes))
	for i, n := range nodes {
		depth, err := n.GetDepth(ctx)
		if err != nil {
			return nil, err
		}
		levels[i] = depth - base
	}

	out := make([]Annotation, len(nodes))
	for i, n := range nodes {
		open := i == 0 || levels[i] > levels[i-1]

		nextLevel := -1
		if i+1 < len(nodes) {
			nextLevel = levels[i+1]
		}
		var closes []int
		for lvl := levels[i]; lvl > nextLevel; lvl-- {
			closes = append(closes, lvl)
		}

		out[i] = Annotation{Node: n, Open: open, Close: closes, Level: levels[i]}
	}
	return out, nil
}

func baseLevel(ctx context.Context, parent *Node) (int, error) {
	if parent == nil {
		return 1, nil
	}
	return parent.GetDepth(ctx)
}

// GroupCount is one entry of get_descendants_group_count's result.
type GroupCount struct {
	Node             *Node
	DescendantsCount int64
}

// GetDescendantsGroupCount returns parent's children (or, if parent is
// nil, the forest's roots) paired with each one's descendant count: one
// CountDescendants query per child when the engine implements
// engine.DescendantCounter, otherwise a full traversal per child (spec
// section 4.F).
func (t *Tree) GetDescendantsGroupCount(ctx context.Context, parent *Node) ([]GroupCount, error) {
	var children []*Node
	var err error
	if parent != nil {
		children, err = parent.GetChildren(ctx)
	} else {
		children, err = t.Roots(ctx)
	}
	if err != nil {
		return nil, err
	}

	dc, hasCounter := t.Engine.(engine.DescendantCounter)

	out := make([]GroupCount, len(children))
	for i, child := range children {
		var count int64
		if hasCounter {
			c := t.newCtx(ctx, "count_descendants")
			count, err = dc.CountDescendants(c, child.pk)
		} else {
			var desc []*Node
			desc, err = child.GetDescendants(ctx, false)
			count = int64(len(desc))
		}
		if err != nil {
			return nil, err
		}
		out[i] = GroupCount{Node: child, DescendantsCount: count}
	}
	return out, nil
}
