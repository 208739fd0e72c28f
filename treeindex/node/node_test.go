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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
	"github.com/dolthub/go-tree-index/treeindex/engine/mp"
	"github.com/dolthub/go-tree-index/treeindex/memstore"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	store := memstore.New()
	e, err := mp.New(store, mp.DefaultConfig("tree"))
	require.NoError(t, err)
	return NewTree(store, e)
}

// buildFixture builds the spec's ten-node tree and returns the tree plus
// a name -> Node map.
func buildFixture(t *testing.T, ctx context.Context) (*Tree, map[string]*Node) {
	t.Helper()
	tree := newTestTree(t)
	nodes := map[string]*Node{}

	add := func(parent *Node, name string) *Node {
		var n *Node
		var err error
		if parent == nil {
			n, err = tree.AddRoot(ctx, treeindex.Row{"name": name})
		} else {
			n, err = parent.AddChild(ctx, treeindex.Row{"name": name})
		}
		require.NoError(t, err)
		nodes[name] = n
		return n
	}

	add(nil, "1")
	n2 := add(nil, "2")
	add(nil, "3")
	n4 := add(nil, "4")
	add(n2, "21")
	add(n2, "22")
	n23 := add(n2, "23")
	add(n2, "24")
	add(n23, "231")
	add(n4, "41")

	return tree, nodes
}

func namesOf(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Data()["name"].(string)
	}
	return out
}

func TestGetTreePreOrderMatchesFixture(t *testing.T) {
	ctx := context.Background()
	tree, _ := buildFixture(t, ctx)

	all, err := tree.GetTree(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "21", "22", "23", "231", "24", "3", "4", "41"}, namesOf(all))
}

func TestGetDescendantsAndGetAncestorsAreDual(t *testing.T) {
	ctx := context.Background()
	_, nodes := buildFixture(t, ctx)

	descendants, err := nodes["2"].GetDescendants(ctx, false)
	require.NoError(t, err)
	require.Equal(t, []string{"21", "22", "23", "231", "24"}, namesOf(descendants))

	for _, d := range descendants {
		ancestors, err := d.GetAncestors(ctx)
		require.NoError(t, err)
		found := false
		for _, a := range ancestors {
			if a.ID() == nodes["2"].ID() {
				found = true
			}
		}
		require.True(t, found, "descendant %v must list %v as an ancestor", d.Data()["name"], "2")

		isDesc, err := d.IsDescendantOf(ctx, nodes["2"])
		require.NoError(t, err)
		require.True(t, isDesc)
	}

	isDesc, err := nodes["3"].IsDescendantOf(ctx, nodes["2"])
	require.NoError(t, err)
	require.False(t, isDesc)
}

func TestMovePreservesSubtree(t *testing.T) {
	ctx := context.Background()
	_, nodes := buildFixture(t, ctx)

	before, err := nodes["23"].GetDescendants(ctx, false)
	require.NoError(t, err)
	beforeNames := namesOf(before)

	require.NoError(t, nodes["23"].Move(ctx, nodes["4"], engine.LastChild))

	parent, err := nodes["23"].GetParent(ctx, true)
	require.NoError(t, err)
	require.Equal(t, nodes["4"].ID(), parent.ID())

	after, err := nodes["23"].GetDescendants(ctx, false)
	require.NoError(t, err)
	require.Equal(t, beforeNames, namesOf(after))
}

func TestMoveRejectsMovingIntoOwnDescendant(t *testing.T) {
	ctx := context.Background()
	_, nodes := buildFixture(t, ctx)
	err := nodes["2"].Move(ctx, nodes["231"], engine.LastChild)
	require.Error(t, err)
}

func TestDeleteIsPrefixClosed(t *testing.T) {
	ctx := context.Background()
	tree, nodes := buildFixture(t, ctx)

	count, err := nodes["2"].Delete(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 6, count)

	all, err := tree.GetTree(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3", "4", "41"}, namesOf(all))

	_, err = tree.Find(ctx, nodes["231"].ID())
	require.Error(t, err)
}

func TestGetDescendantCountUsesEngineCounter(t *testing.T) {
	ctx := context.Background()
	_, nodes := buildFixture(t, ctx)

	count, err := nodes["2"].GetDescendantCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, count)
}

func TestSiblingHelpers(t *testing.T) {
	ctx := context.Background()
	_, nodes := buildFixture(t, ctx)

	first, err := nodes["22"].GetFirstSibling(ctx)
	require.NoError(t, err)
	require.Equal(t, "21", first.Data()["name"])

	last, err := nodes["22"].GetLastSibling(ctx)
	require.NoError(t, err)
	require.Equal(t, "24", last.Data()["name"])

	prev, err := nodes["22"].GetPrevSibling(ctx)
	require.NoError(t, err)
	require.Equal(t, "21", prev.Data()["name"])

	next, err := nodes["22"].GetNextSibling(ctx)
	require.NoError(t, err)
	require.Equal(t, "23", next.Data()["name"])

	isSib, err := nodes["22"].IsSiblingOf(ctx, nodes["24"])
	require.NoError(t, err)
	require.True(t, isSib)

	isSib, err = nodes["22"].IsSiblingOf(ctx, nodes["231"])
	require.NoError(t, err)
	require.False(t, isSib)

	isChild, err := nodes["231"].IsChildOf(ctx, nodes["23"])
	require.NoError(t, err)
	require.True(t, isChild)
}

func TestGetAnnotatedListOpensAndClosesLevels(t *testing.T) {
	ctx := context.Background()
	tree, nodes := buildFixture(t, ctx)

	list, err := tree.GetAnnotatedList(ctx, nodes["2"])
	require.NoError(t, err)
	require.Len(t, list, 6)

	require.True(t, list[0].Open)
	require.Equal(t, 0, list[0].Level)

	var names []string
	for _, a := range list {
		names = append(names, a.Node.Data()["name"].(string))
	}
	require.Equal(t, []string{"2", "21", "22", "23", "231", "24"}, names)

	// "231" opens a nested level under "23" and closes it again before "24".
	idx231 := 4
	require.Equal(t, "231", names[idx231])
	require.True(t, list[idx231].Open)
	require.Equal(t, 2, list[idx231].Level)
	require.Contains(t, list[idx231].Close, 2)

	// the whole list closes back down to level 0 after the last node.
	last := list[len(list)-1]
	require.Contains(t, last.Close, 0)
}

func TestGetDescendantsGroupCount(t *testing.T) {
	ctx := context.Background()
	tree, nodes := buildFixture(t, ctx)

	groups, err := tree.GetDescendantsGroupCount(ctx, nodes["2"])
	require.NoError(t, err)
	require.Len(t, groups, 4)

	byName := map[string]int64{}
	for _, g := range groups {
		byName[g.Node.Data()["name"].(string)] = g.DescendantsCount
	}
	require.EqualValues(t, 0, byName["21"])
	require.EqualValues(t, 1, byName["23"])
}

func TestSortedModeOrdersByNodeOrderBy(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := mp.DefaultConfig("sorted_tree")
	cfg.NodeOrderBy = []string{"rank"}
	e, err := mp.New(store, cfg)
	require.NoError(t, err)
	tree := NewTree(store, e)

	_, err = tree.AddRoot(ctx, treeindex.Row{"name": "c", "rank": 3})
	require.NoError(t, err)
	_, err = tree.AddRoot(ctx, treeindex.Row{"name": "a", "rank": 1})
	require.NoError(t, err)
	_, err = tree.AddRoot(ctx, treeindex.Row{"name": "b", "rank": 2})
	require.NoError(t, err)

	roots, err := tree.Roots(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, namesOf(roots))
}

func TestSortedModeRejectsUnsortedPosition(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := mp.DefaultConfig("sorted_tree")
	cfg.NodeOrderBy = []string{"rank"}
	e, err := mp.New(store, cfg)
	require.NoError(t, err)
	tree := NewTree(store, e)

	root, err := tree.AddRoot(ctx, treeindex.Row{"name": "a", "rank": 1})
	require.NoError(t, err)

	_, err = root.AddSibling(ctx, engine.LastSibling, treeindex.Row{"name": "b", "rank": 2})
	require.Error(t, err)
}
