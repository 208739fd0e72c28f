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

// Package node implements the common node protocol (spec section 4.F):
// one operation vocabulary -- add_root, add_child, add_sibling, move,
// delete, the enumeration family, dump/load bulk, find/fix, the annotated
// list -- dispatched onto whichever engine.Engine a table is bound to.
//
// It is the generic wrapper spec section 9 calls for: a concrete Go type
// holding an engine.Engine value rather than a base class, since Go's
// interfaces already give full capability-set polymorphism without one.
package node

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// Tree is a forest bound to one Store table and one engine.Engine. All
// node lookups and mutations for that table go through it.
type Tree struct {
	Store  treeindex.Store
	Engine engine.Engine
	Log    *logrus.Entry
}

// NewTree binds a Store to the engine managing one table.
func NewTree(store treeindex.Store, eng engine.Engine) *Tree {
	return &Tree{Store: store, Engine: eng}
}

func (t *Tree) newCtx(parent context.Context, op string) *treeindex.Context {
	return treeindex.NewContext(parent, t.Log, t.Engine.Config().Table, op)
}

// Node is one forest vertex: an identifier plus a transient cache of its
// row and its parent slot (spec section 9's "parent cache" -- a lookup
// shortcut the node value owns, never shared, invalidated on Move and
// Refresh).
type Node struct {
	tree *Tree
	pk   any
	row  treeindex.Row

	parentCached bool
	hasParent    bool
	parentPK     any
}

// ID returns the node's primary key.
func (n *Node) ID() any { return n.pk }

// Data returns a copy of the node's user and bookkeeping columns as last
// read from the store.
func (n *Node) Data() treeindex.Row { return n.row.Clone() }

func (t *Tree) wrap(row treeindex.Row) *Node {
	return &Node{tree: t, pk: row[treeindex.PKColumn], row: row}
}

func (t *Tree) wrapAll(rows []treeindex.Row) []*Node {
	out := make([]*Node, len(rows))
	for i, r := range rows {
		out[i] = t.wrap(r)
	}
	return out
}

// Find loads the node with primary key pk.
func (t *Tree) Find(ctx context.Context, pk any) (*Node, error) {
	c := t.newCtx(ctx, "find")
	row, ok, err := t.Store.Fetch(c, t.Engine.Config().Table, pk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node: no node with primary key %v", pk)
	}
	return t.wrap(row), nil
}

func (t *Tree) findAll(ctx context.Context, pks []any) ([]*Node, error) {
	out := make([]*Node, len(pks))
	for i, pk := range pks {
		n, err := t.Find(ctx, pk)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Roots returns the forest's root nodes, in sibling order.
func (t *Tree) Roots(ctx context.Context) ([]*Node, error) {
	c := t.newCtx(ctx, "get_children")
	pks, err := t.Engine.GetChildren(c, nil)
	if err != nil {
		return nil, err
	}
	return t.findAll(ctx, pks)
}

// AddRoot creates data as a new trailing root (or, in sorted mode, at the
// node_order_by-determined position among existing roots).
func (t *Tree) AddRoot(ctx context.Context, data treeindex.Row) (*Node, error) {
	cfg := t.Engine.Config()
	var before any
	if cfg.Sorted() {
		c := t.newCtx(ctx, "get_children")
		roots, err := t.Engine.GetChildren(c, nil)
		if err != nil {
			return nil, err
		}
		before, err = t.findSortedSlot(ctx, roots, data, cfg.NodeOrderBy)
		if err != nil {
			return nil, err
		}
	}
	c := t.newCtx(ctx, "add_root")
	row, err := t.Engine.Insert(c, nil, before, data)
	if err != nil {
		return nil, err
	}
	return t.wrap(row), nil
}

// GetTree returns the pre-order traversal of parent and all its
// descendants (or, if parent is nil, of the whole forest: every root
// followed by its descendants, each in turn).
func (t *Tree) GetTree(ctx context.Context, parent *Node) ([]*Node, error) {
	if parent != nil {
		return parent.GetDescendants(ctx, true)
	}
	roots, err := t.Roots(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, r := range roots {
		out = append(out, r)
		desc, err := r.GetDescendants(ctx, false)
		if err != nil {
			return nil, err
		}
		out = append(out, desc...)
	}
	return out, nil
}

// FindProblems implements find_problems at the forest level.
func (t *Tree) FindProblems(ctx context.Context) (engine.Problems, error) {
	c := t.newCtx(ctx, "find_problems")
	return t.Engine.FindProblems(c)
}

// FixTree implements fix_tree at the forest level.
func (t *Tree) FixTree(ctx context.Context, destructive bool) error {
	c := t.newCtx(ctx, "fix_tree")
	return t.Engine.FixTree(c, destructive)
}

// DumpBulk dumps the whole forest (parent nil) or the subtree rooted at
// parent, as nested {data, children} trees.
func (t *Tree) DumpBulk(ctx context.Context, parent *Node, keepIDs bool) ([]treeindex.BulkNode, error) {
	var pk any
	if parent != nil {
		pk = parent.pk
	}
	c := t.newCtx(ctx, "dump_bulk")
	return t.Engine.DumpBulk(c, pk, keepIDs)
}

// LoadBulk inserts data as parent's new trailing children (parent nil:
// new trailing roots) and returns the inserted ids in pre-order.
func (t *Tree) LoadBulk(ctx context.Context, data []treeindex.BulkNode, parent *Node, keepIDs bool) ([]any, error) {
	var pk any
	if parent != nil {
		pk = parent.pk
	}
	c := t.newCtx(ctx, "load_bulk")
	return t.Engine.LoadBulk(c, data, pk, keepIDs)
}

// Refresh re-reads the node's row from the store and invalidates its
// parent cache.
func (n *Node) Refresh(ctx context.Context) error {
	fresh, err := n.tree.Find(ctx, n.pk)
	if err != nil {
		return err
	}
	n.row = fresh.row
	n.parentCached = false
	return nil
}

// GetParent returns the node's parent, or nil if it is a root. refresh
// forces the cached parent slot to be re-resolved.
func (n *Node) GetParent(ctx context.Context, refresh bool) (*Node, error) {
	if refresh {
		n.parentCached = false
	}
	if !n.parentCached {
		c := n.tree.newCtx(ctx, "get_parent")
		pk, ok, err := n.tree.Engine.GetParent(c, n.pk)
		if err != nil {
			return nil, err
		}
		n.parentCached, n.hasParent, n.parentPK = true, ok, pk
	}
	if !n.hasParent {
		return nil, nil
	}
	return n.tree.Find(ctx, n.parentPK)
}

// GetRoot walks up to the node's forest root.
func (n *Node) GetRoot(ctx context.Context) (*Node, error) {
	cur := n
	for {
		p, err := cur.GetParent(ctx, false)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return cur, nil
		}
		cur = p
	}
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot(ctx context.Context) (bool, error) {
	p, err := n.GetParent(ctx, false)
	return p == nil, err
}

// GetDepth returns the node's depth; roots have depth 1 (I3).
func (n *Node) GetDepth(ctx context.Context) (int, error) {
	c := n.tree.newCtx(ctx, "get_depth")
	return n.tree.Engine.GetDepth(c, n.pk)
}

// GetAncestors returns the node's ancestor chain, root-to-parent (I5).
func (n *Node) GetAncestors(ctx context.Context) ([]*Node, error) {
	c := n.tree.newCtx(ctx, "get_ancestors")
	pks, err := n.tree.Engine.GetAncestors(c, n.pk)
	if err != nil {
		return nil, err
	}
	return n.tree.findAll(ctx, pks)
}

// GetChildren returns the node's immediate children, in sibling order.
func (n *Node) GetChildren(ctx context.Context) ([]*Node, error) {
	c := n.tree.newCtx(ctx, "get_children")
	pks, err := n.tree.Engine.GetChildren(c, n.pk)
	if err != nil {
		return nil, err
	}
	return n.tree.findAll(ctx, pks)
}

// GetChildrenCount returns len(GetChildren).
func (n *Node) GetChildrenCount(ctx context.Context) (int, error) {
	c := n.tree.newCtx(ctx, "get_children")
	pks, err := n.tree.Engine.GetChildren(c, n.pk)
	return len(pks), err
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf(ctx context.Context) (bool, error) {
	count, err := n.GetChildrenCount(ctx)
	return count == 0, err
}

// GetFirstChild returns the node's first child, or nil if it is a leaf.
func (n *Node) GetFirstChild(ctx context.Context) (*Node, error) {
	children, err := n.GetChildren(ctx)
	if err != nil || len(children) == 0 {
		return nil, err
	}
	return children[0], nil
}

// GetLastChild returns the node's last child, or nil if it is a leaf.
func (n *Node) GetLastChild(ctx context.Context) (*Node, error) {
	children, err := n.GetChildren(ctx)
	if err != nil || len(children) == 0 {
		return nil, err
	}
	return children[len(children)-1], nil
}

// GetSiblings returns every node sharing the node's parent (or, for a
// root, every other root), in sibling order, the node itself included.
func (n *Node) GetSiblings(ctx context.Context) ([]*Node, error) {
	parent, err := n.GetParent(ctx, false)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		return parent.GetChildren(ctx)
	}
	return n.tree.Roots(ctx)
}

// GetFirstSibling returns the first node of the node's sibling group.
func (n *Node) GetFirstSibling(ctx context.Context) (*Node, error) {
	siblings, err := n.GetSiblings(ctx)
	if err != nil || len(siblings) == 0 {
		return nil, err
	}
	return siblings[0], nil
}

// GetLastSibling returns the last node of the node's sibling group.
func (n *Node) GetLastSibling(ctx context.Context) (*Node, error) {
	siblings, err := n.GetSiblings(ctx)
	if err != nil || len(siblings) == 0 {
		return nil, err
	}
	return siblings[len(siblings)-1], nil
}

// GetPrevSibling returns the node immediately before the node in its
// sibling group, or nil if it is first.
func (n *Node) GetPrevSibling(ctx context.Context) (*Node, error) {
	siblings, err := n.GetSiblings(ctx)
	if err != nil {
		return nil, err
	}
	for i, s := range siblings {
		if s.pk == n.pk {
			if i == 0 {
				return nil, nil
			}
			return siblings[i-1], nil
		}
	}
	return nil, nil
}

// GetNextSibling returns the node immediately after the node in its
// sibling group, or nil if it is last.
func (n *Node) GetNextSibling(ctx context.Context) (*Node, error) {
	siblings, err := n.GetSiblings(ctx)
	if err != nil {
		return nil, err
	}
	for i, s := range siblings {
		if s.pk == n.pk {
			if i == len(siblings)-1 {
				return nil, nil
			}
			return siblings[i+1], nil
		}
	}
	return nil, nil
}

// IsSiblingOf reports whether the node and other share a parent.
func (n *Node) IsSiblingOf(ctx context.Context, other *Node) (bool, error) {
	np, err := n.GetParent(ctx, false)
	if err != nil {
		return false, err
	}
	op, err := other.GetParent(ctx, false)
	if err != nil {
		return false, err
	}
	if np == nil || op == nil {
		return np == nil && op == nil, nil
	}
	return np.pk == op.pk, nil
}

// IsChildOf reports whether other is the node's parent.
func (n *Node) IsChildOf(ctx context.Context, other *Node) (bool, error) {
	p, err := n.GetParent(ctx, false)
	if err != nil || p == nil {
		return false, err
	}
	return p.pk == other.pk, nil
}

// IsDescendantOf reports whether other is one of the node's ancestors.
func (n *Node) IsDescendantOf(ctx context.Context, other *Node) (bool, error) {
	ancestors, err := n.GetAncestors(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.pk == other.pk {
			return true, nil
		}
	}
	return false, nil
}

// GetDescendants returns the pre-order, depth-first traversal of the
// node's descendants (I4), the node itself first when includeSelf is set.
func (n *Node) GetDescendants(ctx context.Context, includeSelf bool) ([]*Node, error) {
	var out []*Node
	if includeSelf {
		out = append(out, n)
	}
	children, err := n.GetChildren(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		out = append(out, c)
		sub, err := c.GetDescendants(ctx, false)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// GetDescendantCount returns len(GetDescendants(false)), using the
// engine's single aggregate query when it offers one (spec section 4.F:
// required for MP/NS/LT, acceptable as a per-child traversal for AL).
func (n *Node) GetDescendantCount(ctx context.Context) (int64, error) {
	if dc, ok := n.tree.Engine.(engine.DescendantCounter); ok {
		c := n.tree.newCtx(ctx, "count_descendants")
		return dc.CountDescendants(c, n.pk)
	}
	descendants, err := n.GetDescendants(ctx, false)
	return int64(len(descendants)), err
}

// AddChild creates data as the node's new trailing child (or, in sorted
// mode, at the node_order_by-determined position among its children).
func (n *Node) AddChild(ctx context.Context, data treeindex.Row) (*Node, error) {
	pos := engine.LastChild
	if n.tree.Engine.Config().Sorted() {
		pos = engine.SortedChild
	}
	return n.insertAt(ctx, n, pos, data)
}

// AddSibling creates data at pos relative to the node.
func (n *Node) AddSibling(ctx context.Context, pos engine.Position, data treeindex.Row) (*Node, error) {
	return n.insertAt(ctx, n, pos, data)
}

func (n *Node) insertAt(ctx context.Context, ref *Node, pos engine.Position, data treeindex.Row) (*Node, error) {
	parent, before, err := n.tree.resolvePosition(ctx, ref, pos, data)
	if err != nil {
		return nil, err
	}
	c := n.tree.newCtx(ctx, "insert")
	row, err := n.tree.Engine.Insert(c, parent, before, data)
	if err != nil {
		return nil, err
	}
	return n.tree.wrap(row), nil
}

// Move relocates the node to pos relative to (or under) target.
func (n *Node) Move(ctx context.Context, target *Node, pos engine.Position) error {
	if target.pk == n.pk {
		return treeindex.ErrInvalidMoveToDescendant.New(n.pk, target.pk)
	}
	ancestors, err := target.GetAncestors(ctx)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.pk == n.pk {
			return treeindex.ErrInvalidMoveToDescendant.New(n.pk, target.pk)
		}
	}

	parent, before, err := n.tree.resolvePosition(ctx, target, pos, n.row)
	if err != nil {
		return err
	}
	c := n.tree.newCtx(ctx, "move")
	if err := n.tree.Engine.Move(c, n.pk, parent, before); err != nil {
		return err
	}
	return n.Refresh(ctx)
}

// Delete removes the node and every descendant, atomically, and returns
// the number of rows removed.
func (n *Node) Delete(ctx context.Context) (int64, error) {
	c := n.tree.newCtx(ctx, "delete")
	return n.tree.Engine.Delete(c, n.pk)
}
