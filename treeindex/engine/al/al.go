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

// Package al implements the Adjacency-List tree encoding (spec section
// 4.D): each row carries its immediate parent's primary key and a
// sibling-order integer. It is the simplest encoding and the cheapest to
// mutate -- moving a subtree rewrites no descendant row, only the moved
// row and, when it lands before a sibling, the later siblings' sib_order --
// at the cost of
// every enumeration needing repeated point queries instead of one range
// scan.
package al

import (
	"fmt"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// Bookkeeping column names.
const (
	ColParent   = "parent"
	ColSibOrder = "sib_order"
)

// Config is the Adjacency-List engine's table configuration.
type Config struct {
	engine.Config
}

// DefaultConfig returns a bare Config for table.
func DefaultConfig(table string) Config {
	return Config{Config: engine.Config{Table: table}}
}

// Engine is the Adjacency-List tree-encoding engine.
type Engine struct {
	store treeindex.Store
	cfg   Config
}

// New validates cfg and returns an Engine bound to store.
func New(store treeindex.Store, cfg Config) (*Engine, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("al: Config.Table is required")
	}
	return &Engine{store: store, cfg: cfg}, nil
}

// Config implements engine.Engine.
func (e *Engine) Config() engine.Config {
	return e.cfg.Config
}

func (e *Engine) fetch(ctx *treeindex.Context, pk any) (treeindex.Row, error) {
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("al: no node with primary key %v", pk)
	}
	return row, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// GetChildren implements engine.Engine.
func (e *Engine) GetChildren(ctx *treeindex.Context, parent any) ([]any, error) {
	pred := treeindex.Predicate{Filter: func(r treeindex.Row) bool {
		return r[ColParent] == parent
	}}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColSibOrder}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[treeindex.PKColumn]
	}
	return out, nil
}

// GetParent implements engine.Engine.
func (e *Engine) GetParent(ctx *treeindex.Context, nodePK any) (any, bool, error) {
	row, err := e.fetch(ctx, nodePK)
	if err != nil {
		return nil, false, err
	}
	parent := row[ColParent]
	return parent, parent != nil, nil
}

// GetAncestors implements engine.Engine via a point query per level (I5:
// root-first).
func (e *Engine) GetAncestors(ctx *treeindex.Context, nodePK any) ([]any, error) {
	var chain []any
	cur := nodePK
	for {
		row, err := e.fetch(ctx, cur)
		if err != nil {
			return nil, err
		}
		parent := row[ColParent]
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		cur = parent
	}
	out := make([]any, len(chain))
	for i, pk := range chain {
		out[len(chain)-1-i] = pk
	}
	return out, nil
}

// GetDepth implements engine.Engine; roots have depth 1 (I3).
func (e *Engine) GetDepth(ctx *treeindex.Context, nodePK any) (int, error) {
	ancestors, err := e.GetAncestors(ctx, nodePK)
	return len(ancestors) + 1, err
}

func (e *Engine) descendants(ctx *treeindex.Context, nodePK any) ([]any, error) {
	var out []any
	children, err := e.GetChildren(ctx, nodePK)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		out = append(out, c)
		sub, err := e.descendants(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// Insert implements engine.Engine.
func (e *Engine) Insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row) (treeindex.Row, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	row, err := e.insert(ctx, parent, before, data, nil)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return row, tx.Commit()
}

// insert is the transaction-less core of Insert, also used by LoadBulk.
// exclude, when non-nil, is left out of the sibling group read; both
// callers pass nil (move computes its own destination slot).
func (e *Engine) insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row, exclude any) (treeindex.Row, error) {
	siblings, err := e.GetChildren(ctx, parent)
	if err != nil {
		return nil, err
	}
	if exclude != nil {
		siblings = withoutPK(siblings, exclude)
	}

	var sibOrder int
	if before == nil {
		sibOrder = len(siblings)
		if n := len(siblings); n > 0 {
			last, err := e.fetch(ctx, siblings[n-1])
			if err != nil {
				return nil, err
			}
			sibOrder = asInt(last[ColSibOrder]) + 1
		}
	} else {
		beforeRow, err := e.fetch(ctx, before)
		if err != nil {
			return nil, err
		}
		sibOrder = asInt(beforeRow[ColSibOrder])
		if err := e.shiftRight(ctx, parent, sibOrder, exclude); err != nil {
			return nil, err
		}
	}

	row := data.Clone()
	row[ColParent] = parent
	row[ColSibOrder] = sibOrder
	return e.store.Insert(ctx, e.cfg.Table, row)
}

func withoutPK(pks []any, exclude any) []any {
	out := pks[:0:0]
	for _, pk := range pks {
		if pk != exclude {
			out = append(out, pk)
		}
	}
	return out
}

// shiftRight increments sib_order, in one statement, for every sibling of
// parent at or after atOrAfter (except exclude), making room for a new
// or relocated node.
func (e *Engine) shiftRight(ctx *treeindex.Context, parent any, atOrAfter int, exclude any) error {
	pred := treeindex.Predicate{Filter: func(r treeindex.Row) bool {
		if r[ColParent] != parent {
			return false
		}
		if exclude != nil && r[treeindex.PKColumn] == exclude {
			return false
		}
		return asInt(r[ColSibOrder]) >= atOrAfter
	}}
	update := treeindex.ColumnUpdate{Column: ColSibOrder, Apply: func(r treeindex.Row) any {
		return asInt(r[ColSibOrder]) + 1
	}}
	_, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, update)
	return err
}

// Move implements engine.Engine: adjacency list needs no descendant
// rewrite at all, since nothing below nodePK refers to it by path or
// interval -- the moved row's own parent and sib_order change, and when
// before is given the destination's later siblings have their sib_order
// shifted up by one.
func (e *Engine) Move(ctx *treeindex.Context, nodePK any, newParent any, before any) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := e.move(ctx, nodePK, newParent, before); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (e *Engine) move(ctx *treeindex.Context, nodePK any, newParent any, before any) error {
	siblings, err := e.GetChildren(ctx, newParent)
	if err != nil {
		return err
	}
	siblings = withoutPK(siblings, nodePK)

	var sibOrder int
	if before == nil {
		sibOrder = len(siblings)
		if n := len(siblings); n > 0 {
			last, err := e.fetch(ctx, siblings[n-1])
			if err != nil {
				return err
			}
			sibOrder = asInt(last[ColSibOrder]) + 1
		}
	} else {
		beforeRow, err := e.fetch(ctx, before)
		if err != nil {
			return err
		}
		sibOrder = asInt(beforeRow[ColSibOrder])
		if err := e.shiftRight(ctx, newParent, sibOrder, nodePK); err != nil {
			return err
		}
	}

	return e.store.Update(ctx, e.cfg.Table, nodePK, treeindex.Row{
		ColParent:   newParent,
		ColSibOrder: sibOrder,
	})
}

// Delete implements engine.Engine. AL has no path or interval column, so
// the descendant set is gathered by traversal before the single
// DeleteWhere call removes it.
func (e *Engine) Delete(ctx *treeindex.Context, nodePK any) (int64, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	n, err := e.delete(ctx, nodePK)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

func (e *Engine) delete(ctx *treeindex.Context, nodePK any) (int64, error) {
	descendants, err := e.descendants(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	all := append(descendants, nodePK)

	deleted, err := e.store.DeleteWhere(ctx, e.cfg.Table, treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: treeindex.PKColumn, Op: treeindex.OpIn, Value: all}},
	})
	if err != nil {
		return 0, err
	}
	return int64(len(deleted)), nil
}

// FindProblems implements engine.Engine: AL stores no path, interval or
// numchild column, so the only structural finding it can report is a
// parent reference to a row that no longer exists.
func (e *Engine) FindProblems(ctx *treeindex.Context) (engine.Problems, error) {
	iter, err := e.store.Scan(ctx, e.cfg.Table, treeindex.All(), treeindex.ScanOptions{})
	if err != nil {
		return engine.Problems{}, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return engine.Problems{}, err
	}
	exists := make(map[any]bool, len(rows))
	for _, r := range rows {
		exists[r[treeindex.PKColumn]] = true
	}
	var problems engine.Problems
	for _, r := range rows {
		if parent := r[ColParent]; parent != nil && !exists[parent] {
			problems.Orphans = append(problems.Orphans, r[treeindex.PKColumn])
		}
	}
	return problems, nil
}

// FixTree implements engine.Engine. Non-destructive mode renumbers each
// sibling group's sib_order to be contiguous from zero, in its existing
// order; destructive mode dumps, deletes and reloads the whole forest.
func (e *Engine) FixTree(ctx *treeindex.Context, destructive bool) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	var fixErr error
	if destructive {
		fixErr = e.fixTreeDestructive(ctx)
	} else {
		fixErr = e.fixTreeNonDestructive(ctx)
	}
	if fixErr != nil {
		_ = tx.Rollback()
		return fixErr
	}
	return tx.Commit()
}

func (e *Engine) fixTreeNonDestructive(ctx *treeindex.Context) error {
	iter, err := e.store.Scan(ctx, e.cfg.Table, treeindex.All(), treeindex.ScanOptions{})
	if err != nil {
		return err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return err
	}
	groups := make(map[any][]treeindex.Row)
	for _, r := range rows {
		groups[r[ColParent]] = append(groups[r[ColParent]], r)
	}
	order := make(map[any]int, len(rows))
	for _, group := range groups {
		sortRowsBySibOrder(group)
		for i, r := range group {
			order[r[treeindex.PKColumn]] = i
		}
	}
	_, err = e.store.BatchUpdate(ctx, e.cfg.Table, treeindex.All(),
		treeindex.ColumnUpdate{Column: ColSibOrder, Apply: func(r treeindex.Row) any {
			return order[r[treeindex.PKColumn]]
		}})
	return err
}

func sortRowsBySibOrder(rows []treeindex.Row) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && asInt(rows[j][ColSibOrder]) < asInt(rows[j-1][ColSibOrder]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func (e *Engine) fixTreeDestructive(ctx *treeindex.Context) error {
	dump, err := e.DumpBulk(ctx, nil, true)
	if err != nil {
		return err
	}
	if _, err := e.store.DeleteWhere(ctx, e.cfg.Table, treeindex.All()); err != nil {
		return err
	}
	_, err = e.loadBulk(ctx, dump, nil, true)
	return err
}

// DumpBulk implements engine.Engine.
func (e *Engine) DumpBulk(ctx *treeindex.Context, parent any, keepIDs bool) ([]treeindex.BulkNode, error) {
	if parent == nil {
		roots, err := e.GetChildren(ctx, nil)
		if err != nil {
			return nil, err
		}
		out := make([]treeindex.BulkNode, 0, len(roots))
		for _, pk := range roots {
			bn, err := e.dumpNode(ctx, pk, keepIDs)
			if err != nil {
				return nil, err
			}
			out = append(out, bn)
		}
		return out, nil
	}
	bn, err := e.dumpNode(ctx, parent, keepIDs)
	if err != nil {
		return nil, err
	}
	return []treeindex.BulkNode{bn}, nil
}

func (e *Engine) dumpNode(ctx *treeindex.Context, pk any, keepIDs bool) (treeindex.BulkNode, error) {
	row, err := e.fetch(ctx, pk)
	if err != nil {
		return treeindex.BulkNode{}, err
	}
	data := userData(row, keepIDs)
	children, err := e.GetChildren(ctx, pk)
	if err != nil {
		return treeindex.BulkNode{}, err
	}
	kids := make([]treeindex.BulkNode, 0, len(children))
	for _, c := range children {
		kid, err := e.dumpNode(ctx, c, keepIDs)
		if err != nil {
			return treeindex.BulkNode{}, err
		}
		kids = append(kids, kid)
	}
	return treeindex.BulkNode{Data: data, Children: kids}, nil
}

func userData(row treeindex.Row, keepIDs bool) treeindex.Row {
	out := make(treeindex.Row, len(row))
	for k, v := range row {
		switch k {
		case ColParent, ColSibOrder:
			continue
		case treeindex.PKColumn:
			if !keepIDs {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// LoadBulk implements engine.Engine.
func (e *Engine) LoadBulk(ctx *treeindex.Context, data []treeindex.BulkNode, parent any, keepIDs bool) ([]any, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := e.loadBulk(ctx, data, parent, keepIDs)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return ids, tx.Commit()
}

func (e *Engine) loadBulk(ctx *treeindex.Context, data []treeindex.BulkNode, parent any, keepIDs bool) ([]any, error) {
	var ids []any
	for _, node := range data {
		row := node.Data.Clone()
		if !keepIDs {
			delete(row, treeindex.PKColumn)
		}
		inserted, err := e.insert(ctx, parent, nil, row, nil)
		if err != nil {
			return nil, err
		}
		pk := inserted[treeindex.PKColumn]
		ids = append(ids, pk)
		childIDs, err := e.loadBulk(ctx, node.Children, pk, keepIDs)
		if err != nil {
			return nil, err
		}
		ids = append(ids, childIDs...)
	}
	return ids, nil
}

var _ engine.Engine = (*Engine)(nil)
