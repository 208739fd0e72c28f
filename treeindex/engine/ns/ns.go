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

// Package ns implements the Nested-Sets tree encoding (spec section 4.C):
// each node carries a (tree_id, lft, rgt) interval that contains the
// interval of every descendant, so ancestry and whole-subtree reads are a
// single range scan with no recursion.
package ns

import (
	"fmt"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// Bookkeeping column names.
const (
	ColTreeID = "tree_id"
	ColLft    = "lft"
	ColRgt    = "rgt"
	ColDepth  = "depth"
)

// Config is the Nested-Sets engine's table configuration.
type Config struct {
	engine.Config
}

// DefaultConfig returns a bare Config for table.
func DefaultConfig(table string) Config {
	return Config{Config: engine.Config{Table: table}}
}

// Engine is the Nested-Sets tree-encoding engine.
type Engine struct {
	store treeindex.Store
	cfg   Config
}

// New validates cfg and returns an Engine bound to store.
func New(store treeindex.Store, cfg Config) (*Engine, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("ns: Config.Table is required")
	}
	return &Engine{store: store, cfg: cfg}, nil
}

// Config implements engine.Engine.
func (e *Engine) Config() engine.Config {
	return e.cfg.Config
}

type nodeInfo struct {
	pk     any
	treeID int64
	lft    int64
	rgt    int64
	depth  int
}

func (e *Engine) info(ctx *treeindex.Context, pk any) (nodeInfo, error) {
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return nodeInfo{}, err
	}
	if !ok {
		return nodeInfo{}, fmt.Errorf("ns: no node with primary key %v", pk)
	}
	return rowInfo(row), nil
}

func rowInfo(row treeindex.Row) nodeInfo {
	return nodeInfo{
		pk:     row[treeindex.PKColumn],
		treeID: asInt64(row[ColTreeID]),
		lft:    asInt64(row[ColLft]),
		rgt:    asInt64(row[ColRgt]),
		depth:  int(asInt64(row[ColDepth])),
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func pks(rows []treeindex.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[treeindex.PKColumn]
	}
	return out
}

// GetChildren implements engine.Engine.
func (e *Engine) GetChildren(ctx *treeindex.Context, parent any) ([]any, error) {
	if parent == nil {
		return e.getRoots(ctx)
	}
	p, err := e.info(ctx, parent)
	if err != nil {
		return nil, err
	}
	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{
			{Column: ColTreeID, Op: treeindex.OpEq, Value: p.treeID},
			{Column: ColDepth, Op: treeindex.OpEq, Value: p.depth + 1},
		},
		Filter: func(r treeindex.Row) bool {
			lft := asInt64(r[ColLft])
			return lft > p.lft && lft < p.rgt
		},
	}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColLft}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return nil, err
	}
	return pks(rows), nil
}

func (e *Engine) getRoots(ctx *treeindex.Context) ([]any, error) {
	pred := treeindex.Predicate{Conds: []treeindex.Cond{{Column: ColDepth, Op: treeindex.OpEq, Value: 1}}}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColTreeID}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return nil, err
	}
	return pks(rows), nil
}

// GetParent implements engine.Engine.
func (e *Engine) GetParent(ctx *treeindex.Context, nodePK any) (any, bool, error) {
	n, err := e.info(ctx, nodePK)
	if err != nil {
		return nil, false, err
	}
	if n.depth <= 1 {
		return nil, false, nil
	}
	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{
			{Column: ColTreeID, Op: treeindex.OpEq, Value: n.treeID},
			{Column: ColDepth, Op: treeindex.OpEq, Value: n.depth - 1},
		},
		Filter: func(r treeindex.Row) bool {
			return asInt64(r[ColLft]) < n.lft && asInt64(r[ColRgt]) > n.rgt
		},
	}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{})
	if err != nil {
		return nil, false, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0][treeindex.PKColumn], true, nil
}

// GetAncestors implements engine.Engine: a single containment scan, lft
// ascending, is already root-first (spec invariant I5).
func (e *Engine) GetAncestors(ctx *treeindex.Context, nodePK any) ([]any, error) {
	n, err := e.info(ctx, nodePK)
	if err != nil {
		return nil, err
	}
	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColTreeID, Op: treeindex.OpEq, Value: n.treeID}},
		Filter: func(r treeindex.Row) bool {
			return asInt64(r[ColLft]) < n.lft && asInt64(r[ColRgt]) > n.rgt
		},
	}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColLft}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return nil, err
	}
	return pks(rows), nil
}

// GetDepth implements engine.Engine.
func (e *Engine) GetDepth(ctx *treeindex.Context, nodePK any) (int, error) {
	n, err := e.info(ctx, nodePK)
	return n.depth, err
}

// CountDescendants implements engine.DescendantCounter: the interval
// width gives the count with no scan at all.
func (e *Engine) CountDescendants(ctx *treeindex.Context, nodePK any) (int64, error) {
	n, err := e.info(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	return (n.rgt - n.lft - 1) / 2, nil
}

// Insert implements engine.Engine.
func (e *Engine) Insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row) (treeindex.Row, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	row, err := e.insert(ctx, parent, before, data)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return row, tx.Commit()
}

func (e *Engine) insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row) (treeindex.Row, error) {
	if parent == nil {
		return e.insertRoot(ctx, before, data)
	}
	p, err := e.info(ctx, parent)
	if err != nil {
		return nil, err
	}

	var threshold int64
	if before != nil {
		b, err := e.info(ctx, before)
		if err != nil {
			return nil, err
		}
		threshold = b.lft
	} else {
		threshold = p.rgt
	}

	if err := e.makeRoom(ctx, p.treeID, threshold); err != nil {
		return nil, err
	}

	row := data.Clone()
	row[ColTreeID] = p.treeID
	row[ColLft] = threshold
	row[ColRgt] = threshold + 1
	row[ColDepth] = p.depth + 1
	return e.store.Insert(ctx, e.cfg.Table, row)
}

// makeRoom shifts every lft/rgt at or after threshold within treeID right
// by 2, in one statement: ancestor rows spanning the insertion point have
// only their rgt shifted, everything wholly after it has both shifted.
func (e *Engine) makeRoom(ctx *treeindex.Context, treeID int64, threshold int64) error {
	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColTreeID, Op: treeindex.OpEq, Value: treeID}},
		Filter: func(r treeindex.Row) bool {
			return asInt64(r[ColLft]) >= threshold || asInt64(r[ColRgt]) >= threshold
		},
	}
	updates := []treeindex.ColumnUpdate{
		{Column: ColLft, Apply: func(r treeindex.Row) any {
			if v := asInt64(r[ColLft]); v >= threshold {
				return v + 2
			}
			return r[ColLft]
		}},
		{Column: ColRgt, Apply: func(r treeindex.Row) any {
			if v := asInt64(r[ColRgt]); v >= threshold {
				return v + 2
			}
			return r[ColRgt]
		}},
	}
	_, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, updates...)
	return err
}

func (e *Engine) insertRoot(ctx *treeindex.Context, before any, data treeindex.Row) (treeindex.Row, error) {
	var treeID int64
	if before != nil {
		b, err := e.info(ctx, before)
		if err != nil {
			return nil, err
		}
		treeID = b.treeID
		if err := e.shiftTreeIDs(ctx, treeID); err != nil {
			return nil, err
		}
	} else {
		maxID, err := e.maxTreeID(ctx)
		if err != nil {
			return nil, err
		}
		treeID = maxID + 1
	}

	row := data.Clone()
	row[ColTreeID] = treeID
	row[ColLft] = int64(1)
	row[ColRgt] = int64(2)
	row[ColDepth] = 1
	return e.store.Insert(ctx, e.cfg.Table, row)
}

func (e *Engine) maxTreeID(ctx *treeindex.Context) (int64, error) {
	iter, err := e.store.Scan(ctx, e.cfg.Table, treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColDepth, Op: treeindex.OpEq, Value: 1}},
	}, treeindex.ScanOptions{})
	if err != nil {
		return 0, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, r := range rows {
		if v := asInt64(r[ColTreeID]); v > max {
			max = v
		}
	}
	return max, nil
}

// shiftTreeIDs makes room for a new root by incrementing the tree_id of
// every tree at or after atOrAfter. tree_id holes left by root deletion
// are tolerated (spec's fix_tree language, as for MP's path steps), so
// this never needs to compact first.
func (e *Engine) shiftTreeIDs(ctx *treeindex.Context, atOrAfter int64) error {
	pred := treeindex.Predicate{Filter: func(r treeindex.Row) bool {
		return asInt64(r[ColTreeID]) >= atOrAfter
	}}
	update := treeindex.ColumnUpdate{Column: ColTreeID, Apply: func(r treeindex.Row) any {
		return asInt64(r[ColTreeID]) + 1
	}}
	_, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, update)
	return err
}

// Move implements engine.Engine as dump, delete, reinsert inside one
// transaction: simpler than in-place interval surgery and just as
// correct, since the whole operation is atomic either way.
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
	dump, err := e.dumpNode(ctx, nodePK, true)
	if err != nil {
		return err
	}
	if _, err := e.delete(ctx, nodePK); err != nil {
		return err
	}
	_, err = e.insertTree(ctx, newParent, before, dump)
	return err
}

// insertTree inserts a previously-dumped subtree at (parent, before),
// preserving every original primary key.
func (e *Engine) insertTree(ctx *treeindex.Context, parent any, before any, node treeindex.BulkNode) (treeindex.Row, error) {
	row, err := e.insert(ctx, parent, before, node.Data)
	if err != nil {
		return nil, err
	}
	pk := row[treeindex.PKColumn]
	for _, child := range node.Children {
		if _, err := e.insertTree(ctx, pk, nil, child); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// Delete implements engine.Engine.
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
	n, err := e.info(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	width := n.rgt - n.lft + 1

	deleted, err := e.store.DeleteWhere(ctx, e.cfg.Table, treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColTreeID, Op: treeindex.OpEq, Value: n.treeID}},
		Filter: func(r treeindex.Row) bool {
			return asInt64(r[ColLft]) >= n.lft && asInt64(r[ColRgt]) <= n.rgt
		},
	})
	if err != nil {
		return 0, err
	}

	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColTreeID, Op: treeindex.OpEq, Value: n.treeID}},
		Filter: func(r treeindex.Row) bool {
			return asInt64(r[ColLft]) > n.rgt || asInt64(r[ColRgt]) > n.rgt
		},
	}
	updates := []treeindex.ColumnUpdate{
		{Column: ColLft, Apply: func(r treeindex.Row) any {
			if v := asInt64(r[ColLft]); v > n.rgt {
				return v - width
			}
			return r[ColLft]
		}},
		{Column: ColRgt, Apply: func(r treeindex.Row) any {
			if v := asInt64(r[ColRgt]); v > n.rgt {
				return v - width
			}
			return r[ColRgt]
		}},
	}
	if _, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, updates...); err != nil {
		return 0, err
	}
	return int64(len(deleted)), nil
}

// FindProblems implements engine.Engine.
func (e *Engine) FindProblems(ctx *treeindex.Context) (engine.Problems, error) {
	iter, err := e.store.Scan(ctx, e.cfg.Table, treeindex.All(), treeindex.ScanOptions{})
	if err != nil {
		return engine.Problems{}, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return engine.Problems{}, err
	}
	infos := make([]nodeInfo, len(rows))
	for i, r := range rows {
		infos[i] = rowInfo(r)
	}

	var problems engine.Problems
	for _, n := range infos {
		if n.rgt <= n.lft {
			problems.BadDepth = append(problems.BadDepth, n.pk)
			continue
		}
		ancestors := 0
		for _, other := range infos {
			if other.treeID == n.treeID && other.lft < n.lft && other.rgt > n.rgt {
				ancestors++
			}
		}
		if n.depth > 1 && ancestors == 0 {
			problems.Orphans = append(problems.Orphans, n.pk)
			continue
		}
		if n.depth != ancestors+1 {
			problems.BadDepth = append(problems.BadDepth, n.pk)
		}
	}
	return problems, nil
}

// FixTree implements engine.Engine.
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
	infos := make([]nodeInfo, len(rows))
	for i, r := range rows {
		infos[i] = rowInfo(r)
	}
	depthOf := make(map[any]int, len(infos))
	for _, n := range infos {
		ancestors := 0
		for _, other := range infos {
			if other.treeID == n.treeID && other.lft < n.lft && other.rgt > n.rgt {
				ancestors++
			}
		}
		depthOf[n.pk] = ancestors + 1
	}
	_, err = e.store.BatchUpdate(ctx, e.cfg.Table, treeindex.All(),
		treeindex.ColumnUpdate{Column: ColDepth, Apply: func(r treeindex.Row) any {
			return depthOf[r[treeindex.PKColumn]]
		}})
	return err
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
		roots, err := e.getRoots(ctx)
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
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return treeindex.BulkNode{}, err
	}
	if !ok {
		return treeindex.BulkNode{}, fmt.Errorf("ns: no node with primary key %v", pk)
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
		case ColTreeID, ColLft, ColRgt, ColDepth:
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
		inserted, err := e.insert(ctx, parent, nil, row)
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
var _ engine.DescendantCounter = (*Engine)(nil)
