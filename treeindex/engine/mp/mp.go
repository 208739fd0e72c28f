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

// Package mp implements the Materialized-Path tree encoding (spec section
// 4.B): a node's path is the concatenation of its ancestors' fixed-width
// step codes plus its own, so that sibling order and ancestry are both
// readable directly off the path string.
package mp

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
	"github.com/dolthub/go-tree-index/treeindex/numconv"
)

// Bookkeeping column names.
const (
	ColPath     = "path"
	ColDepth    = "depth"
	ColNumchild = "numchild"
)

// Config is the Materialized-Path engine's table configuration.
type Config struct {
	engine.Config

	// Alphabet is the step encoder's symbol set.
	Alphabet *numconv.Alphabet

	// StepLen is the fixed width, in characters, of one path step.
	StepLen int

	// MaxLength caps the path column's total width. Zero means the only
	// limit is what StepLen/Alphabet can represent per step.
	MaxLength int
}

// DefaultConfig returns the treebeard-compatible default: the digit and
// uppercase-letter alphabet, 4-character steps.
func DefaultConfig(table string) Config {
	alphabet, _ := numconv.NewAlphabet(numconv.DefaultAlphabet)
	return Config{
		Config:  engine.Config{Table: table},
		Alphabet: alphabet,
		StepLen:  4,
	}
}

// Engine is the Materialized-Path tree-encoding engine.
type Engine struct {
	store treeindex.Store
	cfg   Config
}

// New validates cfg and returns an Engine bound to store.
func New(store treeindex.Store, cfg Config) (*Engine, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("mp: Config.Table is required")
	}
	if cfg.Alphabet == nil {
		return nil, fmt.Errorf("mp: Config.Alphabet is required")
	}
	if cfg.StepLen < 1 {
		return nil, fmt.Errorf("mp: Config.StepLen must be >= 1")
	}
	return &Engine{store: store, cfg: cfg}, nil
}

// Config implements engine.Engine.
func (e *Engine) Config() engine.Config {
	return e.cfg.Config
}

func (e *Engine) encodeStep(n uint64) (string, error) {
	return e.cfg.Alphabet.Encode(n, e.cfg.StepLen)
}

func (e *Engine) decodeStep(step string) (uint64, error) {
	return e.cfg.Alphabet.Decode(step)
}

func (e *Engine) lastStepValue(path string) (uint64, error) {
	return e.decodeStep(path[len(path)-e.cfg.StepLen:])
}

// appendStep returns parentPath with one more step of value n appended,
// validated against MaxLength.
func (e *Engine) appendStep(parentPath string, n uint64) (string, error) {
	step, err := e.encodeStep(n)
	if err != nil {
		return "", err
	}
	newPath := parentPath + step
	if e.cfg.MaxLength > 0 && len(newPath) > e.cfg.MaxLength {
		return "", treeindex.ErrCapacityExceeded.New(
			fmt.Sprintf("path %q would exceed max length %d", newPath, e.cfg.MaxLength))
	}
	return newPath, nil
}

func (e *Engine) nodeInfo(ctx *treeindex.Context, pk any) (path string, depth int, err error) {
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, fmt.Errorf("mp: no node with primary key %v", pk)
	}
	return row[ColPath].(string), row[ColDepth].(int), nil
}

// siblingsAt returns every row directly under parentPath at childDepth, in
// path order (ascending, which for fixed-width steps is sibling order).
func (e *Engine) siblingsAt(ctx *treeindex.Context, parentPath string, childDepth int) ([]treeindex.Row, error) {
	pred := treeindex.Predicate{Conds: []treeindex.Cond{
		{Column: ColDepth, Op: treeindex.OpEq, Value: childDepth},
		{Column: ColPath, Op: treeindex.OpStartsWith, Value: parentPath},
	}}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColPath}},
	})
	if err != nil {
		return nil, err
	}
	return treeindex.DrainAll(ctx, iter)
}

// GetChildren implements engine.Engine.
func (e *Engine) GetChildren(ctx *treeindex.Context, parent any) ([]any, error) {
	parentPath, childDepth := "", 1
	if parent != nil {
		p, d, err := e.nodeInfo(ctx, parent)
		if err != nil {
			return nil, err
		}
		parentPath, childDepth = p, d+1
	}
	rows, err := e.siblingsAt(ctx, parentPath, childDepth)
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
	path, _, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return nil, false, err
	}
	if len(path) <= e.cfg.StepLen {
		return nil, false, nil
	}
	parentPath := path[:len(path)-e.cfg.StepLen]
	row, ok, err := e.fetchByPath(ctx, parentPath)
	if err != nil || !ok {
		return nil, false, err
	}
	return row[treeindex.PKColumn], true, nil
}

func (e *Engine) fetchByPath(ctx *treeindex.Context, path string) (treeindex.Row, bool, error) {
	pred := treeindex.Predicate{Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpEq, Value: path}}}
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
	return rows[0], true, nil
}

// GetAncestors implements engine.Engine. It issues a single scan for every
// ancestor prefix rather than one query per level.
func (e *Engine) GetAncestors(ctx *treeindex.Context, nodePK any) ([]any, error) {
	path, depth, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return nil, err
	}
	if depth <= 1 {
		return nil, nil
	}
	prefixes := make([]any, 0, depth-1)
	for level := 1; level < depth; level++ {
		prefixes = append(prefixes, path[:level*e.cfg.StepLen])
	}
	pred := treeindex.Predicate{Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpIn, Value: prefixes}}}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{
		OrderBy: []treeindex.OrderKey{{Column: ColPath}},
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

// GetDepth implements engine.Engine.
func (e *Engine) GetDepth(ctx *treeindex.Context, nodePK any) (int, error) {
	_, depth, err := e.nodeInfo(ctx, nodePK)
	return depth, err
}

// CountDescendants implements engine.DescendantCounter as a single scan
// count. MP has no interval column to subtract the way NS does, so this
// is "one query", not literally O(1) (spec section 4.F).
func (e *Engine) CountDescendants(ctx *treeindex.Context, nodePK any) (int64, error) {
	path, _, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpStartsWith, Value: path}},
		Filter: func(r treeindex.Row) bool {
			return r[ColPath].(string) != path
		},
	}
	iter, err := e.store.Scan(ctx, e.cfg.Table, pred, treeindex.ScanOptions{})
	if err != nil {
		return 0, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Insert implements engine.Engine.
func (e *Engine) Insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row) (treeindex.Row, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	row, err := e.insert(ctx, parent, before, data, "")
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return row, tx.Commit()
}

// insert is the transaction-less core of Insert, also used by LoadBulk.
// excludePath, when non-empty, is excluded from the shift-right rewrite;
// both callers pass "" (move calls shiftRight itself with the moving
// subtree's path).
func (e *Engine) insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row, excludePath string) (treeindex.Row, error) {
	parentPath, parentDepth := "", 0
	if parent != nil {
		p, d, err := e.nodeInfo(ctx, parent)
		if err != nil {
			return nil, err
		}
		parentPath, parentDepth = p, d
	}
	childDepth := parentDepth + 1

	var newPath string
	if before == nil {
		siblings, err := e.siblingsAt(ctx, parentPath, childDepth)
		if err != nil {
			return nil, err
		}
		next := uint64(1)
		if excludePath != "" {
			siblings = withoutPrefix(siblings, excludePath)
		}
		if len(siblings) > 0 {
			v, err := e.lastStepValue(siblings[len(siblings)-1][ColPath].(string))
			if err != nil {
				return nil, err
			}
			next = v + 1
		}
		newPath, err = e.appendStep(parentPath, next)
		if err != nil {
			return nil, err
		}
	} else {
		beforePath, _, err := e.nodeInfo(ctx, before)
		if err != nil {
			return nil, err
		}
		beforeVal, err := e.lastStepValue(beforePath)
		if err != nil {
			return nil, err
		}
		if err := e.shiftRight(ctx, parentPath, childDepth, beforeVal, excludePath); err != nil {
			return nil, err
		}
		newPath, err = e.appendStep(parentPath, beforeVal)
		if err != nil {
			return nil, err
		}
	}

	row := data.Clone()
	row[ColPath] = newPath
	row[ColDepth] = childDepth
	row[ColNumchild] = 0
	inserted, err := e.store.Insert(ctx, e.cfg.Table, row)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		if err := e.bumpNumchild(ctx, parent, 1); err != nil {
			return nil, err
		}
	}
	return inserted, nil
}

func withoutPrefix(rows []treeindex.Row, prefix string) []treeindex.Row {
	out := rows[:0:0]
	for _, r := range rows {
		if !strings.HasPrefix(r[ColPath].(string), prefix) {
			out = append(out, r)
		}
	}
	return out
}

// shiftRight makes room for a new step at value fromVal under parentPath,
// by incrementing the step-at-this-depth of every sibling whose own step
// is >= fromVal, and rewriting every descendant of those siblings in the
// same statement (their path carries the shifted prefix). This is the
// "single range-update statement that rewrites the path prefix" spec
// section 4.B requires.
func (e *Engine) shiftRight(ctx *treeindex.Context, parentPath string, childDepth int, fromVal uint64, excludePath string) error {
	stepLen := e.cfg.StepLen
	parentLen := len(parentPath)

	// Pre-check capacity using only the current maximum sibling step, so
	// the batch rewrite below is never issued if it would overflow partway
	// through.
	siblings, err := e.siblingsAt(ctx, parentPath, childDepth)
	if err != nil {
		return err
	}
	if excludePath != "" {
		siblings = withoutPrefix(siblings, excludePath)
	}
	var maxVal uint64
	var found bool
	for _, s := range siblings {
		v, err := e.lastStepValue(s[ColPath].(string))
		if err != nil {
			return err
		}
		if v >= fromVal && (!found || v > maxVal) {
			maxVal, found = v, true
		}
	}
	if !found {
		return nil // nothing at or after fromVal; no shift needed
	}
	if _, err := e.encodeStep(maxVal + 1); err != nil {
		return err
	}

	pred := treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpStartsWith, Value: parentPath}},
		Filter: func(r treeindex.Row) bool {
			p, _ := r[ColPath].(string)
			if len(p) < parentLen+stepLen {
				return false
			}
			if excludePath != "" && strings.HasPrefix(p, excludePath) {
				return false
			}
			v, err := e.decodeStep(p[parentLen : parentLen+stepLen])
			return err == nil && v >= fromVal
		},
	}
	update := treeindex.ColumnUpdate{Column: ColPath, Apply: func(r treeindex.Row) any {
		p := r[ColPath].(string)
		v, _ := e.decodeStep(p[parentLen : parentLen+stepLen])
		newStep, _ := e.encodeStep(v + 1)
		return p[:parentLen] + newStep + p[parentLen+stepLen:]
	}}
	_, err = e.store.BatchUpdate(ctx, e.cfg.Table, pred, update)
	return err
}

func (e *Engine) bumpNumchild(ctx *treeindex.Context, parent any, delta int) error {
	path, _, err := e.nodeInfo(ctx, parent)
	if err != nil {
		return err
	}
	row, ok, err := e.fetchByPath(ctx, path)
	if err != nil || !ok {
		return err
	}
	cur := row[ColNumchild].(int)
	return e.store.Update(ctx, e.cfg.Table, row[treeindex.PKColumn], treeindex.Row{ColNumchild: cur + delta})
}

// Move implements engine.Engine.
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
	oldPath, oldDepth, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return err
	}
	var oldParentPK any
	if oldDepth > 1 {
		oldParentPK, _, err = e.GetParent(ctx, nodePK)
		if err != nil {
			return err
		}
	}

	newParentPath, newParentDepth := "", 0
	if newParent != nil {
		p, d, err := e.nodeInfo(ctx, newParent)
		if err != nil {
			return err
		}
		newParentPath, newParentDepth = p, d
	}
	childDepth := newParentDepth + 1

	var newPrefix string
	if before == nil {
		siblings, err := e.siblingsAt(ctx, newParentPath, childDepth)
		if err != nil {
			return err
		}
		siblings = withoutPrefix(siblings, oldPath)
		next := uint64(1)
		if len(siblings) > 0 {
			v, err := e.lastStepValue(siblings[len(siblings)-1][ColPath].(string))
			if err != nil {
				return err
			}
			next = v + 1
		}
		newPrefix, err = e.appendStep(newParentPath, next)
		if err != nil {
			return err
		}
	} else {
		beforePath, _, err := e.nodeInfo(ctx, before)
		if err != nil {
			return err
		}
		beforeVal, err := e.lastStepValue(beforePath)
		if err != nil {
			return err
		}
		if err := e.shiftRight(ctx, newParentPath, childDepth, beforeVal, oldPath); err != nil {
			return err
		}
		newPrefix, err = e.appendStep(newParentPath, beforeVal)
		if err != nil {
			return err
		}
	}

	oldPathLen := len(oldPath)
	pred := treeindex.Predicate{Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpStartsWith, Value: oldPath}}}
	updates := []treeindex.ColumnUpdate{
		{Column: ColPath, Apply: func(r treeindex.Row) any {
			return newPrefix + r[ColPath].(string)[oldPathLen:]
		}},
		{Column: ColDepth, Apply: func(r treeindex.Row) any {
			return len(newPrefix+r[ColPath].(string)[oldPathLen:]) / e.cfg.StepLen
		}},
	}
	if _, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, updates...); err != nil {
		return err
	}

	if oldParentPK != nil {
		if err := e.bumpNumchild(ctx, oldParentPK, -1); err != nil {
			return err
		}
	}
	if newParent != nil {
		if err := e.bumpNumchild(ctx, newParent, 1); err != nil {
			return err
		}
	}
	return nil
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
	path, depth, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	var parentPK any
	if depth > 1 {
		parentPK, _, err = e.GetParent(ctx, nodePK)
		if err != nil {
			return 0, err
		}
	}
	deleted, err := e.store.DeleteWhere(ctx, e.cfg.Table, treeindex.Predicate{
		Conds: []treeindex.Cond{{Column: ColPath, Op: treeindex.OpStartsWith, Value: path}},
	})
	if err != nil {
		return 0, err
	}
	if parentPK != nil {
		if err := e.bumpNumchild(ctx, parentPK, -1); err != nil {
			return 0, err
		}
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

	byPath := make(map[string]treeindex.Row, len(rows))
	childCount := make(map[string]int, len(rows))
	for _, r := range rows {
		p, _ := r[ColPath].(string)
		byPath[p] = r
		if len(p) > e.cfg.StepLen {
			childCount[p[:len(p)-e.cfg.StepLen]]++
		}
	}

	var problems engine.Problems
	for _, r := range rows {
		pk := r[treeindex.PKColumn]
		path, _ := r[ColPath].(string)
		if !e.cfg.Alphabet.Valid(path) {
			problems.BadAlphabet = append(problems.BadAlphabet, pk)
			continue
		}
		if len(path)%e.cfg.StepLen != 0 {
			problems.BadPathLength = append(problems.BadPathLength, pk)
			continue
		}
		if len(path) > e.cfg.StepLen {
			parentPath := path[:len(path)-e.cfg.StepLen]
			if _, ok := byPath[parentPath]; !ok {
				problems.Orphans = append(problems.Orphans, pk)
				continue
			}
		}
		expectedDepth := len(path) / e.cfg.StepLen
		if d, _ := r[ColDepth].(int); d != expectedDepth {
			problems.BadDepth = append(problems.BadDepth, pk)
			continue
		}
		if n, _ := r[ColNumchild].(int); n != childCount[path] {
			problems.BadNumchild = append(problems.BadNumchild, pk)
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
	childCount := make(map[string]int, len(rows))
	for _, r := range rows {
		p, _ := r[ColPath].(string)
		if len(p) > e.cfg.StepLen {
			childCount[p[:len(p)-e.cfg.StepLen]]++
		}
	}
	stepLen := e.cfg.StepLen
	_, err = e.store.BatchUpdate(ctx, e.cfg.Table, treeindex.All(),
		treeindex.ColumnUpdate{Column: ColDepth, Apply: func(r treeindex.Row) any {
			return len(r[ColPath].(string)) / stepLen
		}},
		treeindex.ColumnUpdate{Column: ColNumchild, Apply: func(r treeindex.Row) any {
			return childCount[r[ColPath].(string)]
		}},
	)
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
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return treeindex.BulkNode{}, err
	}
	if !ok {
		return treeindex.BulkNode{}, fmt.Errorf("mp: no node with primary key %v", pk)
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
		case ColPath, ColDepth, ColNumchild:
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
		inserted, err := e.insert(ctx, parent, nil, row, "")
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
