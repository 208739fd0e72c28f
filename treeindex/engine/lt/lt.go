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

// Package lt implements the LTree tree encoding (spec section 4.E): a
// node's path is a dot-separated sequence of variable-length labels drawn
// from an insertion-friendly alphabet, so that plain lexicographic string
// comparison of the whole path already yields pre-order traversal order --
// no interval or step-width bookkeeping is needed, only the label
// generator in label.go.
package lt

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// Bookkeeping column names.
const (
	ColPath     = "path"
	ColDepth    = "depth"
	ColNumchild = "numchild"
)

const sep = "."

// maxShiftAttempts bounds the shift-right rebalance before falling back to
// a deterministic relabel of the whole sibling group (spec section 9's
// open question: the source asserts on a third failure, this module
// never does).
const maxShiftAttempts = 2

// Config is the LTree engine's table configuration.
type Config struct {
	engine.Config
}

// DefaultConfig returns a Config with no extra tuning.
func DefaultConfig(table string) Config {
	return Config{Config: engine.Config{Table: table}}
}

// Engine is the LTree tree-encoding engine.
type Engine struct {
	store treeindex.Store
	cfg   Config
}

// New validates cfg and returns an Engine bound to store.
func New(store treeindex.Store, cfg Config) (*Engine, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("lt: Config.Table is required")
	}
	return &Engine{store: store, cfg: cfg}, nil
}

// Config implements engine.Engine.
func (e *Engine) Config() engine.Config {
	return e.cfg.Config
}

func lastLabel(path string) string {
	if i := strings.LastIndexByte(path, sep[0]); i >= 0 {
		return path[i+1:]
	}
	return path
}

func trimLastSegment(path string) string {
	if i := strings.LastIndexByte(path, sep[0]); i >= 0 {
		return path[:i]
	}
	return ""
}

func buildPath(parentPath, label string) string {
	if parentPath == "" {
		return label
	}
	return parentPath + sep + label
}

func depthOf(path string) int {
	return strings.Count(path, sep) + 1
}

func (e *Engine) nodeInfo(ctx *treeindex.Context, pk any) (path string, depth int, err error) {
	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, fmt.Errorf("lt: no node with primary key %v", pk)
	}
	return row[ColPath].(string), row[ColDepth].(int), nil
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

// siblingsAt returns every row directly under parentPath at childDepth, in
// path order, which for dot-separated labels is always sibling order.
func (e *Engine) siblingsAt(ctx *treeindex.Context, parentPath string, childDepth int) ([]treeindex.Row, error) {
	conds := []treeindex.Cond{{Column: ColDepth, Op: treeindex.OpEq, Value: childDepth}}
	if parentPath != "" {
		conds = append(conds, treeindex.Cond{Column: ColPath, Op: treeindex.OpStartsWith, Value: parentPath})
	}
	pred := treeindex.Predicate{Conds: conds}
	if parentPath != "" {
		prefix := parentPath + sep
		pred.Filter = func(r treeindex.Row) bool {
			return strings.HasPrefix(r[ColPath].(string), prefix)
		}
	}
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
	parentPath := trimLastSegment(path)
	if parentPath == "" && !strings.Contains(path, sep) {
		return nil, false, nil
	}
	row, ok, err := e.fetchByPath(ctx, parentPath)
	if err != nil || !ok {
		return nil, false, err
	}
	return row[treeindex.PKColumn], true, nil
}

// GetAncestors implements engine.Engine. Every ancestor prefix is fetched
// with one scan, the same way mp.Engine does it -- the dot separator
// sorting below every label symbol means an ancestor's path is always a
// lexicographic prefix of its descendants', so ORDER BY path already
// yields root-first order.
func (e *Engine) GetAncestors(ctx *treeindex.Context, nodePK any) ([]any, error) {
	path, depth, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return nil, err
	}
	if depth <= 1 {
		return nil, nil
	}
	segments := strings.Split(path, sep)
	prefixes := make([]any, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		prefixes = append(prefixes, strings.Join(segments[:i], sep))
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
// count rather than a literal O(1) lookup -- LTree has no interval column
// to subtract the way NS does, so "aggregate query" here means "one
// query", not "constant time" (spec section 4.F).
func (e *Engine) CountDescendants(ctx *treeindex.Context, nodePK any) (int64, error) {
	path, _, err := e.nodeInfo(ctx, nodePK)
	if err != nil {
		return 0, err
	}
	prefix := path + sep
	pred := treeindex.Predicate{Filter: func(r treeindex.Row) bool {
		return strings.HasPrefix(r[ColPath].(string), prefix)
	}}
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

// neighborInfo returns the after/before labels and the skip set
// generateLabel needs to place a new sibling immediately before the
// sibling at idx (len(siblings) meaning "trailing").
func neighborInfo(siblings []treeindex.Row, idx int) (after string, hasAfter bool, before string, hasBefore bool, skip map[string]bool) {
	skip = make(map[string]bool, len(siblings))
	for _, s := range siblings {
		skip[lastLabel(s[ColPath].(string))] = true
	}
	if idx > 0 {
		after, hasAfter = lastLabel(siblings[idx-1][ColPath].(string)), true
	}
	if idx >= 0 && idx < len(siblings) {
		before, hasBefore = lastLabel(siblings[idx][ColPath].(string)), true
	}
	return
}

func indexOfPK(rows []treeindex.Row, pk any) int {
	for i, r := range rows {
		if r[treeindex.PKColumn] == pk {
			return i
		}
	}
	return -1
}

func withoutPrefix(rows []treeindex.Row, prefix string) []treeindex.Row {
	out := rows[:0:0]
	for _, r := range rows {
		p := r[ColPath].(string)
		if p != prefix && !strings.HasPrefix(p, prefix+sep) {
			out = append(out, r)
		}
	}
	return out
}

// resolveLabel picks the new label for a sibling to be inserted (or moved)
// immediately before beforePK under parentPath, applying the shift-right
// rebalance and, failing that, a deterministic relabel of the whole
// sibling group, so that Insert and Move never actually raise
// ErrPathOverflow in ordinary use (spec section 9's open question).
func (e *Engine) resolveLabel(ctx *treeindex.Context, parentPath string, childDepth int, beforePK any, excludePath string) (string, error) {
	siblingsFor := func() ([]treeindex.Row, int, error) {
		siblings, err := e.siblingsAt(ctx, parentPath, childDepth)
		if err != nil {
			return nil, 0, err
		}
		if excludePath != "" {
			siblings = withoutPrefix(siblings, excludePath)
		}
		idx := len(siblings)
		if beforePK != nil {
			idx = indexOfPK(siblings, beforePK)
			if idx < 0 {
				return nil, 0, fmt.Errorf("lt: before %v is not a child of the target parent", beforePK)
			}
		}
		return siblings, idx, nil
	}

	for attempt := 0; ; attempt++ {
		siblings, idx, err := siblingsFor()
		if err != nil {
			return "", err
		}
		after, hasAfter, before, hasBefore, skip := neighborInfo(siblings, idx)
		label, err := generateLabel(after, hasAfter, before, hasBefore, skip)
		if err == nil {
			return label, nil
		}
		if !treeindex.ErrInvalidLabelConstraints.Is(err) {
			return "", err
		}
		if attempt >= maxShiftAttempts || idx < 0 || idx >= len(siblings) {
			break
		}
		if err := e.shiftSiblingsFrom(ctx, parentPath, siblings[idx][ColPath].(string)); err != nil {
			return "", err
		}
	}

	if err := e.relabelSiblingGroup(ctx, parentPath, childDepth); err != nil {
		return "", err
	}
	siblings, idx, err := siblingsFor()
	if err != nil {
		return "", err
	}
	after, hasAfter, before, hasBefore, skip := neighborInfo(siblings, idx)
	label, err := generateLabel(after, hasAfter, before, hasBefore, skip)
	if err != nil {
		return "", treeindex.ErrPathOverflow.New(parentPath)
	}
	return label, nil
}

// childSegment returns the portion of path immediately under parentPath
// (its one child-level label), and the index in path right after that
// segment -- the point to splice a rebalance character into, or the
// boundary a prefix rewrite replaces up to.
func childSegment(path, parentPath string) (seg string, segEnd int, ok bool) {
	start := 0
	if parentPath != "" {
		prefix := parentPath + sep
		if !strings.HasPrefix(path, prefix) {
			return "", 0, false
		}
		start = len(prefix)
	}
	rest := path[start:]
	if i := strings.IndexByte(rest, sep[0]); i >= 0 {
		return rest[:i], start + i, true
	}
	return rest, len(path), true
}

// shiftSiblingsFrom appends "A" to yPath's last label and to every
// subsequent sibling's last label (and, in the same statement, to every
// descendant of those siblings, since their paths carry the shifted
// label as a prefix segment) -- the shift-right rebalance of spec
// section 4.E, expressed as the single computed-expression update
// section 9 requires.
func (e *Engine) shiftSiblingsFrom(ctx *treeindex.Context, parentPath, yPath string) error {
	yLabel, _, ok := childSegment(yPath, parentPath)
	if !ok {
		return fmt.Errorf("lt: %q is not a child of %q", yPath, parentPath)
	}
	conds := []treeindex.Cond{}
	if parentPath != "" {
		conds = append(conds, treeindex.Cond{Column: ColPath, Op: treeindex.OpStartsWith, Value: parentPath})
	}
	pred := treeindex.Predicate{
		Conds: conds,
		Filter: func(r treeindex.Row) bool {
			seg, _, ok := childSegment(r[ColPath].(string), parentPath)
			return ok && seg >= yLabel
		},
	}
	update := treeindex.ColumnUpdate{Column: ColPath, Apply: func(r treeindex.Row) any {
		path := r[ColPath].(string)
		_, segEnd, _ := childSegment(path, parentPath)
		return path[:segEnd] + "A" + path[segEnd:]
	}}
	_, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, update)
	return err
}

// relabelSiblingGroup is the deterministic fallback of spec section 9's
// open question: every sibling under parentPath is given a fresh label
// generated with no before constraint (so the full letters alphabet is
// available), one sibling subtree at a time via rewritePrefix, which
// restores maximal room between every pair of siblings without ever
// asserting PathOverflow.
func (e *Engine) relabelSiblingGroup(ctx *treeindex.Context, parentPath string, childDepth int) error {
	siblings, err := e.siblingsAt(ctx, parentPath, childDepth)
	if err != nil {
		return err
	}
	var prev string
	var hasPrev bool
	for _, row := range siblings {
		oldPath := row[ColPath].(string)
		label, err := generateLabel(prev, hasPrev, "", false, nil)
		if err != nil {
			return err
		}
		prev, hasPrev = label, true
		newPath := buildPath(parentPath, label)
		if newPath == oldPath {
			continue
		}
		if err := e.rewritePrefix(ctx, oldPath, newPath); err != nil {
			return err
		}
	}
	return nil
}

// rewritePrefix rewrites oldPrefix and every descendant path under it
// (oldPrefix itself plus anything with oldPrefix+"." as a lexicographic
// prefix) to carry newPrefix instead, in one statement -- used by Move
// and by the relabel fallback.
func (e *Engine) rewritePrefix(ctx *treeindex.Context, oldPrefix, newPrefix string) error {
	pred := treeindex.Predicate{Filter: func(r treeindex.Row) bool {
		p := r[ColPath].(string)
		return p == oldPrefix || strings.HasPrefix(p, oldPrefix+sep)
	}}
	updates := []treeindex.ColumnUpdate{
		{Column: ColPath, Apply: func(r treeindex.Row) any {
			p := r[ColPath].(string)
			if p == oldPrefix {
				return newPrefix
			}
			return newPrefix + p[len(oldPrefix):]
		}},
		{Column: ColDepth, Apply: func(r treeindex.Row) any {
			p := r[ColPath].(string)
			var newPath string
			if p == oldPrefix {
				newPath = newPrefix
			} else {
				newPath = newPrefix + p[len(oldPrefix):]
			}
			return depthOf(newPath)
		}},
	}
	_, err := e.store.BatchUpdate(ctx, e.cfg.Table, pred, updates...)
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

// insert is the transaction-less core of Insert, also used by loadBulk.
// excludePath, when non-empty, keeps a moving subtree's own rows out of
// its destination siblings' neighbor computation.
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

	label, err := e.resolveLabel(ctx, parentPath, childDepth, before, excludePath)
	if err != nil {
		return nil, err
	}
	newPath := buildPath(parentPath, label)

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

	label, err := e.resolveLabel(ctx, newParentPath, childDepth, before, oldPath)
	if err != nil {
		return err
	}
	newPath := buildPath(newParentPath, label)

	// The moved node's path (and its descendants') is written last, per
	// spec section 4.E's Move description.
	if err := e.rewritePrefix(ctx, oldPath, newPath); err != nil {
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
		Filter: func(r treeindex.Row) bool {
			p := r[ColPath].(string)
			return p == path || strings.HasPrefix(p, path+sep)
		},
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

// FindProblems implements engine.Engine. Only Orphans, BadDepth and
// BadNumchild are populated; BadAlphabet/BadPathLength are mp-specific
// (engine.Problems' doc comment).
func (e *Engine) FindProblems(ctx *treeindex.Context) (engine.Problems, error) {
	iter, err := e.store.Scan(ctx, e.cfg.Table, treeindex.All(), treeindex.ScanOptions{})
	if err != nil {
		return engine.Problems{}, err
	}
	rows, err := treeindex.DrainAll(ctx, iter)
	if err != nil {
		return engine.Problems{}, err
	}

	byPath := make(map[string]bool, len(rows))
	childCount := make(map[string]int, len(rows))
	for _, r := range rows {
		p := r[ColPath].(string)
		byPath[p] = true
		childCount[trimLastSegment(p)]++
	}

	var problems engine.Problems
	for _, r := range rows {
		pk := r[treeindex.PKColumn]
		path := r[ColPath].(string)
		parentPath := trimLastSegment(path)
		if strings.Contains(path, sep) && !byPath[parentPath] {
			problems.Orphans = append(problems.Orphans, pk)
			continue
		}
		if d, _ := r[ColDepth].(int); d != depthOf(path) {
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
		childCount[trimLastSegment(r[ColPath].(string))]++
	}
	_, err = e.store.BatchUpdate(ctx, e.cfg.Table, treeindex.All(),
		treeindex.ColumnUpdate{Column: ColDepth, Apply: func(r treeindex.Row) any {
			return depthOf(r[ColPath].(string))
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
		return treeindex.BulkNode{}, fmt.Errorf("lt: no node with primary key %v", pk)
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
	for _, n := range data {
		row := n.Data.Clone()
		if !keepIDs {
			delete(row, treeindex.PKColumn)
		}
		inserted, err := e.insert(ctx, parent, nil, row, "")
		if err != nil {
			return nil, err
		}
		pk := inserted[treeindex.PKColumn]
		ids = append(ids, pk)
		childIDs, err := e.loadBulk(ctx, n.Children, pk, keepIDs)
		if err != nil {
			return nil, err
		}
		ids = append(ids, childIDs...)
	}
	return ids, nil
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.DescendantCounter = (*Engine)(nil)
