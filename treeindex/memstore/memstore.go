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

// Package memstore is a reference, in-process implementation of
// treeindex.Store, grounded on the teacher's enginetest/mysqlshim package
// (Database/Table/tableEditor shimming a live MySQL connection) but
// generalised to shim an in-memory map of rows instead of a running
// server. It backs this module's own test suite and the example program;
// a host embedding a real database adapts its own driver to
// treeindex.Store the same way mysqlshim adapted go-mysql-server's own
// wire protocol.
//
// Concurrency model: Begin acquires a single store-wide mutex and every
// statement issued before the matching Commit/Rollback is serialised
// behind it, which is the simplest correct reading of spec section 5's
// "repeatable-read or stricter" recommendation for a single-process
// store. A networked adapter would instead delegate isolation to its own
// database.
package memstore

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dolthub/go-tree-index/treeindex"
)

type tableData struct {
	rows map[any]treeindex.Row
}

// Store is an in-memory treeindex.Store.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*tableData
	current *txn
}

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]*tableData)}
}

func (s *Store) table(name string) *tableData {
	t, ok := s.tables[name]
	if !ok {
		t = &tableData{rows: make(map[any]treeindex.Row)}
		s.tables[name] = t
	}
	return t
}

type txn struct {
	store *Store
	undo  []func()
	done  bool
}

// Begin implements treeindex.Store.
func (s *Store) Begin(ctx *treeindex.Context) (treeindex.Tx, error) {
	s.mu.Lock()
	t := &txn{store: s}
	s.current = t
	ctx.Logger().Debug("tx begin")
	return t, nil
}

// Commit implements treeindex.Tx.
func (t *txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.undo = nil
	t.store.current = nil
	t.store.mu.Unlock()
	return nil
}

// Rollback implements treeindex.Tx.
func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.current = nil
	t.store.mu.Unlock()
	return nil
}

func (s *Store) recordUndo(fn func()) {
	if s.current != nil {
		s.current.undo = append(s.current.undo, fn)
	}
}

// Fetch implements treeindex.Store.
func (s *Store) Fetch(ctx *treeindex.Context, table string, pk any) (treeindex.Row, bool, error) {
	row, ok := s.table(table).rows[pk]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

// Scan implements treeindex.Store.
func (s *Store) Scan(ctx *treeindex.Context, table string, pred treeindex.Predicate, opts treeindex.ScanOptions) (treeindex.RowIter, error) {
	t := s.table(table)
	var matched []treeindex.Row
	for _, row := range t.rows {
		if matches(row, pred) {
			matched = append(matched, row.Clone())
		}
	}
	if len(opts.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return lessByOrder(matched[i], matched[j], opts.OrderBy)
		})
	}
	return &sliceIter{rows: matched}, nil
}

func matches(row treeindex.Row, pred treeindex.Predicate) bool {
	for _, c := range pred.Conds {
		if !matchCond(row, c) {
			return false
		}
	}
	if pred.Filter != nil && !pred.Filter(row) {
		return false
	}
	return true
}

func matchCond(row treeindex.Row, c treeindex.Cond) bool {
	v := row[c.Column]
	switch c.Op {
	case treeindex.OpEq:
		return compareEqual(v, c.Value)
	case treeindex.OpLt:
		return compareLess(v, c.Value)
	case treeindex.OpLte:
		return compareLess(v, c.Value) || compareEqual(v, c.Value)
	case treeindex.OpGt:
		return compareLess(c.Value, v)
	case treeindex.OpGte:
		return compareLess(c.Value, v) || compareEqual(c.Value, v)
	case treeindex.OpStartsWith:
		s, _ := v.(string)
		prefix, _ := c.Value.(string)
		return strings.HasPrefix(s, prefix)
	case treeindex.OpIn:
		values, _ := c.Value.([]any)
		for _, candidate := range values {
			if compareEqual(v, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	default:
		return true
	}
}

func compareLess(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return av < bv
	case int:
		bv := toInt64(b)
		return int64(av) < bv
	case int64:
		return av < toInt64(b)
	case uint64:
		return av < uint64(toInt64(b))
	default:
		return false
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

func lessByOrder(a, b treeindex.Row, order []treeindex.OrderKey) bool {
	for _, k := range order {
		av, bv := a[k.Column], b[k.Column]
		if compareEqual(av, bv) {
			continue
		}
		less := compareLess(av, bv)
		if k.Desc {
			return !less
		}
		return less
	}
	return false
}

// Insert implements treeindex.Store.
func (s *Store) Insert(ctx *treeindex.Context, table string, row treeindex.Row) (treeindex.Row, error) {
	t := s.table(table)
	out := row.Clone()
	pk := out[treeindex.PKColumn]
	if pk == nil {
		pk = uuid.NewString()
		out[treeindex.PKColumn] = pk
	} else if _, exists := t.rows[pk]; exists {
		return nil, fmt.Errorf("memstore: table %q: primary key %v already exists", table, pk)
	}
	t.rows[pk] = out
	s.recordUndo(func() { delete(t.rows, pk) })
	ctx.Logger().WithField("pk", pk).Debug("insert")
	return out.Clone(), nil
}

// Update implements treeindex.Store.
func (s *Store) Update(ctx *treeindex.Context, table string, pk any, set treeindex.Row) error {
	t := s.table(table)
	row, ok := t.rows[pk]
	if !ok {
		return fmt.Errorf("memstore: table %q: no row with primary key %v", table, pk)
	}
	before := row.Clone()
	for k, v := range set {
		row[k] = v
	}
	s.recordUndo(func() { t.rows[pk] = before })
	return nil
}

// BatchUpdate implements treeindex.Store.
func (s *Store) BatchUpdate(ctx *treeindex.Context, table string, pred treeindex.Predicate, updates ...treeindex.ColumnUpdate) (int64, error) {
	t := s.table(table)
	var count int64
	for pk, row := range t.rows {
		if !matches(row, pred) {
			continue
		}
		before := row.Clone()
		for _, u := range updates {
			row[u.Column] = u.Apply(before)
		}
		s.recordUndo(func(pk any, before treeindex.Row) func() {
			return func() { t.rows[pk] = before }
		}(pk, before))
		count++
	}
	ctx.Logger().WithField("count", count).Debug("batch update")
	return count, nil
}

// DeleteWhere implements treeindex.Store.
func (s *Store) DeleteWhere(ctx *treeindex.Context, table string, pred treeindex.Predicate) ([]treeindex.Row, error) {
	t := s.table(table)
	var deleted []treeindex.Row
	for pk, row := range t.rows {
		if matches(row, pred) {
			deleted = append(deleted, row.Clone())
		}
	}
	for _, row := range deleted {
		pk := row[treeindex.PKColumn]
		s.recordUndo(func(pk any, row treeindex.Row) func() {
			return func() { t.rows[pk] = row }
		}(pk, row))
		delete(t.rows, pk)
	}
	ctx.Logger().WithField("count", len(deleted)).Debug("delete where")
	return deleted, nil
}

type sliceIter struct {
	rows []treeindex.Row
	pos  int
}

func (it *sliceIter) Next(ctx *treeindex.Context) (treeindex.Row, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIter) Close(ctx *treeindex.Context) error {
	return nil
}
