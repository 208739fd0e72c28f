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

// Package treeindex defines the row-store boundary that every tree-encoding
// engine is built against (spec section 6): a relational key-value store of
// rows, addressed by primary key or by predicate, mutated by row writes or
// by a single computed-expression batch update, all inside a transaction.
//
// The package itself holds no tree logic; that lives in the engine
// sub-packages (numconv, engine/mp, engine/ns, engine/al, engine/lt) and in
// the generic node wrapper (package node). treeindex only fixes the
// vocabulary those packages share.
package treeindex

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// PKColumn is the reserved column name a Store uses to carry a row's
// primary key value inside its own data map, so that a Row returned from
// Fetch or Scan is self-describing.
const PKColumn = "id"

// Row is one node's columns, bookkeeping and user data together. It is the
// unit of exchange across the store boundary.
type Row map[string]any

// Clone returns a shallow copy, safe to mutate without affecting the
// original (scalar column values are never mutated in place by this
// module).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's primary key, or nil if it carries none yet.
func (r Row) ID() any {
	return r[PKColumn]
}

// Context wraps context.Context with the request-scoped logger that the
// reference store writes one debug-level line to per statement, mirroring the
// teacher's sql.Context carrying logging/session state alongside
// cancellation.
type Context struct {
	context.Context
	log *logrus.Entry
}

// NewContext builds a Context for a single node operation, tagged with the
// table and operation name so every statement it causes can be correlated
// in logs.
func NewContext(parent context.Context, log *logrus.Entry, table, op string) *Context {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Context{
		Context: parent,
		log:     log.WithFields(logrus.Fields{"table": table, "op": op}),
	}
}

// Logger returns the context's structured logger.
func (c *Context) Logger() *logrus.Entry {
	return c.log
}

// Op is an ordered comparison an engine may ask a Store to evaluate as part
// of a scan predicate.
type Op int

const (
	// OpEq matches rows whose column equals Value.
	OpEq Op = iota
	// OpLt matches rows whose column is less than Value.
	OpLt
	// OpLte matches rows whose column is less than or equal to Value.
	OpLte
	// OpGt matches rows whose column is greater than Value.
	OpGt
	// OpGte matches rows whose column is greater than or equal to Value.
	OpGte
	// OpStartsWith matches rows whose (string) column has Value as a
	// prefix. Used for MP/LT path range scans and the LT
	// ancestor/descendant operator.
	OpStartsWith
	// OpIn matches rows whose column is a member of Value ([]any).
	OpIn
)

// Cond is one column comparison; a Predicate ANDs a list of them together.
// This is the "comparison operators used in section 4" primitive spec
// section 6 asks the store boundary to expose: equality, range, starts-with
// and set membership are enough to express every scan MP, NS, AL and LT
// need, without building a general query planner (an explicit Non-goal).
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Predicate is a conjunction of Conds, optionally narrowed further by
// Filter. An empty Predicate matches every row.
//
// Filter exists for the handful of per-row tests that do not reduce to a
// single column comparison (e.g. "the step at this path depth is >= N"):
// it is evaluated in-process by a reference Store, the same way a SQL
// adapter would compile the same test into a WHERE clause fragment. It is
// deliberately not given access to anything beyond the row itself, so it
// can never become a join or a subquery -- this module has no query
// planner.
type Predicate struct {
	Conds  []Cond
	Filter func(Row) bool
}

// All returns a Predicate matching every row of a table.
func All() Predicate { return Predicate{} }

// And builds a Predicate from the given conditions.
func And(conds ...Cond) Predicate { return Predicate{Conds: conds} }

// OrderKey is one column of an ORDER BY clause for Store.Scan.
type OrderKey struct {
	Column string
	Desc   bool
}

// ScanOptions controls the order rows are returned in. Engines rely on
// ordering to read sibling groups and path ranges in the order I2/I4
// require without re-sorting in memory.
type ScanOptions struct {
	OrderBy []OrderKey
}

// ColumnUpdate is one computed-column batch update: the new value for
// Column is Apply(currentRow), evaluated by the store once per matching
// row but issued by the engine as a single BatchUpdate call rather than as
// N row-by-row Update calls. This is the primitive section 9 requires for
// NS interval shifts, MP sibling-path rewrites and LT path-prefix
// rewrites: the engine never loads the affected rows into memory to
// recompute them one at a time.
type ColumnUpdate struct {
	Column string
	Apply  func(row Row) any
}

// Set builds a ColumnUpdate that always writes a constant value.
func Set(column string, value any) ColumnUpdate {
	return ColumnUpdate{Column: column, Apply: func(Row) any { return value }}
}

// RowIter is an ordered cursor over a Store.Scan result. Next returns
// io.EOF once exhausted, matching sql.RowIter's convention in the teacher.
type RowIter interface {
	Next(ctx *Context) (Row, error)
	Close(ctx *Context) error
}

// Tx is a store transaction handle. Every mutating node operation runs
// inside exactly one Tx: either every statement it issues commits, or none
// do (spec section 7's propagation rule).
type Tx interface {
	Commit() error
	Rollback() error
}

// Store is the relational key-value boundary every engine is built
// against (spec section 6). A host adapts its own database to this
// interface; package memstore ships an in-process reference
// implementation used by this module's own tests and example.
type Store interface {
	// Begin starts a transaction. Every engine method that mutates state
	// calls Begin first and Commits or Rolls back before returning.
	Begin(ctx *Context) (Tx, error)

	// Fetch reads one row by primary key.
	Fetch(ctx *Context, table string, pk any) (Row, bool, error)

	// Scan reads rows matching pred, in the order opts.OrderBy requests.
	Scan(ctx *Context, table string, pred Predicate, opts ScanOptions) (RowIter, error)

	// Insert writes a new row. If row already carries PKColumn, that
	// value is used verbatim (a collision is a store-level failure);
	// otherwise the store mints one and sets it on the returned row.
	Insert(ctx *Context, table string, row Row) (Row, error)

	// Update overwrites a subset of columns on one row addressed by
	// primary key.
	Update(ctx *Context, table string, pk any, set Row) error

	// BatchUpdate applies updates to every row matching pred, as one
	// statement; it returns the number of rows touched.
	BatchUpdate(ctx *Context, table string, pred Predicate, updates ...ColumnUpdate) (int64, error)

	// DeleteWhere deletes every row matching pred and returns the deleted
	// rows (pre-deletion values), so that callers needing to remember
	// what was removed -- NS gap contraction, LT minimal-covering-set
	// bookkeeping -- do not need a separate read-then-delete round trip.
	DeleteWhere(ctx *Context, table string, pred Predicate) ([]Row, error)
}

// drainAll reads every row off iter and closes it. Helper for engines that
// need a full materialised slice: sibling groups and small scans, and the
// whole-table scans of find_problems and fix_tree.
func drainAll(ctx *Context, iter RowIter) ([]Row, error) {
	var rows []Row
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = iter.Close(ctx)
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, iter.Close(ctx)
}

// DrainAll is the exported form of drainAll, available to engine packages.
func DrainAll(ctx *Context, iter RowIter) ([]Row, error) {
	return drainAll(ctx, iter)
}
