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

// Package engine declares the capability every tree-encoding engine
// (mp, ns, al, lt) implements, and the shared configuration and position
// vocabulary the common node protocol (package node) validates once before
// dispatching to whichever engine a table is bound to.
package engine

import (
	"github.com/dolthub/go-tree-index/treeindex"
)

// Position is one of the values the node protocol's add_sibling and move
// accept (spec section 4.F).
type Position string

// Position vocabulary.
const (
	FirstSibling  Position = "first-sibling"
	Left          Position = "left"
	Right         Position = "right"
	LastSibling   Position = "last-sibling"
	SortedSibling Position = "sorted-sibling"
	FirstChild    Position = "first-child"
	LastChild     Position = "last-child"
	SortedChild   Position = "sorted-child"
)

// Sorted reports whether pos is one of the sorted-* positions.
func (p Position) Sorted() bool {
	return p == SortedSibling || p == SortedChild
}

// IsChildPosition reports whether pos places a node as a child (as
// opposed to a sibling) of the reference node.
func (p Position) IsChildPosition() bool {
	return p == FirstChild || p == LastChild || p == SortedChild
}

// Config is the per-table configuration every engine is constructed from.
// It is a plain struct literal, validated once at construction time,
// mirroring how the teacher validates a sql.PrimaryKeySchema at
// CreateTable rather than parsing it from a config file.
type Config struct {
	// Table is the store table name this engine manages.
	Table string

	// NodeOrderBy is the ordered list of user-column names that define
	// sorted mode. Empty means unsorted: sibling order is an explicit
	// part of the caller's intent (spec section 3).
	NodeOrderBy []string
}

// Sorted reports whether the table is in sorted mode.
func (c Config) Sorted() bool {
	return len(c.NodeOrderBy) > 0
}

// Problems is find_problems' result: five disjoint id sets (spec section
// 4.B). Only the Materialized-Path engine populates BadAlphabet and
// BadPathLength; the others leave them nil.
type Problems struct {
	BadAlphabet   []any
	BadPathLength []any
	Orphans       []any
	BadDepth      []any
	BadNumchild   []any
}

// Empty reports whether every set in p is empty, i.e. the table is
// structurally consistent (spec property P1).
func (p Problems) Empty() bool {
	return len(p.BadAlphabet) == 0 && len(p.BadPathLength) == 0 &&
		len(p.Orphans) == 0 && len(p.BadDepth) == 0 && len(p.BadNumchild) == 0
}

// Engine is the capability set every encoding implements: add_root,
// add_child, add_sibling, move, delete, the enumeration primitives the
// common node protocol composes richer operations from, find_problems,
// fix_tree and the bulk dump/load pair (spec section 4.F / section 9's
// "concrete type implementing a shared tree-engine capability set").
//
// Every method takes a *treeindex.Context. The mutating methods (Insert,
// Move, Delete, FixTree, LoadBulk) run inside exactly one store
// transaction: implementations call Store.Begin as their first statement
// and either Commit or Rollback before returning. The read methods do not
// open a transaction.
type Engine interface {
	// Config returns the engine's table configuration.
	Config() Config

	// Insert creates data as a new member of parent's child group (or, if
	// parent is nil, of the forest's roots), positioned immediately
	// before the existing child/root "before", or as the trailing
	// member if before is nil. This single primitive implements
	// add_root, add_child and every add_sibling position: package node
	// resolves the position vocabulary and sorted-mode placement down to
	// a (parent, before) pair before calling it, so each engine only has
	// to know how to make room immediately before one sibling.
	Insert(ctx *treeindex.Context, parent any, before any, data treeindex.Row) (treeindex.Row, error)

	// Move relocates the subtree rooted at nodePK to become a member of
	// newParent's child group (nil for the forest roots), immediately
	// before "before" (nil for trailing). The caller (package node) has
	// already rejected newParent == nodePK or newParent a descendant of
	// nodePK.
	Move(ctx *treeindex.Context, nodePK any, newParent any, before any) error

	// Delete removes nodePK and every descendant, atomically, and
	// returns the number of rows removed.
	Delete(ctx *treeindex.Context, nodePK any) (int64, error)

	// GetParent returns the primary key of nodePK's parent, or ok=false
	// if nodePK is a root.
	GetParent(ctx *treeindex.Context, nodePK any) (pk any, ok bool, err error)

	// GetChildren returns the primary keys of parent's immediate
	// children (or, if parent is nil, of the forest's roots) in the
	// engine's natural order.
	GetChildren(ctx *treeindex.Context, parent any) ([]any, error)

	// GetAncestors returns nodePK's ancestor chain, root-first (spec
	// invariant I5).
	GetAncestors(ctx *treeindex.Context, nodePK any) ([]any, error)

	// GetDepth returns nodePK's depth; roots have depth 1 (I3).
	GetDepth(ctx *treeindex.Context, nodePK any) (int, error)

	// FindProblems scans the whole table and reports the five
	// consistency findings of spec section 4.B / property P1.
	FindProblems(ctx *treeindex.Context) (Problems, error)

	// FixTree repairs bookkeeping columns. destructive selects the dump
	// -> delete-all -> reload strategy; non-destructive only rewrites
	// derived columns in place (spec section 4.B).
	FixTree(ctx *treeindex.Context, destructive bool) error

	// DumpBulk returns the subtree rooted at parent (or the whole forest
	// if parent is nil) as nested {data, children} trees, in natural
	// order.
	DumpBulk(ctx *treeindex.Context, parent any, keepIDs bool) ([]treeindex.BulkNode, error)

	// LoadBulk inserts data as parent's new trailing children (or as new
	// trailing roots if parent is nil) and returns the inserted primary
	// keys in pre-order. All-or-nothing.
	LoadBulk(ctx *treeindex.Context, data []treeindex.BulkNode, parent any, keepIDs bool) ([]any, error)
}

// DescendantCounter is implemented by engines that can answer
// get_descendants_group_count with a single aggregate query instead of one
// full traversal per child (spec section 4.F: required for MP/NS/LT,
// optional -- and absent -- for AL).
type DescendantCounter interface {
	Engine
	CountDescendants(ctx *treeindex.Context, nodePK any) (int64, error)
}
