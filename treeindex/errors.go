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

package treeindex

import "gopkg.in/src-d/go-errors.v1"

// Stable error identifiers for the node protocol, per spec section 6.
// Hosts that need to branch on a specific failure should compare with
// Kind.Is rather than string-matching Error().
var (
	// ErrInvalidPosition is raised when a position string is not one of
	// the values in the position vocabulary, or is not legal for the
	// table's sorted/unsorted mode.
	ErrInvalidPosition = errors.NewKind("invalid position %q for table %q")

	// ErrMissingNodeOrderBy is raised when a sorted-* position is used on
	// a table with an empty node_order_by.
	ErrMissingNodeOrderBy = errors.NewKind("position %q requires node_order_by on table %q")

	// ErrInvalidMoveToDescendant is raised when move's target is the
	// moving node itself or one of its own descendants.
	ErrInvalidMoveToDescendant = errors.NewKind("cannot move node %v into its own subtree (target %v)")

	// ErrNodeAlreadySaved reports an attempt to insert a node whose primary
	// key is already present in the forest. No operation in this module
	// raises it: a primary-key collision on insert is reported by the Store
	// itself (memstore returns a plain error).
	ErrNodeAlreadySaved = errors.NewKind("node %v is already saved")

	// ErrPathOverflow is raised by the LT engine when the shift-right
	// rebalance and the deterministic relabel fallback both fail to
	// produce room for a new label.
	ErrPathOverflow = errors.NewKind("no room for a new label under parent %v after rebalance")

	// ErrCapacityExceeded is raised by numconv.Encode when a value does not
	// fit the step width, and by the MP engine when a path would exceed
	// MaxLength. The AL engine's sib_order is a Go int and is not
	// range-checked.
	ErrCapacityExceeded = errors.NewKind("capacity exceeded: %s")

	// ErrInvalidAlphabet is raised by numconv.NewAlphabet when an alphabet
	// has fewer than two symbols, a duplicate symbol, or symbols that are
	// not in increasing order.
	ErrInvalidAlphabet = errors.NewKind("invalid alphabet %q: %s")

	// ErrInvalidEncoding is raised by numconv.Decode on an out-of-alphabet
	// symbol.
	ErrInvalidEncoding = errors.NewKind("invalid encoding %q: symbol %q is not in the alphabet")

	// ErrInvalidLabelConstraints is raised by the LT label generator when
	// before <= after, or no label fits the declared constraints.
	ErrInvalidLabelConstraints = errors.NewKind("invalid label constraints: after=%q before=%q")
)
