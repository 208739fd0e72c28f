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
	"fmt"

	"github.com/spf13/cast"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine"
)

// resolvePosition turns the common protocol's position vocabulary (spec
// section 4.F) into the (parent, before) pair engine.Engine.Insert and
// .Move actually take. This is the one place that vocabulary is
// interpreted; every engine package is written against the simpler
// parent/before primitive instead of duplicating this switch four times.
func (t *Tree) resolvePosition(ctx context.Context, ref *Node, pos engine.Position, data treeindex.Row) (parent any, before any, err error) {
	cfg := t.Engine.Config()
	sorted := cfg.Sorted()
	if pos.Sorted() && !sorted {
		return nil, nil, treeindex.ErrMissingNodeOrderBy.New(pos, cfg.Table)
	}
	if !pos.Sorted() && sorted {
		return nil, nil, treeindex.ErrInvalidPosition.New(pos, cfg.Table)
	}

	if pos.IsChildPosition() {
		parent = ref.pk
	} else {
		p, err := ref.GetParent(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		if p != nil {
			parent = p.pk
		}
	}

	c := t.newCtx(ctx, "get_children")
	children, err := t.Engine.GetChildren(c, parent)
	if err != nil {
		return nil, nil, err
	}

	switch pos {
	case engine.FirstSibling, engine.FirstChild:
		if len(children) > 0 {
			before = children[0]
		}
	case engine.LastSibling, engine.LastChild:
		before = nil
	case engine.Left:
		before = ref.pk
	case engine.Right:
		idx := indexOfPK(children, ref.pk)
		if idx >= 0 && idx+1 < len(children) {
			before = children[idx+1]
		}
	case engine.SortedSibling, engine.SortedChild:
		before, err = t.findSortedSlot(ctx, children, data, cfg.NodeOrderBy)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, treeindex.ErrInvalidPosition.New(pos, cfg.Table)
	}
	return parent, before, nil
}

func indexOfPK(pks []any, pk any) int {
	for i, v := range pks {
		if v == pk {
			return i
		}
	}
	return -1
}

// findSortedSlot returns the primary key of the first row among children
// (already in sibling order) that sorts strictly after data by cols, or
// nil if data sorts after all of them -- i.e. the "before" a caller would
// pass to Insert to land data at its sorted-mode position, new rows
// breaking ties by arriving after existing equal ones.
func (t *Tree) findSortedSlot(ctx context.Context, children []any, data treeindex.Row, cols []string) (any, error) {
	c := t.newCtx(ctx, "find_sorted_slot")
	for _, pk := range children {
		row, ok, err := t.Store.Fetch(c, t.Engine.Config().Table, pk)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if compareByOrder(row, data, cols) > 0 {
			return pk, nil
		}
	}
	return nil, nil
}

func compareByOrder(a, b treeindex.Row, cols []string) int {
	for _, col := range cols {
		if r := compareValues(a[col], b[col]); r != 0 {
			return r
		}
	}
	return 0
}

func compareValues(x, y any) int {
	switch x.(type) {
	case string:
		xs, ys := cast.ToString(x), cast.ToString(y)
		switch {
		case xs < ys:
			return -1
		case xs > ys:
			return 1
		default:
			return 0
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		xf, yf := cast.ToFloat64(x), cast.ToFloat64(y)
		switch {
		case xf < yf:
			return -1
		case xf > yf:
			return 1
		default:
			return 0
		}
	default:
		xs, ys := fmt.Sprint(x), fmt.Sprint(y)
		switch {
		case xs < ys:
			return -1
		case xs > ys:
			return 1
		default:
			return 0
		}
	}
}
