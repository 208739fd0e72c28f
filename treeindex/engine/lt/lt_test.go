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

package lt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/memstore"
)

func fixture(t *testing.T) (*Engine, *treeindex.Context, map[string]any) {
	t.Helper()
	store := memstore.New()
	e, err := New(store, DefaultConfig("tree"))
	require.NoError(t, err)
	ctx := treeindex.NewContext(nil, nil, "tree", "test")

	ids := map[string]any{}
	add := func(parent any, name string) any {
		row, err := e.Insert(ctx, parent, nil, treeindex.Row{"name": name})
		require.NoError(t, err)
		ids[name] = row[treeindex.PKColumn]
		return ids[name]
	}

	add(nil, "1")
	n2 := add(nil, "2")
	add(nil, "3")
	n4 := add(nil, "4")
	add(n2, "21")
	add(n2, "22")
	n23 := add(n2, "23")
	add(n2, "24")
	add(n23, "231")
	add(n4, "41")
	return e, ctx, ids
}

func preOrderNames(t *testing.T, e *Engine, ctx *treeindex.Context, parent any) []string {
	t.Helper()
	children, err := e.GetChildren(ctx, parent)
	require.NoError(t, err)
	var out []string
	for _, pk := range children {
		row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
		require.NoError(t, err)
		require.True(t, ok)
		out = append(out, row["name"].(string))
		out = append(out, preOrderNames(t, e, ctx, pk)...)
	}
	return out
}

func TestInsertBuildsFixtureInOrder(t *testing.T) {
	e, ctx, ids := fixture(t)
	require.Equal(t, []string{"1", "2", "21", "22", "23", "231", "24", "3", "4", "41"}, preOrderNames(t, e, ctx, nil))

	depth, err := e.GetDepth(ctx, ids["231"])
	require.NoError(t, err)
	require.Equal(t, 3, depth)

	ancestors, err := e.GetAncestors(ctx, ids["231"])
	require.NoError(t, err)
	require.Equal(t, []any{ids["2"], ids["23"]}, ancestors)
}

func TestPathsSortConsistentlyWithPreOrder(t *testing.T) {
	e, ctx, _ := fixture(t)
	rows, err := e.siblingsAt(ctx, "", 1)
	require.NoError(t, err)
	var paths []string
	for _, r := range rows {
		paths = append(paths, r[ColPath].(string))
	}
	for i := 1; i < len(paths); i++ {
		require.Less(t, paths[i-1], paths[i])
	}
}

func TestMoveLeafLeftOfSiblingMatchesS2(t *testing.T) {
	e, ctx, ids := fixture(t)
	require.NoError(t, e.Move(ctx, ids["231"], ids["2"], ids["22"]))
	require.Equal(t, []string{"21", "231", "22", "23", "24"}, preOrderNames(t, e, ctx, ids["2"]))
}

func TestMoveBranchAsFirstChildMatchesS3(t *testing.T) {
	e, ctx, ids := fixture(t)
	require.NoError(t, e.Move(ctx, ids["4"], ids["2"], nil))
	require.NoError(t, e.Move(ctx, ids["4"], ids["2"], ids["21"]))
	require.Equal(t, []string{"4", "41", "21", "22", "23", "231", "24"}, preOrderNames(t, e, ctx, ids["2"]))
}

func TestDeleteRootWithDescendantsMatchesS4(t *testing.T) {
	e, ctx, ids := fixture(t)
	count, err := e.Delete(ctx, ids["2"])
	require.NoError(t, err)
	require.EqualValues(t, 6, count)
	require.Equal(t, []string{"1", "3", "4", "41"}, preOrderNames(t, e, ctx, nil))
}

func TestDeleteDoesNotMatchSiblingWithSharedPrefix(t *testing.T) {
	store := memstore.New()
	e, err := New(store, DefaultConfig("tree"))
	require.NoError(t, err)
	ctx := treeindex.NewContext(nil, nil, "tree", "test")

	a, err := e.Insert(ctx, nil, nil, treeindex.Row{"name": "A"})
	require.NoError(t, err)
	ab, err := e.Insert(ctx, nil, nil, treeindex.Row{"name": "AB"})
	require.NoError(t, err)
	require.NoError(t, e.store.Update(ctx, e.cfg.Table, ab[treeindex.PKColumn], treeindex.Row{ColPath: "AB"}))

	count, err := e.Delete(ctx, a[treeindex.PKColumn])
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	remaining, err := e.GetChildren(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestFindProblemsOnCleanTreeIsEmpty(t *testing.T) {
	e, ctx, _ := fixture(t)
	problems, err := e.FindProblems(ctx)
	require.NoError(t, err)
	require.True(t, problems.Empty())
}

func TestCountDescendants(t *testing.T) {
	e, ctx, ids := fixture(t)
	count, err := e.CountDescendants(ctx, ids["2"])
	require.NoError(t, err)
	require.EqualValues(t, 5, count)
}

func TestDumpLoadBulkRoundTrip(t *testing.T) {
	e, ctx, ids := fixture(t)
	dump, err := e.DumpBulk(ctx, ids["2"], true)
	require.NoError(t, err)

	store2 := memstore.New()
	e2, err := New(store2, DefaultConfig("tree2"))
	require.NoError(t, err)
	ctx2 := treeindex.NewContext(nil, nil, "tree2", "test")

	_, err = e2.LoadBulk(ctx2, dump, nil, true)
	require.NoError(t, err)

	redump, err := e2.DumpBulk(ctx2, nil, true)
	require.NoError(t, err)
	require.Equal(t, dump, redump)
}

// TestInsertManyAtFrontStaysConsistent inserts 40 roots at the front one
// at a time. From the third insert on no label sorts below the current
// first sibling, so each insert goes through the shift-right rebalance
// (shiftSiblingsFrom) rather than just generateLabel in isolation.
func TestInsertManyAtFrontStaysConsistent(t *testing.T) {
	store := memstore.New()
	e, err := New(store, DefaultConfig("tree"))
	require.NoError(t, err)
	ctx := treeindex.NewContext(nil, nil, "tree", "test")

	var firstPK any
	for i := 0; i < 40; i++ {
		row, err := e.Insert(ctx, nil, firstPK, treeindex.Row{"n": i})
		require.NoError(t, err)
		firstPK = row[treeindex.PKColumn]
	}

	roots, err := e.GetChildren(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 40)

	problems, err := e.FindProblems(ctx)
	require.NoError(t, err)
	require.True(t, problems.Empty())

	for i, pk := range roots {
		row, ok, err := e.store.Fetch(ctx, e.cfg.Table, pk)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 39-i, row["n"])
	}
}
