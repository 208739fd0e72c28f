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

package ns

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

func TestAddChildToLeafMatchesS1(t *testing.T) {
	e, ctx, ids := fixture(t)
	_, err := e.Insert(ctx, ids["231"], nil, treeindex.Row{"name": "2311"})
	require.NoError(t, err)

	children, err := e.GetChildren(ctx, ids["231"])
	require.NoError(t, err)
	require.Len(t, children, 1)
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

func TestFindProblemsOnCleanTreeIsEmpty(t *testing.T) {
	e, ctx, _ := fixture(t)
	problems, err := e.FindProblems(ctx)
	require.NoError(t, err)
	require.True(t, problems.Empty())
}

func TestCountDescendantsIsIntervalMath(t *testing.T) {
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

func TestRootInsertionRenumbersTreeIDs(t *testing.T) {
	e, ctx, ids := fixture(t)
	newRoot, err := e.Insert(ctx, nil, ids["1"], treeindex.Row{"name": "0"})
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1", "2", "21", "22", "23", "231", "24", "3", "4", "41"}, preOrderNames(t, e, ctx, nil))

	row, ok, err := e.store.Fetch(ctx, e.cfg.Table, newRoot[treeindex.PKColumn])
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, row[ColTreeID])
}
