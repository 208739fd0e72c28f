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

// Command example is a small runnable program exercising all four
// tree-encoding engines against the in-memory reference store, grounded
// on the teacher's own package-level example programs that wire a
// concrete engine.Engine implementation end to end.
package main

import (
	"context"
	"fmt"

	"github.com/dolthub/go-tree-index/treeindex"
	"github.com/dolthub/go-tree-index/treeindex/engine/al"
	"github.com/dolthub/go-tree-index/treeindex/engine/lt"
	"github.com/dolthub/go-tree-index/treeindex/engine/mp"
	"github.com/dolthub/go-tree-index/treeindex/engine/ns"
	"github.com/dolthub/go-tree-index/treeindex/memstore"
	"github.com/dolthub/go-tree-index/treeindex/node"
)

func main() {
	ctx := context.Background()

	fmt.Println("== Materialized Path ==")
	mpStore := memstore.New()
	mpEngine, err := mp.New(mpStore, mp.DefaultConfig("categories_mp"))
	must(err)
	buildAndPrint(ctx, node.NewTree(mpStore, mpEngine))

	fmt.Println("\n== Nested Sets ==")
	nsStore := memstore.New()
	nsEngine, err := ns.New(nsStore, ns.DefaultConfig("categories_ns"))
	must(err)
	buildAndPrint(ctx, node.NewTree(nsStore, nsEngine))

	fmt.Println("\n== Adjacency List ==")
	alStore := memstore.New()
	alEngine, err := al.New(alStore, al.DefaultConfig("categories_al"))
	must(err)
	buildAndPrint(ctx, node.NewTree(alStore, alEngine))

	fmt.Println("\n== LTree ==")
	ltStore := memstore.New()
	ltEngine, err := lt.New(ltStore, lt.DefaultConfig("categories_lt"))
	must(err)
	buildAndPrint(ctx, node.NewTree(ltStore, ltEngine))
}

// buildAndPrint builds the spec's ten-node fixture (roots 1..4, 2's
// children 21..24, 23's child 231, 4's child 41), then prints the
// pre-order (name, depth, child-count) tuples get_tree produces.
func buildAndPrint(ctx context.Context, tree *node.Tree) {
	root1, err := tree.AddRoot(ctx, treeindex.Row{"name": "1"})
	must(err)
	root2, err := tree.AddRoot(ctx, treeindex.Row{"name": "2"})
	must(err)
	_, err = tree.AddRoot(ctx, treeindex.Row{"name": "3"})
	must(err)
	root4, err := tree.AddRoot(ctx, treeindex.Row{"name": "4"})
	must(err)

	_, err = root2.AddChild(ctx, treeindex.Row{"name": "21"})
	must(err)
	_, err = root2.AddChild(ctx, treeindex.Row{"name": "22"})
	must(err)
	node23, err := root2.AddChild(ctx, treeindex.Row{"name": "23"})
	must(err)
	_, err = root2.AddChild(ctx, treeindex.Row{"name": "24"})
	must(err)
	_, err = node23.AddChild(ctx, treeindex.Row{"name": "231"})
	must(err)
	_, err = root4.AddChild(ctx, treeindex.Row{"name": "41"})
	must(err)

	printTree(ctx, tree)

	problems, err := tree.FindProblems(ctx)
	must(err)
	fmt.Printf("find_problems empty: %v\n", problems.Empty())

	must(root1.Refresh(ctx))
}

func printTree(ctx context.Context, tree *node.Tree) {
	nodes, err := tree.GetTree(ctx, nil)
	must(err)
	for _, n := range nodes {
		depth, err := n.GetDepth(ctx)
		must(err)
		count, err := n.GetChildrenCount(ctx)
		must(err)
		fmt.Printf("  (%q, %d, %d)\n", n.Data()["name"], depth, count)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
