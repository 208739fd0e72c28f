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

// BulkNode is the stable, JSON-compatible serialisation unit for
// dump_bulk/load_bulk (spec section 6): an ordered list of
// {data, children?} trees. When DumpBulk is called with keepIDs the node
// also carries its primary key under PKColumn inside Data.
type BulkNode struct {
	Data     Row        `json:"data"`
	Children []BulkNode `json:"children,omitempty"`
}
