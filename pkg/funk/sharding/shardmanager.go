package sharding
//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//

// ShardMap assigns a fixed number of shards to the cluster members. The
// owner of a shard depends on the member list only so every node that sees
// the same members computes the same map.
type ShardMap interface {
	// Init sets the number of shards. Shard IDs are in the range
	// [0, maxShards). It fails if it is called more than once.
	Init(maxShards int) error

	// UpdateNodes replaces the member list and reassigns the shards.
	// Duplicates and blank IDs are ignored.
	UpdateNodes(nodeID ...string)

	// MapToNode returns the shard with the ID. This is on the request path
	// for every key lookup. It panics on IDs outside the range.
	MapToNode(shardID int) Shard

	// Shards returns all shards ordered by ID
	Shards() []Shard

	// ShardCount returns the number of shards
	ShardCount() int

	// NodeList returns the sorted member list
	NodeList() []string

	// ShardCountForNode returns the number of shards owned by the node
	ShardCountForNode(nodeID string) int
}
