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

// Shard is a partition and the node that owns it. Shards are values; the
// shard map creates a new set each time the member list changes so a shard
// that has been handed out never changes owner.
type Shard struct {
	ID     int
	NodeID string // Blank when the cluster has no members
}
