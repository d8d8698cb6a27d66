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
import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"
)

// rendezvousShardMap assigns each shard to the node with the highest
// random weight for that shard. Every node computes the same map from the
// same member list and only the shards on nodes that join or leave move.
type rendezvousShardMap struct {
	shards []Shard
	mutex  *sync.RWMutex
	nodes  []string
	counts map[string]int
}

// NewShardMap creates a new shard mapper instance.
func NewShardMap() ShardMap {
	return &rendezvousShardMap{
		shards: make([]Shard, 0),
		mutex:  &sync.RWMutex{},
		nodes:  make([]string, 0),
		counts: make(map[string]int),
	}
}

func (sm *rendezvousShardMap) Init(maxShards int) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	if maxShards < 1 {
		return errors.New("maxShards must be > 0")
	}
	if len(sm.shards) != 0 {
		return errors.New("shards already set")
	}

	sm.shards = make([]Shard, maxShards)
	for i := range sm.shards {
		sm.shards[i] = Shard{ID: i}
	}
	return nil
}

func (sm *rendezvousShardMap) UpdateNodes(nodeID ...string) {
	nodes := uniqueSorted(nodeID)

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	hrw := rendezvous.New(nodes, xxhash.Sum64String)
	counts := make(map[string]int)

	shards := make([]Shard, len(sm.shards))
	for i := range shards {
		shards[i] = Shard{ID: i}
		if len(nodes) > 0 {
			shards[i].NodeID = hrw.Lookup(strconv.Itoa(i))
			counts[shards[i].NodeID]++
		}
	}
	sm.shards = shards
	sm.nodes = nodes
	sm.counts = counts
}

func uniqueSorted(list []string) []string {
	seen := make(map[string]bool)
	ret := make([]string, 0, len(list))
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		ret = append(ret, v)
	}
	sort.Strings(ret)
	return ret
}

func (sm *rendezvousShardMap) MapToNode(shardID int) Shard {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	if shardID >= len(sm.shards) || shardID < 0 {
		// The shard function is broken if this happens so a panic is
		// warranted.
		panic(fmt.Sprintf("shard ID is outside range [0-%d]: %d", len(sm.shards), shardID))
	}
	return sm.shards[shardID]
}

func (sm *rendezvousShardMap) Shards() []Shard {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	ret := make([]Shard, len(sm.shards))
	copy(ret, sm.shards)
	return ret
}

func (sm *rendezvousShardMap) ShardCount() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.shards)
}

func (sm *rendezvousShardMap) NodeList() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return append([]string{}, sm.nodes...)
}

func (sm *rendezvousShardMap) ShardCountForNode(nodeID string) int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.counts[nodeID]
}
