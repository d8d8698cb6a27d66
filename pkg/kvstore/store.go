package kvstore

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
	"sort"
	"sync"
)

// Partitioner maps a key to a partition. The mapping must be deterministic
// and the returned partition must be in the range [0, P)
type Partitioner interface {
	PartitionOf(key string) int
}

// LocalStore holds the shards for the partitions the local node owns. The
// lookups are lock free; only the coordinator and the receipt handler
// add and remove shards and they are serialized with the writeMutex.
type LocalStore struct {
	partitionCount int
	partitioner    Partitioner
	partitions     *sync.Map // partition ID -> *shard
	writeMutex     *sync.Mutex
}

// NewLocalStore creates an empty local store for partitionCount partitions.
func NewLocalStore(partitionCount int, partitioner Partitioner) *LocalStore {
	return &LocalStore{
		partitionCount: partitionCount,
		partitioner:    partitioner,
		partitions:     &sync.Map{},
		writeMutex:     &sync.Mutex{},
	}
}

// PartitionCount returns the (fixed) number of partitions in the cluster
func (l *LocalStore) PartitionCount() int {
	return l.partitionCount
}

// PartitionOf returns the partition for the key
func (l *LocalStore) PartitionOf(key string) int {
	return l.partitioner.PartitionOf(key)
}

func (l *LocalStore) validPartition(partition int) bool {
	return partition >= 0 && partition < l.partitionCount
}

func (l *LocalStore) load(partition int) *shard {
	v, ok := l.partitions.Load(partition)
	if !ok {
		return nil
	}
	return v.(*shard)
}

// Get returns the value for the key. ErrNotOwner is returned if the key's
// partition isn't held locally and ErrNotFound if the key doesn't exist.
func (l *LocalStore) Get(key string) (string, error) {
	partition := l.partitioner.PartitionOf(key)
	var last *shard
	for {
		s := l.load(partition)
		if s == nil || s == last {
			return "", ErrNotOwner
		}
		value, found, ok := s.get(key)
		if !ok {
			// Detached while we were waiting. Retry if the shard has
			// been replaced.
			last = s
			continue
		}
		if !found {
			return "", ErrNotFound
		}
		return value, nil
	}
}

// Put writes the value for the key. ErrNotOwner is returned if the key's
// partition isn't held locally. The write is visible to Get calls once
// Put returns.
func (l *LocalStore) Put(key, value string) error {
	partition := l.partitioner.PartitionOf(key)
	var last *shard
	for {
		s := l.load(partition)
		if s == nil || s == last {
			return ErrNotOwner
		}
		if s.put(key, value) {
			return nil
		}
		last = s
	}
}

// Owns returns true if the partition is held locally
func (l *LocalStore) Owns(partition int) bool {
	return l.load(partition) != nil
}

// Len returns the number of keys in a local partition. Unowned partitions
// report 0.
func (l *LocalStore) Len(partition int) int {
	s := l.load(partition)
	if s == nil {
		return 0
	}
	return s.size()
}

// Partitions returns the sorted list of locally held partitions
func (l *LocalStore) Partitions() []int {
	ret := make([]int, 0)
	l.partitions.Range(func(k, v interface{}) bool {
		ret = append(ret, k.(int))
		return true
	})
	sort.Ints(ret)
	return ret
}

// Ensure creates an empty shard for the partition if it doesn't exist. An
// existing shard is left untouched. Returns true if a shard was created.
func (l *LocalStore) Ensure(partition int) (bool, error) {
	if !l.validPartition(partition) {
		return false, ErrInvalidPartition
	}
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	_, loaded := l.partitions.LoadOrStore(partition, newShard(nil))
	return !loaded, nil
}

// Detach removes the partition from the store and returns its contents.
// Removal and snapshot happen atomically with respect to Get and Put on the
// same partition; a Put either lands in the returned contents or fails with
// ErrNotOwner. The second return value is false if the partition wasn't
// held locally.
func (l *LocalStore) Detach(partition int) (map[string]string, bool) {
	if !l.validPartition(partition) {
		return nil, false
	}
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	v, ok := l.partitions.Load(partition)
	if !ok {
		return nil, false
	}
	l.partitions.Delete(partition)
	data := v.(*shard).detach()
	if data == nil {
		data = make(map[string]string)
	}
	return data, true
}

// Install sets the contents of a partition, replacing any existing shard.
// The data map is owned by the store after this call.
func (l *LocalStore) Install(partition int, data map[string]string) error {
	if !l.validPartition(partition) {
		return ErrInvalidPartition
	}
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	old, existed := l.partitions.Load(partition)
	l.partitions.Store(partition, newShard(data))
	if existed {
		old.(*shard).detach()
	}
	return nil
}

// Restore merges data into the partition, creating the shard if needed.
// Keys that already exist locally are kept as they are.
func (l *LocalStore) Restore(partition int, data map[string]string) error {
	if !l.validPartition(partition) {
		return ErrInvalidPartition
	}
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	v, loaded := l.partitions.LoadOrStore(partition, newShard(data))
	if loaded {
		v.(*shard).merge(data)
	}
	return nil
}
