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
import "hash/crc64"

// ShardFunc maps a key to a shard (or partition) in the range [0, max)
type ShardFunc func(key string) int

var crc64table = crc64.MakeTable(crc64.ISO)

// NewStringSharder returns a shard function that uses the CRC-64 (ISO)
// checksum of the key. The mapping only depends on the key and the number
// of shards so every node computes the same partition for a key.
func NewStringSharder(max int) ShardFunc {
	if max < 1 {
		max = 1
	}
	m := uint64(max)
	return func(key string) int {
		return int(crc64.Checksum([]byte(key), crc64table) % m)
	}
}
