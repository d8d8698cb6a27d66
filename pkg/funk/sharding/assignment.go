package sharding

// Assignment maps keys to partitions and partitions to nodes. It is the
// partition assignment used by the key value store.
type Assignment struct {
	shards ShardMap
	fn     ShardFunc
}

// NewAssignment creates an assignment from a shard map and a shard
// function. The shard map must be initialized.
func NewAssignment(shards ShardMap, fn ShardFunc) *Assignment {
	return &Assignment{shards: shards, fn: fn}
}

// PartitionOf returns the partition for the key
func (a *Assignment) PartitionOf(key string) int {
	return a.fn(key)
}

// PartitionCount returns the number of partitions
func (a *Assignment) PartitionCount() int {
	return a.shards.ShardCount()
}

// OwnerOf returns the node that owns the partition
func (a *Assignment) OwnerOf(partition int) string {
	return a.shards.MapToNode(partition).NodeID
}

// OwnerMap returns the owner of every partition, indexed by partition ID
func (a *Assignment) OwnerMap() []string {
	shards := a.shards.Shards()
	ret := make([]string, len(shards))
	for _, s := range shards {
		ret[s.ID] = s.NodeID
	}
	return ret
}

// UpdateNodes sets the cluster members
func (a *Assignment) UpdateNodes(nodeID ...string) {
	a.shards.UpdateNodes(nodeID...)
}

// Nodes returns the sorted list of members
func (a *Assignment) Nodes() []string {
	return a.shards.NodeList()
}
