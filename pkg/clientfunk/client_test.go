package clientfunk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/lab5e/partfunk/pkg/funk/sharding"
	"github.com/lab5e/partfunk/pkg/kvstore"
	"github.com/lab5e/partfunk/pkg/kvwire"
	"github.com/lab5e/partfunk/pkg/serverfunk"
)

const testPartitions = 16

// testDirectory maps node IDs to the in-memory endpoints
type testDirectory struct {
	assignment *sharding.Assignment
	endpoints  map[string]string
}

func (d *testDirectory) TransferAddress(nodeID string) (string, error) {
	ep, ok := d.endpoints[nodeID]
	if !ok {
		return "", errors.New("unknown node")
	}
	return ep, nil
}

func (d *testDirectory) OwnerEndpoint(key string) string {
	return d.endpoints[d.assignment.OwnerOf(d.assignment.PartitionOf(key))]
}

func (d *testDirectory) Nodes() []string {
	return d.assignment.Nodes()
}

type testNode struct {
	store       *kvstore.LocalStore
	coordinator *kvstore.Coordinator
	server      *grpc.Server
}

type testCluster struct {
	assignment  *sharding.Assignment
	directory   *testDirectory
	listeners   map[string]*bufconn.Listener
	connections *Connections
	nodes       map[string]*testNode
}

func newTestCluster(t *testing.T, nodeIDs ...string) *testCluster {
	shards := sharding.NewShardMap()
	require.NoError(t, shards.Init(testPartitions))
	assignment := sharding.NewAssignment(shards, sharding.NewStringSharder(testPartitions))
	assignment.UpdateNodes(nodeIDs...)

	ret := &testCluster{
		assignment: assignment,
		directory:  &testDirectory{assignment: assignment, endpoints: make(map[string]string)},
		listeners:  make(map[string]*bufconn.Listener),
		nodes:      make(map[string]*testNode),
	}
	ret.connections = NewConnections(
		grpc.WithInsecure(),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			l, ok := ret.listeners[addr]
			if !ok {
				return nil, fmt.Errorf("unknown address %s", addr)
			}
			return l.Dial()
		}))

	params := kvstore.DefaultParameters()
	params.Partitions = testPartitions
	params.TransferTimeout = 5 * time.Second
	params.TransferAttempts = 1

	for _, id := range nodeIDs {
		endpoint := id + ":1"
		ret.directory.endpoints[id] = endpoint
		ret.listeners[endpoint] = bufconn.Listen(1024 * 1024)

		store := kvstore.NewLocalStore(testPartitions, assignment)
		coordinator := kvstore.NewCoordinator(id, store, assignment, ret.directory, NewTransport(ret.connections), params, nil)
		receiver := kvstore.NewReceiptHandler(id, store, assignment, nil)
		srv := serverfunk.NewPartitionServer(id, store, receiver, coordinator, ret.directory)
		srv.SetEndpoint(endpoint)

		server := grpc.NewServer()
		kvwire.RegisterPartitionServiceServer(server, srv)
		go server.Serve(ret.listeners[endpoint])
		ret.nodes[id] = &testNode{store: store, coordinator: coordinator, server: server}
	}
	return ret
}

func (c *testCluster) rebalance(t *testing.T) {
	for _, n := range c.nodes {
		res, err := n.coordinator.Rebalance(context.Background())
		require.NoError(t, err)
		require.NoError(t, res.Err())
	}
}

func (c *testCluster) stop() {
	c.connections.Close()
	for _, n := range c.nodes {
		n.server.Stop()
	}
}

// keyOwnedBy returns a key that maps to a partition owned by the node
func (c *testCluster) keyOwnedBy(t *testing.T, nodeID string) string {
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		if c.assignment.OwnerOf(c.assignment.PartitionOf(key)) == nodeID {
			return key
		}
	}
	t.Fatalf("No keys for %s", nodeID)
	return ""
}

func TestClientRedirect(t *testing.T) {
	assert := require.New(t)

	cluster := newTestCluster(t, "node-a", "node-b")
	defer cluster.stop()
	cluster.rebalance(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := NewClient("node-a:1", cluster.connections)
	keyA := cluster.keyOwnedBy(t, "node-a")
	keyB := cluster.keyOwnedBy(t, "node-b")

	assert.NoError(client.Put(ctx, keyA, "value-a"))
	assert.NoError(client.Put(ctx, keyB, "value-b"), "Put should be redirected to node-b")

	v, err := cluster.nodes["node-b"].store.Get(keyB)
	assert.NoError(err)
	assert.Equal("value-b", v)
	_, err = cluster.nodes["node-a"].store.Get(keyB)
	assert.Equal(kvstore.ErrNotOwner, err)

	v, err = client.Get(ctx, keyB)
	assert.NoError(err)
	assert.Equal("value-b", v)

	_, err = client.Get(ctx, "no-such-key")
	assert.Equal(kvstore.ErrNotFound, err)

	_, err = client.Get(ctx, "")
	assert.Error(err)

	status, err := client.Status(ctx)
	assert.NoError(err)
	assert.Equal("node-a", status.NodeID)
	assert.Equal("node-a:1", status.Endpoint)
	assert.Equal(testPartitions, status.PartitionCount)
	assert.Equal([]string{"node-a", "node-b"}, status.Nodes)
	assert.Equal(cluster.nodes["node-a"].store.Partitions(), partitionIDs(status.Partitions))
}

func partitionIDs(list []kvwire.PartitionInfo) []int {
	ret := make([]int, 0, len(list))
	for _, v := range list {
		ret = append(ret, v.ID)
	}
	return ret
}

func TestTransferOverGRPC(t *testing.T) {
	assert := require.New(t)

	cluster := newTestCluster(t, "node-a", "node-b")
	defer cluster.stop()
	cluster.rebalance(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	keyB := cluster.keyOwnedBy(t, "node-b")
	clientB := NewClient("node-b:1", cluster.connections)
	assert.NoError(clientB.Put(ctx, keyB, "moving"))

	// node-b leaves the assignment; its partitions move to node-a
	cluster.assignment.UpdateNodes("node-a")
	res, err := cluster.nodes["node-b"].coordinator.Rebalance(ctx)
	assert.NoError(err)
	assert.NoError(res.Err())
	assert.NotEmpty(res.Transferred)
	assert.Equal(res.Detached, res.Transferred)
	assert.Len(cluster.nodes["node-b"].store.Partitions(), 0)

	v, err := cluster.nodes["node-a"].store.Get(keyB)
	assert.NoError(err)
	assert.Equal("moving", v)

	// node-b redirects to the new owner
	v, err = clientB.Get(ctx, keyB)
	assert.NoError(err)
	assert.Equal("moving", v)

	clientA := NewClient("node-a:1", cluster.connections)
	rebalance, err := clientA.Rebalance(ctx)
	assert.NoError(err)
	assert.Equal(uint64(2), rebalance.Epoch)
	assert.Len(rebalance.Failures, 0)
	assert.Equal(testPartitions, rebalance.Retained)
	assert.Len(rebalance.Created, 0)
}

// keysInPartition returns count keys that map to the partition
func (c *testCluster) keysInPartition(t *testing.T, partition int, count int) []string {
	var ret []string
	for i := 0; i < 100000 && len(ret) < count; i++ {
		key := fmt.Sprintf("key-%d", i)
		if c.assignment.PartitionOf(key) == partition {
			ret = append(ret, key)
		}
	}
	require.Len(t, ret, count)
	return ret
}

func TestTransferLargePartition(t *testing.T) {
	assert := require.New(t)

	cluster := newTestCluster(t, "node-a", "node-b")
	defer cluster.stop()
	cluster.rebalance(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 6 MiB in one partition is more than gRPC accepts in a single message
	partition := cluster.assignment.PartitionOf(cluster.keyOwnedBy(t, "node-b"))
	keys := cluster.keysInPartition(t, partition, 6)
	value := strings.Repeat("v", 1<<20)
	clientB := NewClient("node-b:1", cluster.connections)
	for _, k := range keys {
		assert.NoError(clientB.Put(ctx, k, value))
	}

	cluster.assignment.UpdateNodes("node-a")
	res, err := cluster.nodes["node-b"].coordinator.Rebalance(ctx)
	assert.NoError(err)
	assert.NoError(res.Err())
	assert.Contains(res.Transferred, partition)
	assert.Empty(cluster.nodes["node-b"].coordinator.Pending())

	storeA := cluster.nodes["node-a"].store
	assert.Equal(len(keys), storeA.Len(partition))
	for _, k := range keys {
		v, err := storeA.Get(k)
		assert.NoError(err)
		assert.Equal(value, v)
	}
}

func TestTransportFailure(t *testing.T) {
	assert := require.New(t)

	connections := NewConnections(
		grpc.WithInsecure(),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		}))
	defer connections.Close()

	transport := NewTransport(connections)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := transport.Send(ctx, "nowhere:1", kvstore.TransferPayload{Partition: 1})
	assert.Error(err)
	assert.Equal(1, connections.Size())

	connections.Retain()
	assert.Equal(0, connections.Size())
}
