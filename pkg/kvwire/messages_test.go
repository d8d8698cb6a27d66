package kvwire

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lab5e/partfunk/pkg/kvstore"
)

func TestTransferRequest(t *testing.T) {
	assert := require.New(t)

	payload := kvstore.TransferPayload{
		Partition: 17,
		Data:      map[string]string{"b": "2", "a": "1", "empty": ""},
		Sender:    "node-a",
		Epoch:     4,
	}
	req := NewTransferRequest(payload)
	assert.Equal("a", req.Entries[0].Key, "Entries should be sorted")

	buf, err := req.MarshalBinary()
	assert.NoError(err)

	decoded := &TransferRequest{}
	assert.NoError(decoded.UnmarshalBinary(buf))
	assert.Equal(payload, decoded.Payload())

	// Partition 0 and an empty partition still decode into an empty map
	buf, err = NewTransferRequest(kvstore.TransferPayload{}).MarshalBinary()
	assert.NoError(err)
	assert.NoError(decoded.UnmarshalBinary(buf))
	assert.Equal(0, decoded.Partition)
	assert.NotNil(decoded.Payload().Data)
	assert.Len(decoded.Payload().Data, 0)
}

func TestTransferChunks(t *testing.T) {
	assert := require.New(t)

	data := make(map[string]string)
	for i := 0; i < 100; i++ {
		data[fmt.Sprintf("key-%03d", i)] = strings.Repeat("x", 93)
	}
	// Each entry is 100 bytes so 10 fit in a chunk
	payload := kvstore.TransferPayload{Partition: 3, Data: data, Sender: "node-b", Epoch: 7}
	chunks := NewTransferChunks(payload, 1000)
	assert.Len(chunks, 10)

	joined := &TransferRequest{}
	for _, c := range chunks {
		assert.Equal(3, c.Partition)
		assert.Equal("node-b", c.Sender)
		assert.Equal(uint64(7), c.Epoch)
		assert.Len(c.Entries, 10)
		joined.Entries = append(joined.Entries, c.Entries...)
	}
	joined.Partition, joined.Sender, joined.Epoch = 3, "node-b", 7
	assert.Equal(payload, joined.Payload())
	assert.Equal("key-000", chunks[0].Entries[0].Key, "Chunks are ordered by key")

	// Oversized entries get a chunk of their own
	chunks = NewTransferChunks(kvstore.TransferPayload{Data: map[string]string{
		"a": "1", "b": strings.Repeat("y", 5000), "c": "3",
	}}, 1000)
	assert.Len(chunks, 3)
	assert.Equal("b", chunks[1].Entries[0].Key)

	// Empty partitions are sent as one empty chunk
	chunks = NewTransferChunks(kvstore.TransferPayload{Partition: 2}, TransferChunkSize)
	assert.Len(chunks, 1)
	assert.Equal(2, chunks[0].Partition)
	assert.Len(chunks[0].Entries, 0)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	assert := require.New(t)

	buf, err := (&PutRequest{Key: "k", Value: "v"}).MarshalBinary()
	assert.NoError(err)
	buf = protowire.AppendTag(buf, 99, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 12345)
	buf = protowire.AppendTag(buf, 100, protowire.BytesType)
	buf = protowire.AppendString(buf, "ignored")

	req := &PutRequest{}
	assert.NoError(req.UnmarshalBinary(buf))
	assert.Equal(PutRequest{Key: "k", Value: "v"}, *req)

	assert.NoError((&Empty{}).UnmarshalBinary(buf))
}

func TestInvalidMessages(t *testing.T) {
	assert := require.New(t)

	// Truncated string
	buf := protowire.AppendTag(nil, 1, protowire.BytesType)
	buf = protowire.AppendVarint(buf, 10)
	buf = append(buf, 'a', 'b')
	assert.Error((&GetRequest{}).UnmarshalBinary(buf))

	// Wrong wire type
	buf = protowire.AppendTag(nil, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 1)
	assert.Error((&GetRequest{}).UnmarshalBinary(buf))
}

func TestRebalanceResponse(t *testing.T) {
	assert := require.New(t)

	result := kvstore.Result{
		Epoch:       3,
		Created:     []int{0, 5},
		Retained:    12,
		Detached:    []int{1},
		Transferred: []int{},
		Failures:    []*kvstore.TransferError{{Partition: 1, NodeID: "b", Address: "127.0.0.1:1", Err: kvstore.ErrNoOwner}},
		Duration:    1500 * time.Millisecond,
	}
	buf, err := NewRebalanceResponse(result).MarshalBinary()
	assert.NoError(err)

	resp := &RebalanceResponse{}
	assert.NoError(resp.UnmarshalBinary(buf))
	assert.Equal(uint64(3), resp.Epoch)
	assert.Equal([]int{0, 5}, resp.Created)
	assert.Equal(12, resp.Retained)
	assert.Equal([]int{1}, resp.Detached)
	assert.Len(resp.Transferred, 0)
	assert.Len(resp.Failures, 1)
	assert.Contains(resp.Failures[0], "partition 1")
	assert.Equal(int64(1500), resp.DurationMs)

	// Unpacked repeated ints are accepted too
	buf = protowire.AppendTag(nil, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 7)
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 8)
	assert.NoError(resp.UnmarshalBinary(buf))
	assert.Equal([]int{7, 8}, resp.Created)
}

func TestStatusResponse(t *testing.T) {
	assert := require.New(t)

	status := &StatusResponse{
		NodeID:         "node-a",
		Endpoint:       "127.0.0.1:9999",
		Epoch:          9,
		PartitionCount: 1024,
		Nodes:          []string{"node-a", "node-b"},
		Partitions:     []PartitionInfo{{ID: 0, Keys: 10}, {ID: 3, Keys: 0}},
		Pending:        []int{7},
	}
	buf, err := status.MarshalBinary()
	assert.NoError(err)

	decoded := &StatusResponse{}
	assert.NoError(decoded.UnmarshalBinary(buf))
	assert.Equal(status, decoded)
}
