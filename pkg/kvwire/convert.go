package kvwire

import (
	"sort"

	"github.com/lab5e/partfunk/pkg/kvstore"
)

// NewTransferRequest creates a transfer request from a payload. The entries
// are sorted by key.
func NewTransferRequest(payload kvstore.TransferPayload) *TransferRequest {
	ret := &TransferRequest{
		Partition: payload.Partition,
		Sender:    payload.Sender,
		Epoch:     payload.Epoch,
		Entries:   make([]Entry, 0, len(payload.Data)),
	}
	for k, v := range payload.Data {
		ret.Entries = append(ret.Entries, Entry{Key: k, Value: v})
	}
	sort.Slice(ret.Entries, func(i, j int) bool { return ret.Entries[i].Key < ret.Entries[j].Key })
	return ret
}

// TransferChunkSize is the number of key and value bytes sent in each
// message of a partition transfer. It's well below the default gRPC
// message limit of 4 MiB.
const TransferChunkSize = 1 << 20

// NewTransferChunks splits a payload into requests with at most maxBytes
// of keys and values each. Entries larger than maxBytes are sent in a chunk
// of their own. There is always at least one chunk so empty partitions are
// handed off as well.
func NewTransferChunks(payload kvstore.TransferPayload, maxBytes int) []*TransferRequest {
	all := NewTransferRequest(payload)
	newChunk := func() *TransferRequest {
		return &TransferRequest{Partition: all.Partition, Sender: all.Sender, Epoch: all.Epoch}
	}
	var ret []*TransferRequest
	current := newChunk()
	size := 0
	for _, e := range all.Entries {
		n := len(e.Key) + len(e.Value)
		if len(current.Entries) > 0 && size+n > maxBytes {
			ret = append(ret, current)
			current = newChunk()
			size = 0
		}
		current.Entries = append(current.Entries, e)
		size += n
	}
	return append(ret, current)
}

// Payload returns the transfer payload for the request. Duplicate keys
// resolve to the last entry.
func (m *TransferRequest) Payload() kvstore.TransferPayload {
	data := make(map[string]string, len(m.Entries))
	for _, e := range m.Entries {
		data[e.Key] = e.Value
	}
	return kvstore.TransferPayload{
		Partition: m.Partition,
		Data:      data,
		Sender:    m.Sender,
		Epoch:     m.Epoch,
	}
}

// NewRebalanceResponse converts a rebalance result into a response
func NewRebalanceResponse(r kvstore.Result) *RebalanceResponse {
	ret := &RebalanceResponse{
		Epoch:       r.Epoch,
		Created:     r.Created,
		Retained:    r.Retained,
		Detached:    r.Detached,
		Transferred: r.Transferred,
		Restored:    r.Restored,
		Abandoned:   r.Abandoned,
		DurationMs:  r.Duration.Milliseconds(),
	}
	for _, f := range r.Failures {
		ret.Failures = append(ret.Failures, f.Error())
	}
	return ret
}
