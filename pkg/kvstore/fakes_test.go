package kvstore

import (
	"context"
	"errors"
	"sync"
)

// keyPartitioner maps keys to fixed partitions. Unknown keys go to
// partition 0.
type keyPartitioner map[string]int

func (k keyPartitioner) PartitionOf(key string) int {
	return k[key]
}

type testAssignment struct {
	Partitioner
	mutex  *sync.Mutex
	owners []string
}

func newTestAssignment(p Partitioner, owners ...string) *testAssignment {
	return &testAssignment{Partitioner: p, mutex: &sync.Mutex{}, owners: owners}
}

func (t *testAssignment) set(owners ...string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.owners = owners
}

func (t *testAssignment) OwnerMap() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string{}, t.owners...)
}

type testDirectory struct{}

func (testDirectory) TransferAddress(nodeID string) (string, error) {
	return "addr-" + nodeID, nil
}

var errUnreachable = errors.New("node is unreachable")

// testTransport routes payloads to receipt handlers by address
type testTransport struct {
	mutex     *sync.Mutex
	receivers map[string]*ReceiptHandler
	failing   map[string]bool
	calls     int
	entered   chan struct{}
	block     chan struct{}
}

func newTestTransport() *testTransport {
	return &testTransport{
		mutex:     &sync.Mutex{},
		receivers: make(map[string]*ReceiptHandler),
		failing:   make(map[string]bool),
	}
}

func (t *testTransport) add(nodeID string, r *ReceiptHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.receivers["addr-"+nodeID] = r
}

func (t *testTransport) setFailing(nodeID string, failing bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.failing["addr-"+nodeID] = failing
}

func (t *testTransport) callCount() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.calls
}

func (t *testTransport) Send(ctx context.Context, address string, payload TransferPayload) error {
	t.mutex.Lock()
	t.calls++
	r := t.receivers[address]
	failing := t.failing[address]
	entered, block := t.entered, t.block
	t.mutex.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failing || r == nil {
		return errUnreachable
	}
	return r.OnPartitionReceived(payload)
}
