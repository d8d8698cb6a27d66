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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testParams() Parameters {
	p := DefaultParameters()
	p.Partitions = 4
	p.TransferTimeout = time.Second
	p.TransferAttempts = 2
	p.InitialBackoff = time.Millisecond
	return p
}

type testNode struct {
	id          string
	store       *LocalStore
	coordinator *Coordinator
	receiver    *ReceiptHandler
}

func newTestNode(id string, assignment *testAssignment, transport *testTransport, params Parameters) *testNode {
	store := NewLocalStore(params.Partitions, assignment)
	ret := &testNode{
		id:          id,
		store:       store,
		coordinator: NewCoordinator(id, store, assignment, testDirectory{}, transport, params, nil),
		receiver:    NewReceiptHandler(id, store, assignment, nil),
	}
	transport.add(id, ret.receiver)
	return ret
}

// Partition 1 moves from A to B. The key follows the partition.
func TestRebalanceMovesPartition(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())
	b := newTestNode("B", assignment, transport, testParams())

	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Equal([]int{0, 1}, res.Created)
	assert.Equal(uint64(1), res.Epoch)
	_, err = b.coordinator.Rebalance(context.Background())
	assert.NoError(err)

	assert.NoError(a.store.Put("k1", "v1"))

	assignment.set("A", "B", "B", "C")
	res, err = a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(res.Err())
	assert.Equal([]int{1}, res.Detached)
	assert.Equal([]int{1}, res.Transferred)
	assert.Equal(1, res.Retained)
	assert.Len(res.Created, 0)

	_, err = a.store.Get("k1")
	assert.Equal(ErrNotOwner, err)
	v, err := b.store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)
	assert.Equal([]int{0}, a.store.Partitions())
	assert.Equal([]int{1, 2}, b.store.Partitions())
	assert.Len(a.coordinator.Pending(), 0)
}

func TestRebalanceIsIdempotent(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(a.store.Put("k1", "v1"))

	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Len(res.Created, 0)
	assert.Len(res.Detached, 0)
	assert.Equal(2, res.Retained)
	assert.Equal(uint64(2), a.coordinator.Epoch())
	assert.Equal(0, transport.callCount())

	v, err := a.store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)
}

func TestRebalanceTransferFailure(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())
	b := newTestNode("B", assignment, transport, testParams())

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(a.store.Put("k1", "v1"))

	transport.setFailing("B", true)
	assignment.set("A", "B", "B", "C")
	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err, "Transfer failures are reported in the result")
	assert.Equal([]int{1}, res.Detached)
	assert.Len(res.Transferred, 0)
	assert.Len(res.Failures, 1)
	assert.Equal(1, res.Failures[0].Partition)
	assert.Equal("B", res.Failures[0].NodeID)
	assert.Equal("addr-B", res.Failures[0].Address)
	assert.True(errors.Is(res.Err(), ErrTransferFailure))
	assert.True(errors.Is(res.Err(), errUnreachable))
	assert.Equal(2, transport.callCount(), "Transfer should be retried")

	// The key is unavailable on both nodes until the handoff succeeds
	_, err = a.store.Get("k1")
	assert.Equal(ErrNotOwner, err)
	_, err = b.store.Get("k1")
	assert.Equal(ErrNotOwner, err)
	assert.Equal([]int{1}, a.coordinator.Pending())

	transport.setFailing("B", false)
	res, err = a.coordinator.RetryPending(context.Background())
	assert.NoError(err)
	assert.NoError(res.Err())
	assert.Equal([]int{1}, res.Transferred)
	assert.Len(res.Detached, 0)
	assert.Len(a.coordinator.Pending(), 0)

	v, err := b.store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)
}

func TestRebalanceRestoresPending(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(a.store.Put("k1", "v1"))

	transport.setFailing("B", true)
	assignment.set("A", "B", "B", "C")
	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Error(res.Err())

	// B leaves before the partition is delivered; it comes back to A
	assignment.set("A", "A", "C", "C")
	res, err = a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Equal([]int{1}, res.Restored)
	assert.Len(a.coordinator.Pending(), 0)

	v, err := a.store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)
}

func TestRebalanceAbandonsExpiredPending(t *testing.T) {
	assert := require.New(t)

	params := testParams()
	params.PendingExpiry = time.Millisecond
	params.TransferAttempts = 1
	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, params)

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(a.store.Put("k1", "v1"))

	transport.setFailing("B", true)
	assignment.set("A", "B", "B", "C")
	_, err = a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Equal([]int{1}, a.coordinator.Pending())

	time.Sleep(10 * time.Millisecond)
	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Equal([]int{1}, res.Abandoned)
	assert.Len(res.Failures, 0)
	assert.Len(a.coordinator.Pending(), 0)
}

func pendingAttempts(c *Coordinator, partition int) int {
	c.pending.mutex.Lock()
	defer c.pending.mutex.Unlock()
	e, ok := c.pending.entries[partition]
	if !ok {
		return 0
	}
	return e.attempts
}

// Retries in later passes don't reset the age of a pending handoff
func TestRebalanceExpiresPendingAcrossPasses(t *testing.T) {
	assert := require.New(t)

	const expiry = 200 * time.Millisecond
	params := testParams()
	params.PendingExpiry = expiry
	params.TransferAttempts = 1
	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, params)

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.NoError(a.store.Put("k1", "v1"))

	transport.setFailing("B", true)
	assignment.set("A", "B", "B", "C")
	failedAt := time.Now()
	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Len(res.Failures, 1)
	assert.Equal(1, pendingAttempts(a.coordinator, 1))

	for i := 2; i <= 3; i++ {
		time.Sleep(10 * time.Millisecond)
		res, err = a.coordinator.Rebalance(context.Background())
		assert.NoError(err)
		assert.Len(res.Abandoned, 0)
		assert.Len(res.Failures, 1)
		assert.Equal(i, pendingAttempts(a.coordinator, 1))
	}

	var abandoned []int
	for len(abandoned) == 0 && time.Since(failedAt) < 10*expiry {
		time.Sleep(20 * time.Millisecond)
		res, err = a.coordinator.Rebalance(context.Background())
		assert.NoError(err)
		abandoned = res.Abandoned
	}
	assert.Equal([]int{1}, abandoned, "Passes every 20ms should not keep the handoff alive")
	assert.True(time.Since(failedAt) >= expiry)
	assert.Len(a.coordinator.Pending(), 0)
}

func TestAbandonPending(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	transport.setFailing("B", true)
	assignment.set("A", "B", "B", "C")
	_, err = a.coordinator.Rebalance(context.Background())
	assert.NoError(err)

	assert.False(a.coordinator.AbandonPending(0))
	assert.True(a.coordinator.AbandonPending(1))
	assert.Len(a.coordinator.Pending(), 0)
}

func TestRebalanceNoOwner(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{}, "A", "A", "A", "A")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())
	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)

	assignment.set("A", "", "A", "A")
	res, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assert.Len(res.Failures, 1)
	assert.True(errors.Is(res.Failures[0], ErrNoOwner))
	assert.Equal(0, transport.callCount())
}

func TestRebalanceOwnerMapMismatch(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{}, "A", "A")
	a := newTestNode("A", assignment, newTestTransport(), testParams())
	_, err := a.coordinator.Rebalance(context.Background())
	assert.Error(err)
	assert.Len(a.store.Partitions(), 0)
	assert.Equal(uint64(0), a.coordinator.Epoch(), "Rejected passes don't use an epoch")
}

// A pass that can't start before the context is done reports a conflict
func TestRebalanceConflict(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{}, "A", "A", "B", "C")
	transport := newTestTransport()
	transport.entered = make(chan struct{}, 1)
	transport.block = make(chan struct{})
	a := newTestNode("A", assignment, transport, testParams())
	newTestNode("B", assignment, transport, testParams())

	_, err := a.coordinator.Rebalance(context.Background())
	assert.NoError(err)
	assignment.set("A", "B", "B", "C")

	wg := &sync.WaitGroup{}
	wg.Add(1)
	var first Result
	go func() {
		defer wg.Done()
		first, _ = a.coordinator.Rebalance(context.Background())
	}()

	select {
	case <-transport.entered:
	case <-time.After(5 * time.Second):
		assert.Fail("Transfer not started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.coordinator.Rebalance(ctx)
	assert.True(errors.Is(err, ErrRebalanceConflict))

	close(transport.block)
	wg.Wait()
	assert.Equal([]int{1}, first.Transferred)
}

func TestCoordinatorRun(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1}, "A", "A", "B", "C")
	transport := newTestTransport()
	a := newTestNode("A", assignment, transport, testParams())
	b := newTestNode("B", assignment, transport, testParams())

	ctx, cancel := context.WithCancel(context.Background())
	results := a.coordinator.Results()
	go a.coordinator.Run(ctx)

	a.coordinator.OnMembershipChanged()
	select {
	case r := <-results:
		assert.Equal([]int{0, 1}, r.Created)
	case <-time.After(5 * time.Second):
		assert.Fail("No result from coordinator")
	}
	assert.NoError(a.store.Put("k1", "v1"))

	assignment.set("A", "B", "B", "C")
	a.coordinator.OnMembershipChanged()
	for {
		var r Result
		select {
		case r = <-results:
		case <-time.After(5 * time.Second):
			assert.FailNow("No result from coordinator")
		}
		if len(r.Transferred) > 0 {
			assert.Equal([]int{1}, r.Transferred)
			break
		}
	}
	v, err := b.store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)

	cancel()
	select {
	case _, ok := <-results:
		for ok {
			_, ok = <-results
		}
	case <-time.After(5 * time.Second):
		assert.Fail("Result channel not closed")
	}
}

func TestReceiptHandler(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{"k1": 1, "k2": 1}, "A", "B", "B", "C")
	store := NewLocalStore(4, assignment)
	receiver := NewReceiptHandler("B", store, assignment, nil)

	assert.NoError(receiver.OnPartitionReceived(TransferPayload{Partition: 1, Data: map[string]string{"k1": "v1"}, Sender: "A", Epoch: 1}))
	v, err := store.Get("k1")
	assert.NoError(err)
	assert.Equal("v1", v)

	// Last writer wins
	assert.NoError(receiver.OnPartitionReceived(TransferPayload{Partition: 1, Data: map[string]string{"k2": "v2"}, Sender: "C", Epoch: 1}))
	_, err = store.Get("k1")
	assert.Equal(ErrNotFound, err)
	v, err = store.Get("k2")
	assert.NoError(err)
	assert.Equal("v2", v)

	// Stale deliveries are installed too
	assert.NoError(receiver.OnPartitionReceived(TransferPayload{Partition: 0, Sender: "C"}))
	assert.True(store.Owns(0))

	assert.Equal(ErrInvalidPartition, receiver.OnPartitionReceived(TransferPayload{Partition: 4}))

	noAssignment := NewReceiptHandler("B", NewLocalStore(4, assignment), nil, nil)
	assert.NoError(noAssignment.OnPartitionReceived(TransferPayload{Partition: 3, Data: nil}))
}

func TestMembershipNotificationsCoalesce(t *testing.T) {
	assert := require.New(t)

	assignment := newTestAssignment(keyPartitioner{}, "A", "A", "A", "A")
	a := newTestNode("A", assignment, newTestTransport(), testParams())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			a.coordinator.OnMembershipChanged()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		assert.Fail("Notifications should never block")
	}
	assert.Len(a.coordinator.trigger, 1)
}
