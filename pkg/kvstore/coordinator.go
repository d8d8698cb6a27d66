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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/lab5e/partfunk/pkg/funk/metrics"
	"github.com/lab5e/partfunk/pkg/toolbox"
)

// Result is the outcome of a single rebalance pass.
type Result struct {
	Epoch       uint64           // Pass number on this node
	Created     []int            // Partitions that got a new, empty shard
	Retained    int              // Number of owned partitions left untouched
	Detached    []int            // Partitions removed from the local store
	Transferred []int            // Partitions delivered to their new owner
	Restored    []int            // Pending partitions merged back into the local store
	Abandoned   []int            // Pending partitions dropped after expiry. The data is lost.
	Failures    []*TransferError // Handoffs that failed. The partitions are kept as pending.
	Duration    time.Duration
}

// Err returns an error if one or more handoffs failed. The returned error
// matches ErrTransferFailure with errors.Is.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	if len(r.Failures) == 1 {
		return r.Failures[0]
	}
	return fmt.Errorf("%w: %d partitions failed, first error: %v", ErrTransferFailure, len(r.Failures), r.Failures[0])
}

// Coordinator keeps the local store in sync with the partition assignment
// and hands off partitions that have moved to other nodes. Passes are
// serialized; membership notifications that arrive while a pass is running
// are coalesced into a single new pass.
type Coordinator struct {
	nodeID     string
	store      *LocalStore
	assignment Assignment
	directory  Directory
	transport  Transport
	params     Parameters
	metrics    metrics.Sink
	pending    *pendingBuffer
	token      chan struct{} // single slot; holding it means running a pass
	trigger    chan struct{} // single slot; coalesces notifications
	mutex      *sync.Mutex
	results    []chan Result
	epoch      *uint64
}

// NewCoordinator creates a new rebalance coordinator for the local node.
func NewCoordinator(nodeID string, store *LocalStore, assignment Assignment, directory Directory, transport Transport, params Parameters, sink metrics.Sink) *Coordinator {
	params.Final()
	if sink == nil {
		sink = metrics.NewBlackHoleSink()
	}
	ret := &Coordinator{
		nodeID:     nodeID,
		store:      store,
		assignment: assignment,
		directory:  directory,
		transport:  transport,
		params:     params,
		metrics:    sink,
		pending:    newPendingBuffer(),
		token:      make(chan struct{}, 1),
		trigger:    make(chan struct{}, 1),
		mutex:      &sync.Mutex{},
		results:    make([]chan Result, 0),
		epoch:      new(uint64),
	}
	ret.token <- struct{}{}
	return ret
}

// OnMembershipChanged requests a rebalance pass. It never blocks. If a
// request is already queued the two are merged since the pass always uses
// the latest assignment.
func (c *Coordinator) OnMembershipChanged() {
	select {
	case c.trigger <- struct{}{}:
	default:
		// already queued
	}
}

// Results returns a channel with the results of passes run by Run. Results
// are dropped if the channel isn't read.
func (c *Coordinator) Results() <-chan Result {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ret := make(chan Result, 1)
	c.results = append(c.results, ret)
	return ret
}

func (c *Coordinator) publish(r Result) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, v := range c.results {
		select {
		case v <- r:
		default:
		}
	}
}

// Run processes membership notifications until the context is cancelled.
// Run the coordinator on its own goroutine; passes block on network I/O.
func (c *Coordinator) Run(ctx context.Context) {
	defer func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		for _, v := range c.results {
			close(v)
		}
		c.results = nil
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
			var (
				result Result
				err    error
			)
			toolbox.TimeCall(func() { result, err = c.Rebalance(ctx) }, "Rebalance pass")
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Error("Rebalance pass failed")
				}
				continue
			}
			c.publish(result)
		}
	}
}

// Epoch returns the number of passes started on this node
func (c *Coordinator) Epoch() uint64 {
	return atomic.LoadUint64(c.epoch)
}

// Pending returns the partitions that are detached but not yet delivered
func (c *Coordinator) Pending() []int {
	return c.pending.partitions()
}

// AbandonPending drops a pending handoff. The partition's data is lost.
// Returns false if there's no pending handoff for the partition.
func (c *Coordinator) AbandonPending(partition int) bool {
	e, ok := c.pending.take(partition)
	if !ok {
		return false
	}
	log.WithFields(log.Fields{
		"partition": partition,
		"keys":      len(e.payload.Data),
		"attempts":  e.attempts,
	}).Error("Pending handoff abandoned by request. Partition data is lost")
	c.metrics.LogTransfer(metrics.TransferAbandoned)
	c.metrics.SetPendingHandoffs(c.pending.size())
	return true
}

// RetryPending runs a new pass. Pending handoffs are retried as part of
// every pass.
func (c *Coordinator) RetryPending(ctx context.Context) (Result, error) {
	return c.Rebalance(ctx)
}

type handoff struct {
	owner   string
	payload TransferPayload
	retry   *pendingHandoff // The pending handoff this one retries, if any
}

// Rebalance runs a single rebalance pass. It waits for any running pass to
// complete first; if the context is done before that ErrRebalanceConflict
// is returned. Failed handoffs are reported in the result and don't stop
// the pass.
func (c *Coordinator) Rebalance(ctx context.Context) (Result, error) {
	select {
	case <-c.token:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrRebalanceConflict, ctx.Err())
	}
	defer func() { c.token <- struct{}{} }()

	start := time.Now()
	owners := c.assignment.OwnerMap()
	if len(owners) != c.store.PartitionCount() {
		return Result{}, fmt.Errorf("owner map has %d partitions, expected %d", len(owners), c.store.PartitionCount())
	}
	result := Result{Epoch: atomic.AddUint64(c.epoch, 1)}

	for _, e := range c.pending.expire(c.params.PendingExpiry, start) {
		log.WithFields(log.Fields{
			"partition": e.payload.Partition,
			"keys":      len(e.payload.Data),
			"attempts":  e.attempts,
			"since":     e.since,
		}).WithError(e.lastErr).Error("Pending handoff expired. Partition data is lost")
		result.Abandoned = append(result.Abandoned, e.payload.Partition)
		c.metrics.LogTransfer(metrics.TransferAbandoned)
	}

	var handoffs []handoff
	for partition, owner := range owners {
		if owner == c.nodeID {
			if e, ok := c.pending.take(partition); ok {
				// The partition came back before it could be delivered.
				if err := c.store.Restore(partition, e.payload.Data); err != nil {
					log.WithError(err).WithField("partition", partition).Error("Unable to restore pending partition")
					continue
				}
				result.Restored = append(result.Restored, partition)
				continue
			}
			created, err := c.store.Ensure(partition)
			if err != nil {
				log.WithError(err).WithField("partition", partition).Error("Unable to create shard")
				continue
			}
			if created {
				result.Created = append(result.Created, partition)
			} else {
				result.Retained++
			}
			continue
		}

		data, detached := c.store.Detach(partition)
		if detached {
			result.Detached = append(result.Detached, partition)
		}
		retry, ok := c.pending.take(partition)
		if ok {
			if !detached {
				data = retry.payload.Data
			} else {
				// Both a pending payload and a newer local shard. The
				// local values are newer.
				for k, v := range retry.payload.Data {
					if _, exists := data[k]; !exists {
						data[k] = v
					}
				}
			}
			detached = true
		}
		if !detached {
			continue
		}
		handoffs = append(handoffs, handoff{
			owner: owner,
			retry: retry,
			payload: TransferPayload{
				Partition: partition,
				Data:      data,
				Sender:    c.nodeID,
				Epoch:     result.Epoch,
			},
		})
	}

	transferred, failures := c.deliver(ctx, handoffs)
	result.Transferred = transferred
	result.Failures = failures
	result.Duration = time.Since(start)

	c.metrics.SetPartitionCount(len(c.store.Partitions()))
	c.metrics.SetPendingHandoffs(c.pending.size())
	c.metrics.LogRebalance(result.Duration)

	log.WithFields(log.Fields{
		"epoch":       result.Epoch,
		"created":     len(result.Created),
		"retained":    result.Retained,
		"detached":    len(result.Detached),
		"transferred": len(result.Transferred),
		"restored":    len(result.Restored),
		"failed":      len(result.Failures),
		"pending":     c.pending.size(),
	}).Info("Rebalance completed")
	return result, nil
}

// deliver runs the handoffs in parallel. Failed handoffs are moved to the
// pending buffer.
func (c *Coordinator) deliver(ctx context.Context, handoffs []handoff) ([]int, []*TransferError) {
	if len(handoffs) == 0 {
		return nil, nil
	}
	var (
		mutex       sync.Mutex
		wg          sync.WaitGroup
		transferred []int
		failures    []*TransferError
	)
	sem := semaphore.NewWeighted(int64(c.params.Concurrency))
	for _, h := range handoffs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// The context is done. Everything that remains is pending.
			terr := &TransferError{Partition: h.payload.Partition, NodeID: h.owner, Err: err}
			c.failed(h, terr)
			mutex.Lock()
			failures = append(failures, terr)
			mutex.Unlock()
			continue
		}
		wg.Add(1)
		go func(h handoff) {
			defer wg.Done()
			defer sem.Release(1)
			terr := c.send(ctx, h)
			mutex.Lock()
			defer mutex.Unlock()
			if terr != nil {
				c.failed(h, terr)
				failures = append(failures, terr)
				return
			}
			transferred = append(transferred, h.payload.Partition)
		}(h)
	}
	wg.Wait()
	sort.Ints(transferred)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Partition < failures[j].Partition })
	return transferred, failures
}

func (c *Coordinator) failed(h handoff, terr *TransferError) {
	log.WithFields(log.Fields{
		"partition": terr.Partition,
		"node":      terr.NodeID,
		"address":   terr.Address,
		"keys":      len(h.payload.Data),
	}).WithError(terr.Err).Error("Partition transfer failed. Keeping partition as pending handoff")
	c.pending.put(h.payload, terr.Err, time.Now(), h.retry)
	c.metrics.LogTransfer(metrics.TransferFailed)
}

// send delivers a single payload with retries. Each attempt is bounded by
// the transfer timeout.
func (c *Coordinator) send(ctx context.Context, h handoff) *TransferError {
	terr := &TransferError{Partition: h.payload.Partition, NodeID: h.owner}
	if h.owner == "" {
		terr.Err = ErrNoOwner
		return terr
	}
	address, err := c.directory.TransferAddress(h.owner)
	if err != nil {
		terr.Err = err
		return terr
	}
	terr.Address = address

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.params.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.params.TransferAttempts-1)), ctx)

	err = backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.params.TransferTimeout)
		defer cancel()
		err := c.transport.Send(attemptCtx, address, h.payload)
		if err != nil {
			log.WithFields(log.Fields{
				"partition": h.payload.Partition,
				"node":      h.owner,
			}).WithError(err).Debug("Transfer attempt failed")
		}
		return err
	}, policy)
	if err != nil {
		terr.Err = err
		return terr
	}
	c.metrics.LogTransfer(metrics.TransferOK)
	return nil
}
