package kvstore

import (
	"sort"
	"sync"
	"time"
)

// pendingHandoff is a detached partition that couldn't be delivered. It is
// not served locally; it's kept until a later pass delivers it, the
// partition comes back to this node or it expires.
type pendingHandoff struct {
	payload  TransferPayload
	since    time.Time
	attempts int
	lastErr  error
}

type pendingBuffer struct {
	mutex   *sync.Mutex
	entries map[int]*pendingHandoff
}

func newPendingBuffer() *pendingBuffer {
	return &pendingBuffer{
		mutex:   &sync.Mutex{},
		entries: make(map[int]*pendingHandoff),
	}
}

// put adds a failed handoff. A retry of an earlier pending handoff keeps
// the first failure time and counts the attempt so retries don't extend
// the expiry.
func (p *pendingBuffer) put(payload TransferPayload, err error, now time.Time, retry *pendingHandoff) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	e := &pendingHandoff{payload: payload, since: now, attempts: 1, lastErr: err}
	if existing, ok := p.entries[payload.Partition]; ok {
		retry = existing
	}
	if retry != nil {
		e.since = retry.since
		e.attempts = retry.attempts + 1
	}
	p.entries[payload.Partition] = e
}

// take removes and returns the pending handoff for a partition
func (p *pendingBuffer) take(partition int) (*pendingHandoff, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	e, ok := p.entries[partition]
	if ok {
		delete(p.entries, partition)
	}
	return e, ok
}

// expire removes the entries older than maxAge and returns them
func (p *pendingBuffer) expire(maxAge time.Duration, now time.Time) []*pendingHandoff {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var ret []*pendingHandoff
	for k, v := range p.entries {
		if now.Sub(v.since) > maxAge {
			ret = append(ret, v)
			delete(p.entries, k)
		}
	}
	return ret
}

func (p *pendingBuffer) partitions() []int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	ret := make([]int, 0, len(p.entries))
	for k := range p.entries {
		ret = append(ret, k)
	}
	sort.Ints(ret)
	return ret
}

func (p *pendingBuffer) size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}
