package kvstore

import (
	"context"
	"time"
)

// TransferPayload is a partition handed off from one node to another. The
// contents are a snapshot taken when the partition was detached.
type TransferPayload struct {
	Partition int
	Data      map[string]string
	Sender    string // Node ID of the sender
	Epoch     uint64 // The sender's rebalance pass number. Informational.
}

// Transport delivers a payload to the node listening on address. The call
// returns when the remote receipt handler has installed the partition or
// when it fails.
type Transport interface {
	Send(ctx context.Context, address string, payload TransferPayload) error
}

// Assignment is the partition assignment for the current membership.
type Assignment interface {
	Partitioner

	// OwnerMap returns the owning node ID for every partition. The slice
	// is indexed by partition ID and is a snapshot; it's safe to keep.
	OwnerMap() []string
}

// Directory resolves node IDs into transfer addresses
type Directory interface {
	TransferAddress(nodeID string) (string, error)
}

// Parameters is the configuration for the rebalance coordinator.
// The struct uses annotations from Kong (https://github.com/alecthomas/kong)
type Parameters struct {
	Partitions       int           `kong:"help='Number of partitions in the cluster. Must be the same on all nodes',default='1024'"`
	TransferTimeout  time.Duration `kong:"help='Timeout for a single transfer attempt',default='5s'"`
	TransferAttempts int           `kong:"help='Number of attempts per partition transfer',default='3'"`
	InitialBackoff   time.Duration `kong:"help='Initial backoff between transfer attempts',default='100ms'"`
	Concurrency      int           `kong:"help='Max concurrent transfers per rebalance pass',default='8'"`
	PendingExpiry    time.Duration `kong:"help='Time before an undelivered partition is dropped',default='10m'"`
}

// DefaultParameters returns the default coordinator parameters. These are
// the same as the Kong defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Partitions:       1024,
		TransferTimeout:  5 * time.Second,
		TransferAttempts: 3,
		InitialBackoff:   100 * time.Millisecond,
		Concurrency:      8,
		PendingExpiry:    10 * time.Minute,
	}
}

// Final replaces invalid values with the defaults
func (p *Parameters) Final() {
	def := DefaultParameters()
	if p.Partitions < 1 {
		p.Partitions = def.Partitions
	}
	if p.TransferTimeout <= 0 {
		p.TransferTimeout = def.TransferTimeout
	}
	if p.TransferAttempts < 1 {
		p.TransferAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.PendingExpiry <= 0 {
		p.PendingExpiry = def.PendingExpiry
	}
}
