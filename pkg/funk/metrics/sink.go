package metrics

import "time"

// Sink is the metrics sink for the node. Implement this interface to write
// to other kinds of systems.
type Sink interface {
	SetClusterSize(size int)
	SetPartitionCount(partitions int)
	SetPendingHandoffs(count int)
	LogRequest(method, code string)
	LogTransfer(result string)
	LogRebalance(duration time.Duration)
}

// The list of supported metrics
const (
	PrometheusSink = "prometheus"
	NoSink         = "none"
)

// Transfer results for LogTransfer
const (
	TransferOK        = "ok"        // Partition delivered to the new owner
	TransferFailed    = "failed"    // Delivery failed, partition is pending
	TransferAbandoned = "abandoned" // Pending partition dropped
	TransferReceived  = "received"  // Partition installed from another node
	TransferStale     = "stale"     // Received partition isn't assigned to this node
)

// NewSinkFromString returns a named sink
func NewSinkFromString(name string, nodeid string) Sink {
	switch name {
	case PrometheusSink:
		return NewPrometheusSink(nodeid)
	default:
		return NewBlackHoleSink()
	}
}
