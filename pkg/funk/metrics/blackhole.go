package metrics

import "time"

// NewBlackHoleSink creates a metrics sink that discards all metrics. It's
// used when metrics are turned off and in tests.
func NewBlackHoleSink() Sink {
	return blackHoleSink{}
}

type blackHoleSink struct{}

func (blackHoleSink) SetClusterSize(int)             {}
func (blackHoleSink) SetPartitionCount(int)          {}
func (blackHoleSink) SetPendingHandoffs(int)         {}
func (blackHoleSink) LogRequest(method, code string) {}
func (blackHoleSink) LogTransfer(result string)      {}
func (blackHoleSink) LogRebalance(time.Duration)     {}
