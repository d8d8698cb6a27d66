package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var oneTimeRegister sync.Once

type prometheusSink struct {
	clusterSize     *prometheus.GaugeVec
	partitionCount  *prometheus.GaugeVec
	pendingHandoffs *prometheus.GaugeVec
	requests        *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	rebalance       *prometheus.HistogramVec
}

var promMetrics *prometheusSink

// NewPrometheusSink creates a metrics sink for Prometheus. All sinks created
// by this function will write to the same sinks.
func NewPrometheusSink(nodeid string) Sink {
	// This registers the metrics for the first time but not for subsequent
	// calls. Since this is a one-time operation it will also work for unit
	// tests but the registration might be stale or incorrect.
	oneTimeRegister.Do(func() {
		constLabels := prometheus.Labels{
			"node": nodeid,
		}
		promMetrics = &prometheusSink{
			// clusterSize reports the cluster size as seen by the node.
			clusterSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace:   "pf",
					Subsystem:   "cluster",
					Name:        "clusterSize",
					Help:        "Cluster size",
					ConstLabels: constLabels,
				},
				[]string{}),
			// partitionCount reports the number of partitions held by the node.
			partitionCount: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace:   "pf",
					Subsystem:   "store",
					Name:        "partitionCount",
					Help:        "Number of partitions held by the local node",
					ConstLabels: constLabels,
				},
				[]string{}),
			// pendingHandoffs is the number of detached partitions that
			// haven't been delivered yet.
			pendingHandoffs: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace:   "pf",
					Subsystem:   "rebalance",
					Name:        "pendingHandoffs",
					Help:        "Detached partitions waiting for delivery",
					ConstLabels: constLabels,
				},
				[]string{}),
			// requests show the number of requests handled by the gRPC interceptor.
			requests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace:   "pf",
					Subsystem:   "store",
					Name:        "requests",
					Help:        "Requests handled by node",
					ConstLabels: constLabels,
				},
				[]string{"method", "code"}),
			transfers: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace:   "pf",
					Subsystem:   "rebalance",
					Name:        "transfers",
					Help:        "Partition transfers by result",
					ConstLabels: constLabels,
				},
				[]string{"result"}),
			rebalance: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace:   "pf",
					Subsystem:   "rebalance",
					Name:        "passSeconds",
					Help:        "Duration of rebalance passes",
					ConstLabels: constLabels,
					Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
				},
				[]string{}),
		}
		prometheus.MustRegister(promMetrics.clusterSize)
		prometheus.MustRegister(promMetrics.partitionCount)
		prometheus.MustRegister(promMetrics.pendingHandoffs)
		prometheus.MustRegister(promMetrics.requests)
		prometheus.MustRegister(promMetrics.transfers)
		prometheus.MustRegister(promMetrics.rebalance)
	})
	return promMetrics
}

func (p *prometheusSink) SetClusterSize(size int) {
	p.clusterSize.With(prometheus.Labels{}).Set(float64(size))
}

func (p *prometheusSink) SetPartitionCount(partitions int) {
	p.partitionCount.With(prometheus.Labels{}).Set(float64(partitions))
}

func (p *prometheusSink) SetPendingHandoffs(count int) {
	p.pendingHandoffs.With(prometheus.Labels{}).Set(float64(count))
}

func (p *prometheusSink) LogRequest(method, code string) {
	p.requests.With(prometheus.Labels{
		"method": method,
		"code":   code,
	}).Inc()
}

func (p *prometheusSink) LogTransfer(result string) {
	p.transfers.With(prometheus.Labels{"result": result}).Inc()
}

func (p *prometheusSink) LogRebalance(duration time.Duration) {
	p.rebalance.With(prometheus.Labels{}).Observe(duration.Seconds())
}
