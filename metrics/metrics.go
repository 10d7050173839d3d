// Package metrics holds the prometheus collectors of the query façade.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "massa_api"

var (
	RPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "JSON-RPC calls by method and outcome kind",
	}, []string{"method", "outcome"})

	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_request_duration_seconds",
		Help:      "JSON-RPC call latency",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"method"})

	SnapshotBuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_builds_total",
		Help:      "Graph snapshots built from consensus state",
	})

	SnapshotReuses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_reuses_total",
		Help:      "Snapshot acquisitions served by a cached snapshot",
	})

	SnapshotBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "snapshot_build_duration_seconds",
		Help:      "Time spent copying consensus state and enumerating cliques",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	MempoolOperations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mempool_operations",
		Help:      "Operations waiting in the pool",
	})

	OperationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_rejected_total",
		Help:      "Submitted operations left out of a batch, by error kind",
	}, []string{"kind"})

	ConnectedPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_peers",
		Help:      "Peers reachable at the last probe",
	})
)

// NewRegistry creates a registry with the process, Go and façade collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewProcessCollector(
		prometheus.ProcessCollectorOpts{Namespace: namespace},
	))
	registry.MustRegister(prometheus.NewGoCollector())

	registry.MustRegister(RPCRequests)
	registry.MustRegister(RPCDuration)
	registry.MustRegister(SnapshotBuilds)
	registry.MustRegister(SnapshotReuses)
	registry.MustRegister(SnapshotBuildDuration)
	registry.MustRegister(MempoolOperations)
	registry.MustRegister(OperationsRejected)
	registry.MustRegister(ConnectedPeers)

	return registry
}
