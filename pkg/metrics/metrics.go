// Package metrics aggregates process-wide counters for the storage
// layer.
//
// The collector is explicitly owned and injected, never implicit shared
// state: tests build one on their own registry and reset it
// deterministically by dropping the registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the counters of one storage deployment.
type Collector struct {
	// Ops counts storage operations by name and outcome
	Ops *prometheus.CounterVec

	// Bytes counts payload bytes moved through the storage layer,
	// by direction (read, write)
	Bytes *prometheus.CounterVec

	// TraversalRejections counts rejected path-traversal attempts.
	// Every increment is a security event.
	TraversalRejections prometheus.Counter

	// OversizeRejections counts streams aborted over their byte budget
	OversizeRejections prometheus.Counter
}

// New builds a collector and registers it on the given registerer.
// A nil registerer keeps the counters unregistered, which tests use to
// stay isolated.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flotilla",
			Subsystem: "storage",
			Name:      "ops_total",
			Help:      "storage operations by name and outcome",
		}, []string{"op", "outcome"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flotilla",
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "payload bytes moved through the storage layer",
		}, []string{"direction"}),
		TraversalRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flotilla",
			Subsystem: "storage",
			Name:      "path_traversal_rejections_total",
			Help:      "rejected attempts to escape a repository root",
		}),
		OversizeRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flotilla",
			Subsystem: "storage",
			Name:      "payload_oversize_rejections_total",
			Help:      "streams aborted for exceeding their byte budget",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Ops, c.Bytes, c.TraversalRejections, c.OversizeRejections)
	}
	return c
}

// Op records one operation outcome.
func (c *Collector) Op(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Ops.WithLabelValues(name, outcome).Inc()
}
