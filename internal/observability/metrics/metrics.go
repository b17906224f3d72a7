// Package metrics provides Prometheus instrumentation for gatewayctl.
//
// gatewayctl is a short-lived process, so metrics are not scraped. They are
// written once at exit to a node_exporter textfile collector directory.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enabled     bool
	serviceName string
	registry    *prometheus.Registry

	// Transaction metrics
	transactionsTotal *prometheus.CounterVec
	finalityDuration  *prometheus.HistogramVec

	// Pipeline metrics
	pipelineRunsTotal *prometheus.CounterVec
	pipelineDuration  *prometheus.HistogramVec
	tokenItemsTotal   *prometheus.CounterVec

	// RPC metrics
	rpcRequestsTotal *prometheus.CounterVec

	// Bookkeeping metrics
	storeWritesTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Calling it again starts from a fresh
// registry.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		registry = nil
		return
	}

	registry = prometheus.NewRegistry()
	factory := promauto.With(registry)
	constLabels := prometheus.Labels{"service": serviceName}

	// Transaction outcome counter
	transactionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "gatewayctl_transactions_total",
			Help:        "Total number of transactions by final status",
			ConstLabels: constLabels,
		},
		[]string{"network", "kind", "status"},
	)

	// Time from submission to finality
	finalityDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "gatewayctl_transaction_finality_seconds",
			Help:        "Time from submission until a transaction reached a terminal status",
			Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			ConstLabels: constLabels,
		},
		[]string{"network", "kind"},
	)

	// Pipeline run counter
	pipelineRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "gatewayctl_pipeline_runs_total",
			Help:        "Total number of pipeline runs by result",
			ConstLabels: constLabels,
		},
		[]string{"pipeline", "network", "result"},
	)

	// Pipeline duration histogram
	pipelineDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "gatewayctl_pipeline_duration_seconds",
			Help:        "Pipeline wall-clock duration in seconds",
			Buckets:     []float64{1, 10, 30, 60, 300, 900, 1800},
			ConstLabels: constLabels,
		},
		[]string{"pipeline"},
	)

	// Per-token loop item counter
	tokenItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "gatewayctl_token_items_total",
			Help:        "Total number of per-token configuration steps by result",
			ConstLabels: constLabels,
		},
		[]string{"pipeline", "network", "result"},
	)

	// JSON-RPC request counter
	rpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "gatewayctl_rpc_requests_total",
			Help:        "Total number of JSON-RPC requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "status"},
	)

	// Network store writes
	storeWritesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "gatewayctl_store_writes_total",
			Help:        "Total number of deployment address writes to the network store",
			ConstLabels: constLabels,
		},
		[]string{"network", "status"},
	)
}

// WriteTextfile writes all collected metrics in the text exposition format.
func WriteTextfile(path string) error {
	if !enabled {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Gatherer exposes the registry, mainly for tests.
func Gatherer() prometheus.Gatherer {
	if registry == nil {
		return prometheus.NewRegistry()
	}
	return registry
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
