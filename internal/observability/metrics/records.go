package metrics

import "time"

// Transaction records the terminal status of a transaction.
func Transaction(network, kind, status string, elapsed time.Duration) {
	if !enabled {
		return
	}
	transactionsTotal.WithLabelValues(network, kind, status).Inc()
	if elapsed > 0 {
		finalityDuration.WithLabelValues(network, kind).Observe(elapsed.Seconds())
	}
}

// PipelineRun records a completed pipeline run.
func PipelineRun(pipeline, network, result string, elapsed time.Duration) {
	if !enabled {
		return
	}
	pipelineRunsTotal.WithLabelValues(pipeline, network, result).Inc()
	pipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

// TokenItem records one iteration of a per-token loop.
func TokenItem(pipeline, network, result string) {
	if !enabled {
		return
	}
	tokenItemsTotal.WithLabelValues(pipeline, network, result).Inc()
}

// RPCRequest records a JSON-RPC request.
func RPCRequest(method, status string) {
	if !enabled {
		return
	}
	rpcRequestsTotal.WithLabelValues(method, status).Inc()
}

// StoreWrite records a deployment address write to the network store.
func StoreWrite(network, status string) {
	if !enabled {
		return
	}
	storeWritesTotal.WithLabelValues(network, status).Inc()
}
