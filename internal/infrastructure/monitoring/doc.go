/*
Package monitoring provides metrics collection for the bridge.

# Overview

This package implements Prometheus-based metrics for the generation session,
the export pipeline and the backend connection. Metrics are registered on an
injected registry so several bridges (or tests) can coexist in one process.

# Usage

	metrics := monitoring.NewMetrics()
	metrics.RecordTransition("idle", "exporting")
	metrics.RecordExport(time.Since(start), "")

	// Expose via gin
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

A nil *Metrics is not valid; components that run without metrics receive
NewMetrics() on a throwaway registry.
*/
package monitoring
