// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

// Package metrics holds the Prometheus collectors. All names are prefixed
// with "vidfetch_" and registered on the default registry via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidfetch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidfetch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidfetch_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// External tool metrics
var (
	ToolRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidfetch_tool_runs_total",
			Help: "Total number of external tool runs by operation and status",
		},
		[]string{"operation", "status"},
	)

	ToolRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidfetch_tool_run_duration_seconds",
			Help:    "External tool run duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	ToolPeakMemoryBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidfetch_tool_peak_memory_bytes",
			Help: "Peak resident memory of the last external tool run",
		},
		[]string{"operation"},
	)

	ToolPeakCPUPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidfetch_tool_peak_cpu_percent",
			Help: "Peak CPU usage in percent of the last external tool run",
		},
		[]string{"operation"},
	)

	ToolRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidfetch_tool_runs_in_progress",
			Help: "Number of external tool processes currently running",
		},
	)
)

// Artifact metrics
var (
	ArtifactsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidfetch_artifacts_created_total",
			Help: "Total number of artifacts handed out",
		},
	)

	ArtifactsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidfetch_artifacts_expired_total",
			Help: "Total number of artifacts deleted by the expiry sweep",
		},
	)

	ArtifactsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidfetch_artifacts_active",
			Help: "Number of artifacts waiting for expiry",
		},
	)

	ArtifactFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidfetch_artifact_fetches_total",
			Help: "Total number of artifact fetches by result",
		},
		[]string{"result"},
	)
)
