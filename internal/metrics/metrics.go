// Package metrics provides Prometheus metrics for configuration generation.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesRenderedTotal counts rendered configuration files by name.
	FilesRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemsgen",
			Subsystem: "render",
			Name:      "files_total",
			Help:      "Total number of configuration files rendered",
		},
		[]string{"file"},
	)

	// RenderDuration tracks time spent rendering a file.
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nemsgen",
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Configuration file render duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"file"},
	)

	// FilesWrittenTotal counts write attempts by backend and outcome.
	FilesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemsgen",
			Subsystem: "dataflow",
			Name:      "files_total",
			Help:      "Total number of configuration file writes",
		},
		[]string{"backend", "result"}, // result: written, overwritten, skipped, error
	)

	// BytesWrittenTotal counts bytes stored by backend.
	BytesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemsgen",
			Subsystem: "dataflow",
			Name:      "bytes_total",
			Help:      "Total number of bytes written",
		},
		[]string{"backend"},
	)

	// MirrorFallbacksTotal counts mirrors that were copied because linking failed.
	MirrorFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemsgen",
			Subsystem: "dataflow",
			Name:      "mirror_fallbacks_total",
			Help:      "Total number of mirror links replaced by copies",
		},
		[]string{"backend"},
	)

	// ProcessorsAllocated reports the processor width per component type.
	ProcessorsAllocated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nemsgen",
			Subsystem: "system",
			Name:      "processors",
			Help:      "Processors allocated per component",
		},
		[]string{"component"},
	)

	// ChecksTotal counts manifest check evaluations by outcome.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nemsgen",
			Subsystem: "manifest",
			Name:      "checks_total",
			Help:      "Total number of manifest checks evaluated",
		},
		[]string{"result"}, // passed, failed, error
	)
)

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
