// Package metrics provides Prometheus instrumentation for the capture
// pipeline: frame throughput, decode outcomes, and flow table size.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// Init enables metrics collection and returns a fresh registry. Subsequent
// calls to NewCollector() build instruments against this registry.
func Init() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format. Returns nil if metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Collector holds the instruments used by the capture pipeline. A nil
// *Collector is safe to call methods on; they become no-ops, which lets
// call sites skip an IsEnabled() check before every observation.
type Collector struct {
	framesProcessed  *prometheus.CounterVec
	frameDuration    prometheus.Histogram
	segmentsByType   *prometheus.CounterVec
	decodeOutcomes   *prometheus.CounterVec
	decodeDuration   prometheus.Histogram
	flowCount        prometheus.Gauge
	flowEvictions    prometheus.Counter
	queueBufferBytes *prometheus.GaugeVec
	assetRefreshes   *prometheus.CounterVec
}

// NewCollector builds a Collector registered against the active registry.
// Returns nil if metrics are not enabled.
func NewCollector() *Collector {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	return &Collector{
		framesProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffxivsniff_frames_processed_total",
				Help: "Total number of frames processed, by outcome",
			},
			[]string{"outcome"}, // "ok", "encrypted", "error"
		),
		frameDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "ffxivsniff_frame_processing_seconds",
				Help: "Duration of frame processing from header parse to last emitted event",
				Buckets: []float64{
					0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1,
				},
			},
		),
		segmentsByType: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffxivsniff_segments_total",
				Help: "Total number of segments observed, by segment type",
			},
			[]string{"segment_type"},
		),
		decodeOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffxivsniff_ipc_decode_total",
				Help: "Total number of IPC decode attempts, by outcome",
			},
			[]string{"outcome"}, // "decoded", "unknown_opcode", "error"
		),
		decodeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "ffxivsniff_ipc_decode_seconds",
				Help: "Duration of a single IPC body decode",
				Buckets: []float64{
					0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005,
				},
			},
		),
		flowCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "ffxivsniff_flows_active",
				Help: "Current number of tracked flows in the demultiplexer",
			},
		),
		flowEvictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ffxivsniff_flow_evictions_total",
				Help: "Total number of flows evicted by the idle-flow sweep",
			},
		),
		queueBufferBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ffxivsniff_queue_buffer_bytes",
				Help: "Current buffered byte count per tracked flow",
			},
			[]string{"dest_port"},
		),
		assetRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffxivsniff_asset_refresh_total",
				Help: "Total number of opcode/constants catalog refresh attempts, by outcome",
			},
			[]string{"outcome"}, // "<kind>_fetched", "<kind>_stale_cache", "<kind>_error"; kind is "opcodes" or "constants"
		),
	}
}

func (c *Collector) ObserveFrame(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.framesProcessed.WithLabelValues(outcome).Inc()
	c.frameDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveSegment(segmentType int) {
	if c == nil {
		return
	}
	c.segmentsByType.WithLabelValues(segmentTypeLabel(segmentType)).Inc()
}

func (c *Collector) ObserveDecode(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.decodeOutcomes.WithLabelValues(outcome).Inc()
	c.decodeDuration.Observe(d.Seconds())
}

func (c *Collector) SetFlowCount(n int) {
	if c == nil {
		return
	}
	c.flowCount.Set(float64(n))
}

func (c *Collector) RecordFlowEviction() {
	if c == nil {
		return
	}
	c.flowEvictions.Inc()
}

func (c *Collector) SetQueueBufferBytes(destPort uint16, n int) {
	if c == nil {
		return
	}
	c.queueBufferBytes.WithLabelValues(portLabel(destPort)).Set(float64(n))
}

func (c *Collector) ObserveAssetRefresh(outcome string) {
	if c == nil {
		return
	}
	c.assetRefreshes.WithLabelValues(outcome).Inc()
}
