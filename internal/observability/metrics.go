package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emberctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "emberctl",
			Subsystem: "transport",
			Name:      "connections",
			Help:      "Currently connected consumers.",
		},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "transport",
			Name:      "disconnects_total",
			Help:      "Consumer disconnects by reason.",
		},
		[]string{"reason"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "s101",
			Name:      "frames_total",
			Help:      "S101 frames by direction.",
		},
		[]string{"direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "s101",
			Name:      "bytes_total",
			Help:      "S101 wire bytes by direction.",
		},
		[]string{"direction"},
	)
	frameDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "s101",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded for CRC mismatch, truncation, or size.",
		},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "glow",
			Name:      "decode_errors_total",
			Help:      "Inbound messages that could not be decoded.",
		},
		[]string{"stage"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Dispatched consumer requests by kind.",
		},
		[]string{"kind"},
	)
	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emberctl",
			Subsystem: "provider",
			Name:      "broadcast_recipients_total",
			Help:      "Messages fanned out to consumers by kind.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			connections,
			disconnects,
			frames,
			frameBytes,
			frameDrops,
			decodeErrors,
			requests,
			broadcasts,
		)
	})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

func RecordConnected() {
	RegisterMetrics()
	connections.Inc()
}

func RecordDisconnected(reason string) {
	RegisterMetrics()
	connections.Dec()
	disconnects.WithLabelValues(reason).Inc()
}

// RecordFrames counts frames and wire bytes; direction is "in" or "out".
func RecordFrames(direction string, count, bytes int) {
	RegisterMetrics()
	frames.WithLabelValues(direction).Add(float64(count))
	frameBytes.WithLabelValues(direction).Add(float64(bytes))
}

func RecordFrameDrops(n uint64) {
	if n == 0 {
		return
	}
	RegisterMetrics()
	frameDrops.Add(float64(n))
}

func RecordDecodeError(stage string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(stage).Inc()
}

func RecordRequest(kind string) {
	RegisterMetrics()
	requests.WithLabelValues(kind).Inc()
}

func RecordBroadcast(kind string, recipients int) {
	RegisterMetrics()
	broadcasts.WithLabelValues(kind).Add(float64(recipients))
}
