// Package metrics exposes node counters to Prometheus.
//
// A nil *Metrics is valid and records nothing, so components take an
// optional *Metrics without checking it.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/conclave/internal/core"
)

const namespace = "conclave"

// Reply outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRetry    = "retry"
	OutcomeFallback = "fallback"
)

// Metrics holds the node's collectors.
type Metrics struct {
	reg prometheus.Registerer

	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	datagramsSent     prometheus.Counter
	bytesSent         prometheus.Counter
	compressedSent    prometheus.Counter
	decodeErrors      prometheus.Counter
	queueDropped      prometheus.Counter
	replyAttempts     *prometheus.CounterVec
	replyDuration     prometheus.Histogram
	lastActivity      prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// yields a nil *Metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		reg: reg,
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the multicast group",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "bytes_received_total",
			Help:      "Bytes read from the multicast group",
		}),
		datagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams written to the multicast group",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the multicast group",
		}),
		compressedSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "compressed_sent_total",
			Help:      "Datagrams sent with compressed content",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "decode_errors_total",
			Help:      "Datagrams skipped as malformed or foreign",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Messages dropped because the intake queue was full",
		}),
		replyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reply",
			Name:      "attempts_total",
			Help:      "Reply generation attempts by outcome",
		}, []string{"outcome"}),
		replyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reply",
			Name:      "duration_seconds",
			Help:      "Time to produce a reply, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "multicast",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received datagram",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.datagramsReceived, m.bytesReceived, m.datagramsSent, m.bytesSent,
		m.compressedSent, m.decodeErrors, m.queueDropped, m.replyAttempts,
		m.replyDuration, m.lastActivity,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// TrackQueue exports queue counters read from stats at scrape time.
func (m *Metrics) TrackQueue(stats func() core.QueueStats) error {
	if m == nil {
		return nil
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Messages buffered in the intake queue",
		}, func() float64 { return float64(stats().Len) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "capacity",
			Help:      "Intake queue capacity",
		}, func() float64 { return float64(stats().Cap) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "self_filtered_total",
			Help:      "Own broadcasts discarded by the intake queue",
		}, func() float64 { return float64(stats().Filtered) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "popped_total",
			Help:      "Messages handed to the processing loop",
		}, func() float64 { return float64(stats().Popped) }),
	}
	for _, c := range collectors {
		if err := m.reg.Register(c); err != nil {
			return fmt.Errorf("register queue collector: %w", err)
		}
	}
	return nil
}

// DatagramReceived records one inbound datagram of n bytes.
func (m *Metrics) DatagramReceived(n int) {
	if m == nil {
		return
	}
	m.datagramsReceived.Inc()
	m.bytesReceived.Add(float64(n))
	m.lastActivity.SetToCurrentTime()
}

// DatagramSent records one outbound datagram of n bytes.
func (m *Metrics) DatagramSent(n int, compressed bool) {
	if m == nil {
		return
	}
	m.datagramsSent.Inc()
	m.bytesSent.Add(float64(n))
	if compressed {
		m.compressedSent.Inc()
	}
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

// ReplyAttempt counts a generation attempt with the given outcome.
func (m *Metrics) ReplyAttempt(outcome string) {
	if m == nil {
		return
	}
	m.replyAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReply(d time.Duration) {
	if m == nil {
		return
	}
	m.replyDuration.Observe(d.Seconds())
}
