// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nowlink

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "nowlink"

// Session outcome labels
const (
	OutcomeClosed   = "closed"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeDiverged = "diverged"
)

// Metrics holds the counters shared by all components of a node. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	framesIn      prometheus.Counter
	framesOut     prometheus.Counter
	framesDropped *prometheus.CounterVec
	sendErrors    prometheus.Counter
	peers         prometheus.Gauge
	evictions     prometheus.Counter
	sessions      *prometheus.CounterVec
}

// NewMetrics creates the metric set and registers it with reg. A nil reg
// leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Frames read from the radio transport.",
		}),
		framesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Frames handed to the radio transport.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped locally, by reason.",
		}, []string{"reason"}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "send_errors_total",
			Help:      "Transport send failures (absorbed).",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "peers_cached",
			Help:      "Peers currently held in the peer cache.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "peer_evictions_total",
			Help:      "Peers pushed out of the cache by capacity pressure.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.framesIn, m.framesOut, m.framesDropped, m.sendErrors,
			m.peers, m.evictions, m.sessions)
	}
	return m
}

// FrameReceived counts one inbound frame
func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesIn.Inc()
	}
}

// FrameSent counts one outbound frame
func (m *Metrics) FrameSent() {
	if m != nil {
		m.framesOut.Inc()
	}
}

// FrameDropped counts one locally dropped frame
func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

// SendFailed counts one absorbed transport error
func (m *Metrics) SendFailed() {
	if m != nil {
		m.sendErrors.Inc()
	}
}

// PeerCount records the current cache size
func (m *Metrics) PeerCount(n int) {
	if m != nil {
		m.peers.Set(float64(n))
	}
}

// PeerEvicted counts one capacity eviction
func (m *Metrics) PeerEvicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

// SessionEnded counts one terminal session transition
func (m *Metrics) SessionEnded(outcome string) {
	if m != nil {
		m.sessions.WithLabelValues(outcome).Inc()
	}
}
