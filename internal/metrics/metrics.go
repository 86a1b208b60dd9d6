// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the engine's six stable counters plus a
// status gauge (spec.md §4.6/§9). A prometheus.Counter is already
// safe for concurrent Inc calls, which is what satisfies the "atomic
// or lock-protected" requirement without an extra mutex of our own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics is a handle to every counter/gauge the engine exposes. It
// is registered into a single registry so cmd/dvsd can serve it once
// on the admin HTTP surface.
type Metrics struct {
	Messages      prometheus.Counter
	Duplicate     prometheus.Counter
	Stale         prometheus.Counter
	GCStation     prometheus.Counter
	GCTrain       prometheus.Counter
	Injections    prometheus.Counter
	DowntimeState *prometheus.GaugeVec
}

// New creates a Metrics bundle and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "messages_total",
			Help:      "Feed payloads taken off the work queue, whether or not they decoded.",
		}),
		Duplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "duplicate_total",
			Help:      "Messages dropped because their timestamp equalled the stored one.",
		}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "stale_total",
			Help:      "Messages dropped because they were older than the stored one.",
		}),
		GCStation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "gc_station_total",
			Help:      "Overdue non-synthetic, non-cancelled by_station entries marked departed by the lifecycle sweep.",
		}),
		GCTrain: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "gc_train_total",
			Help:      "Overdue non-synthetic, non-cancelled by_train entries marked departed by the lifecycle sweep.",
		}),
		Injections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dvsd",
			Name:      "injections_total",
			Help:      "Synthetic trains accepted through the injector channel.",
		}),
		DowntimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dvsd",
			Name:      "feed_state",
			Help:      "Downtime detector state: 1 for the currently-active state, 0 otherwise.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.Messages, m.Duplicate, m.Stale, m.GCStation, m.GCTrain, m.Injections, m.DowntimeState)
	return m
}

// NewForTesting builds a Metrics bundle backed by its own registry, so
// unit tests never collide with the process-wide default registerer.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) IncMessage()   { m.Messages.Inc() }
func (m *Metrics) IncDuplicate() { m.Duplicate.Inc() }
func (m *Metrics) IncStale()     { m.Stale.Inc() }
func (m *Metrics) IncGCStation() { m.GCStation.Inc() }
func (m *Metrics) IncGCTrain()   { m.GCTrain.Inc() }
func (m *Metrics) IncInjection() { m.Injections.Inc() }

// MessagesValue reads back the current message count, for the
// downtime detector's once-per-tick sample (spec.md §4.6). The client
// library exposes no public Get on Counter, so this goes through the
// same Write-into-a-proto path Prometheus's own HTTP handler uses to
// render a scrape.
func (m *Metrics) MessagesValue() uint64 {
	var dm dto.Metric
	if err := m.Messages.Write(&dm); err != nil {
		return 0
	}
	return uint64(dm.GetCounter().GetValue())
}

// SetDowntimeState zeroes every known state label and sets state to 1,
// so the gauge vector always has exactly one active series.
func (m *Metrics) SetDowntimeState(state string, known []string) {
	for _, s := range known {
		m.DowntimeState.WithLabelValues(s).Set(0)
	}
	m.DowntimeState.WithLabelValues(state).Set(1)
}
