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

// Package lifecycle runs the 60-second departure-marking and eviction
// sweep over both store indices (spec.md §4.5).
package lifecycle

import (
	"context"
	"time"

	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

// nowFunc is indirected for deterministic tests.
var nowFunc = time.Now

// Thresholds holds the three configurable GC windows of spec.md §4.5.
type Thresholds struct {
	GCThreshold         time.Duration // non-synthetic trains become departed this long after current_departure
	GCThresholdStatic   time.Duration // synthetic trains become departed this long after current_departure (zero: as soon as it passes)
	GCThresholdDeparted time.Duration // departed trains are evicted this long after departed_timestamp
}

// DefaultThresholds matches spec.md §6's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GCThreshold:         10 * time.Minute,
		GCThresholdStatic:   0,
		GCThresholdDeparted: 120 * time.Minute,
	}
}

// Engine owns the lifecycle timer and a reference to the store it
// sweeps. KeepDepartures, when set, skips eviction in both the
// by_station and by_train passes (the debug flag named in spec.md §4.5
// step 3) while still running the departure-marking pass.
type Engine struct {
	store          *store.Store
	metrics        *metrics.Metrics
	thresholds     func() Thresholds
	tick           time.Duration
	KeepDepartures bool

	// AfterSweep, if set, runs once per tick after Sweep completes.
	// serve wires this to the downtime detector's Sample (spec.md
	// §4.6: "driven once per lifecycle tick") and to the persistence
	// adapter's Save, so both stay simple callers with no timer of
	// their own.
	AfterSweep func()
}

// New creates a lifecycle engine. thresholds is called fresh on every
// tick so a config hot-reload (SPEC_FULL.md §2.3) is picked up without
// restarting the engine.
func New(s *store.Store, m *metrics.Metrics, thresholds func() Thresholds) *Engine {
	return &Engine{
		store:      s,
		metrics:    m,
		thresholds: thresholds,
		tick:       60 * time.Second,
	}
}

// Run blocks, sweeping on every tick, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Sweep()
			if e.AfterSweep != nil {
				e.AfterSweep()
			}
		}
	}
}

// Sweep runs one departure-marking and eviction pass over both
// indices, per spec.md §4.5.
func (e *Engine) Sweep() {
	th := e.thresholds()
	now := nowFunc().UTC()

	failpoint.Inject("lifecycleSweepPanic", func() {
		panic("injected lifecycle sweep failure")
	})

	// by_station and by_train hold the same entries under different
	// key orders, sharing the *domain.Train pointers. Freeze which
	// entries already carried a DepartedTimestamp before this tick, so
	// each walk below judges "did this entry just become overdue" off
	// the pre-sweep state rather than off whatever the sibling walk
	// already mutated a moment earlier in the same Sweep call.
	alreadyDeparted := make(map[string]struct{})
	e.store.ForEachStationEntry(func(station, trainNumber string, t *domain.Train) {
		if t.DepartedTimestamp != nil {
			alreadyDeparted[trainNumber+"|"+station] = struct{}{}
		}
	})

	var stationEvictions [][2]string // (station, trainNumber)
	e.store.ForEachStationEntry(func(station, trainNumber string, t *domain.Train) {
		_, wasDeparted := alreadyDeparted[trainNumber+"|"+station]
		if evict := e.considerEntry(t, th, now, wasDeparted, e.metrics.IncGCStation); evict {
			stationEvictions = append(stationEvictions, [2]string{station, trainNumber})
		}
	})
	if !e.KeepDepartures {
		for _, pair := range stationEvictions {
			e.store.EvictStation(pair[0], pair[1])
		}
	}

	var trainEvictions [][2]string // (trainNumber, station)
	e.store.ForEachTrainEntry(func(trainNumber, station string, t *domain.Train) {
		_, wasDeparted := alreadyDeparted[trainNumber+"|"+station]
		if evict := e.considerEntry(t, th, now, wasDeparted, e.metrics.IncGCTrain); evict {
			trainEvictions = append(trainEvictions, [2]string{trainNumber, station})
		}
	})
	if !e.KeepDepartures {
		for _, pair := range trainEvictions {
			e.store.EvictTrain(pair[0], pair[1])
		}
	}
}

// considerEntry implements spec.md §4.5 algorithm step for a single
// train entry, marking it departed or deciding whether it should be
// evicted. It reports whether the caller should evict the entry.
// wasDeparted reflects whether the entry already carried a
// DepartedTimestamp before this Sweep call started (see the snapshot
// built above), not the entry's live, possibly sibling-walk-mutated
// state, so the by_station and by_train walks each independently
// detect and count their own overdue transition.
func (e *Engine) considerEntry(t *domain.Train, th Thresholds, now time.Time, wasDeparted bool, incGC func()) bool {
	if wasDeparted {
		return now.Sub(*t.DepartedTimestamp) >= th.GCThresholdDeparted
	}

	if t.IsDeparted() && t.DepartedTimestamp == nil {
		// Feed itself reports departed for the first time this tick;
		// stamp it but this isn't the overdue path spec.md §4.5 counts.
		ts := now
		t.DepartedTimestamp = &ts
		return false
	}

	overdue := false
	if t.Synthetic {
		overdue = t.CurrentDeparture.Before(now.Add(-th.GCThresholdStatic)) && !t.CurrentDeparture.IsZero()
	} else {
		cutoff := now.Add(-th.GCThreshold)
		overdue = t.CurrentDeparture.Before(cutoff) && !t.CurrentDeparture.IsZero()
	}
	if !overdue {
		return false
	}

	ts := now
	t.DepartedTimestamp = &ts
	// force feed-reported status to look departed from here on, so
	// IsDeparted reports true for this entry in every later read
	t.Status = domain.DepartedStatus

	switch {
	case t.IsCancelled():
		log.Debug("marking cancelled train departed", zap.String("train", t.TrainNumber))
	case t.Synthetic:
		log.Debug("marking synthetic train departed", zap.String("train", t.TrainNumber))
	default:
		log.Warn("train overdue, marking departed",
			zap.String("train", t.TrainNumber), zap.String("station", t.TripStation.Code))
		incGC()
	}
	return false
}
