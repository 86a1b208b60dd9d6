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

// Package store holds the two coordinated indices the rest of the
// engine reads and writes: by station and by train number. It owns
// both locks and is the only place the monotonic-timestamp update
// rule (spec.md §4.3) is applied, so invariants I1-I5 only need to be
// argued about here.
package store

import (
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/metrics"
)

// nowFunc is indirected for tests that need to control "now".
var nowFunc = time.Now

// Outcome classifies what Update did, for callers that want to log or
// count beyond what Store already counts internally.
type Outcome int

const (
	// OutcomeInstalled means the train was stored (new or overwritten).
	OutcomeInstalled Outcome = iota
	// OutcomeDuplicate means the message's timestamp equalled the
	// stored one; it was dropped (P/R3).
	OutcomeDuplicate
	// OutcomeStale means the message's timestamp was older than the
	// stored one; it was dropped (P/R2).
	OutcomeStale
	// OutcomeDeparted means the message carried status 5 and the
	// train was marked departed.
	OutcomeDeparted
)

// staleWarnGap is the heuristic boundary between an info-level and a
// warning-level log for an out-of-order message (spec.md §4.3/§9).
const staleWarnGap = 5 * time.Second

// Store holds by_station and by_train, each behind its own lock
// (spec.md §4.3 "Locks").
type Store struct {
	stationMu sync.Mutex
	byStation map[string]map[string]*domain.Train // station -> trainNumber -> Train

	trainMu sync.Mutex
	byTrain map[string]map[string]*domain.Train // trainNumber -> station -> Train

	metrics *metrics.Metrics
}

// New creates an empty store.
func New(m *metrics.Metrics) *Store {
	return &Store{
		byStation: make(map[string]map[string]*domain.Train),
		byTrain:   make(map[string]map[string]*domain.Train),
		metrics:   m,
	}
}

// Update applies the spec.md §4.3 update rule for an incoming train.
// It returns the outcome so ingest/injector callers can log context
// the store itself does not know (e.g. which payload this came from).
func (s *Store) Update(incoming *domain.Train) Outcome {
	trainNumber := incoming.TrainNumber
	station := incoming.TripStation.Code

	if incoming.IsDeparted() {
		now := nowFunc().UTC()
		incoming.DepartedTimestamp = &now
		s.install(trainNumber, station, incoming)
		return OutcomeDeparted
	}

	// The compare against the stored value and the station-side write
	// must happen as one atomic unit (spec.md §4.3): holding stationMu
	// across both closes the window where a concurrent, independently
	// newer update could otherwise be clobbered by this one after it
	// read a now-stale "existing".
	s.stationMu.Lock()
	existing := s.lookupLocked(s.byStation, station, trainNumber)
	if existing != nil {
		switch {
		case incoming.MessageTS.After(existing.MessageTS):
			// overwrite below, lock still held
		case incoming.MessageTS.Equal(existing.MessageTS):
			s.stationMu.Unlock()
			s.metrics.IncDuplicate()
			log.Info("duplicate message dropped",
				zap.String("train", trainNumber), zap.String("station", station))
			return OutcomeDuplicate
		default:
			s.stationMu.Unlock()
			s.metrics.IncStale()
			gap := existing.MessageTS.Sub(incoming.MessageTS)
			if gap > staleWarnGap {
				log.Warn("out-of-order message dropped, large gap",
					zap.String("train", trainNumber), zap.String("station", station),
					zap.Duration("gap", gap))
			} else {
				log.Info("out-of-order message dropped",
					zap.String("train", trainNumber), zap.String("station", station),
					zap.Duration("gap", gap))
			}
			return OutcomeStale
		}
	}
	s.installStationLocked(station, trainNumber, incoming)
	s.stationMu.Unlock()

	s.trainMu.Lock()
	s.installTrainLocked(trainNumber, station, incoming)
	s.trainMu.Unlock()

	return OutcomeInstalled
}

// installStationLocked writes incoming into by_station. Callers must
// already hold stationMu.
func (s *Store) installStationLocked(station, trainNumber string, incoming *domain.Train) {
	bucket, ok := s.byStation[station]
	if !ok {
		bucket = make(map[string]*domain.Train)
		s.byStation[station] = bucket
	}
	bucket[trainNumber] = incoming
}

// installTrainLocked writes incoming into by_train. Callers must
// already hold trainMu.
func (s *Store) installTrainLocked(trainNumber, station string, incoming *domain.Train) {
	tbucket, ok := s.byTrain[trainNumber]
	if !ok {
		tbucket = make(map[string]*domain.Train)
		s.byTrain[trainNumber] = tbucket
	}
	tbucket[station] = incoming
}

// install writes incoming into both indices unconditionally, creating
// buckets as needed (I3: no empty train bucket). Used by the departed
// fast-path and Restore, which overwrite any existing entry without
// comparing message timestamps.
func (s *Store) install(trainNumber, station string, incoming *domain.Train) {
	s.stationMu.Lock()
	s.installStationLocked(station, trainNumber, incoming)
	s.stationMu.Unlock()

	s.trainMu.Lock()
	s.installTrainLocked(trainNumber, station, incoming)
	s.trainMu.Unlock()
}

// lookupLocked must be called with the owning lock already held.
func (s *Store) lookupLocked(idx map[string]map[string]*domain.Train, outer, inner string) *domain.Train {
	bucket, ok := idx[outer]
	if !ok {
		return nil
	}
	return bucket[inner]
}

// ByStation returns a snapshot of every train currently filed under
// station, keyed by train number. Returns an empty, non-nil map if the
// station is unknown (spec.md §4.4 B2).
func (s *Store) ByStation(station string) map[string]*domain.Train {
	s.stationMu.Lock()
	defer s.stationMu.Unlock()
	bucket := s.byStation[station]
	out := make(map[string]*domain.Train, len(bucket))
	for k, v := range bucket {
		out[k] = v.Clone()
	}
	return out
}

// ByTrain returns a snapshot of every station currently holding an
// entry for trainNumber, keyed by station code.
func (s *Store) ByTrain(trainNumber string) map[string]*domain.Train {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	bucket := s.byTrain[trainNumber]
	out := make(map[string]*domain.Train, len(bucket))
	for k, v := range bucket {
		out[k] = v.Clone()
	}
	return out
}

// DumpByTrain returns a deep snapshot of the entire by_train index.
func (s *Store) DumpByTrain() map[string]map[string]*domain.Train {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	out := make(map[string]map[string]*domain.Train, len(s.byTrain))
	for trainNumber, bucket := range s.byTrain {
		inner := make(map[string]*domain.Train, len(bucket))
		for station, t := range bucket {
			inner[station] = t.Clone()
		}
		out[trainNumber] = inner
	}
	return out
}

// DumpByStation returns a deep snapshot of the entire by_station index.
func (s *Store) DumpByStation() map[string]map[string]*domain.Train {
	s.stationMu.Lock()
	defer s.stationMu.Unlock()
	out := make(map[string]map[string]*domain.Train, len(s.byStation))
	for station, bucket := range s.byStation {
		inner := make(map[string]*domain.Train, len(bucket))
		for trainNumber, t := range bucket {
			inner[trainNumber] = t.Clone()
		}
		out[station] = inner
	}
	return out
}

// StationCount returns the number of distinct stations in by_station.
func (s *Store) StationCount() int {
	s.stationMu.Lock()
	defer s.stationMu.Unlock()
	return len(s.byStation)
}

// TrainCount returns the number of distinct train numbers in by_train.
func (s *Store) TrainCount() int {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	return len(s.byTrain)
}

// EvictStation removes the (trainNumber, station) pair from by_station.
// Removing it from a bucket that no longer has it is a debug-level
// no-op (spec.md §4.5 "Eviction is idempotent").
func (s *Store) EvictStation(station, trainNumber string) {
	s.stationMu.Lock()
	defer s.stationMu.Unlock()
	bucket, ok := s.byStation[station]
	if !ok {
		log.Debug("evict: station bucket already gone", zap.String("station", station))
		return
	}
	if _, ok := bucket[trainNumber]; !ok {
		log.Debug("evict: train already gone from station bucket",
			zap.String("station", station), zap.String("train", trainNumber))
		return
	}
	delete(bucket, trainNumber)
	if len(bucket) == 0 {
		delete(s.byStation, station)
	}
}

// EvictTrain removes the (trainNumber, station) pair from by_train,
// dropping the train-number bucket entirely if it becomes empty (I3).
func (s *Store) EvictTrain(trainNumber, station string) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	bucket, ok := s.byTrain[trainNumber]
	if !ok {
		log.Debug("evict: train bucket already gone", zap.String("train", trainNumber))
		return
	}
	if _, ok := bucket[station]; !ok {
		log.Debug("evict: station already gone from train bucket",
			zap.String("train", trainNumber), zap.String("station", station))
		return
	}
	delete(bucket, station)
	if len(bucket) == 0 {
		delete(s.byTrain, trainNumber)
	}
}

// Evict removes (trainNumber, station) from both indices.
func (s *Store) Evict(trainNumber, station string) {
	s.EvictStation(station, trainNumber)
	s.EvictTrain(trainNumber, station)
}

// MarkDeparted stamps departedAt on the stored train at (trainNumber,
// station) if it is still present and not already departed-stamped.
// The lifecycle sweep does not call it; it stamps entries in place.
func (s *Store) MarkDeparted(trainNumber, station string, departedAt time.Time) {
	s.stationMu.Lock()
	t := s.lookupLocked(s.byStation, station, trainNumber)
	if t != nil && t.DepartedTimestamp == nil {
		ts := departedAt
		t.DepartedTimestamp = &ts
	}
	s.stationMu.Unlock()
}

// Snapshot is a point-in-time, exportable copy of both indices, used
// by the persistence adapter (spec.md §3.4 of SPEC_FULL.md).
type Snapshot struct {
	TakenAt   time.Time
	ByStation map[string]map[string]*domain.Train
	ByTrain   map[string]map[string]*domain.Train
}

// TakeSnapshot copies both indices under their respective locks.
func (s *Store) TakeSnapshot() Snapshot {
	return Snapshot{
		TakenAt:   nowFunc().UTC(),
		ByStation: s.DumpByStation(),
		ByTrain:   s.DumpByTrain(),
	}
}

// Restore installs every train in snap directly, bypassing the
// monotonic comparison (used only at startup, loading a prior
// snapshot before the feed starts flowing).
func (s *Store) Restore(snap Snapshot) {
	for station, bucket := range snap.ByStation {
		for trainNumber, t := range bucket {
			s.install(trainNumber, station, t)
		}
	}
}

// ForEachStationEntry visits every (station, trainNumber, train)
// triple in by_station under the station lock, for the lifecycle
// engine's sweep. fn must not call back into the store.
func (s *Store) ForEachStationEntry(fn func(station, trainNumber string, t *domain.Train)) {
	s.stationMu.Lock()
	defer s.stationMu.Unlock()
	for station, bucket := range s.byStation {
		for trainNumber, t := range bucket {
			fn(station, trainNumber, t)
		}
	}
}

// ForEachTrainEntry visits every (trainNumber, station, train) triple
// in by_train under the train lock.
func (s *Store) ForEachTrainEntry(fn func(trainNumber, station string, t *domain.Train)) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()
	for trainNumber, bucket := range s.byTrain {
		for station, t := range bucket {
			fn(trainNumber, station, t)
		}
	}
}
