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

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/metrics"
)

func trainAt(number, station string, ts time.Time) *domain.Train {
	return &domain.Train{
		TrainNumber: number,
		TripStation: domain.Station{Code: station},
		MessageTS:   ts,
		Status:      "1",
	}
}

func TestUpdateInstallsIntoBothIndices(t *testing.T) {
	s := New(metrics.NewForTesting())
	t0 := time.Now()
	outcome := s.Update(trainAt("1234", "RTD", t0))
	require.Equal(t, OutcomeInstalled, outcome)

	byStation := s.ByStation("RTD")
	require.Contains(t, byStation, "1234")

	byTrain := s.ByTrain("1234")
	require.Contains(t, byTrain, "RTD")
}

func TestUpdateDropsDuplicateTimestamp(t *testing.T) {
	s := New(metrics.NewForTesting())
	t0 := time.Now()
	require.Equal(t, OutcomeInstalled, s.Update(trainAt("1234", "RTD", t0)))
	require.Equal(t, OutcomeDuplicate, s.Update(trainAt("1234", "RTD", t0)))
}

func TestUpdateDropsStaleTimestamp(t *testing.T) {
	s := New(metrics.NewForTesting())
	t0 := time.Now()
	require.Equal(t, OutcomeInstalled, s.Update(trainAt("1234", "RTD", t0)))
	older := trainAt("1234", "RTD", t0.Add(-time.Second))
	require.Equal(t, OutcomeStale, s.Update(older))

	// the store must still reflect the newer message, not the stale one
	byStation := s.ByStation("RTD")
	assert.True(t, byStation["1234"].MessageTS.Equal(t0))
}

func TestUpdateAcceptsStrictlyNewerTimestamp(t *testing.T) {
	s := New(metrics.NewForTesting())
	t0 := time.Now()
	require.Equal(t, OutcomeInstalled, s.Update(trainAt("1234", "RTD", t0)))
	newer := trainAt("1234", "RTD", t0.Add(time.Second))
	require.Equal(t, OutcomeInstalled, s.Update(newer))
}

func TestUpdateMarksDepartedTimestamp(t *testing.T) {
	s := New(metrics.NewForTesting())
	departed := trainAt("1234", "RTD", time.Now())
	departed.Status = domain.DepartedStatus
	require.Equal(t, OutcomeDeparted, s.Update(departed))

	byTrain := s.ByTrain("1234")
	require.NotNil(t, byTrain["RTD"].DepartedTimestamp)
}

func TestByStationReturnsEmptyNonNilMapForUnknownStation(t *testing.T) {
	s := New(metrics.NewForTesting())
	out := s.ByStation("NOPE")
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestEvictDropsFromBothIndicesAndTrimsEmptyBuckets(t *testing.T) {
	s := New(metrics.NewForTesting())
	s.Update(trainAt("1234", "RTD", time.Now()))

	s.Evict("1234", "RTD")

	assert.Empty(t, s.ByStation("RTD"))
	assert.Empty(t, s.ByTrain("1234"))
	assert.Equal(t, 0, s.StationCount())
	assert.Equal(t, 0, s.TrainCount())
}

func TestEvictIsIdempotent(t *testing.T) {
	s := New(metrics.NewForTesting())
	assert.NotPanics(t, func() {
		s.Evict("nonexistent", "RTD")
		s.Evict("nonexistent", "RTD")
	})
}

func TestConcurrentUpdatesDoNotRace(t *testing.T) {
	s := New(metrics.NewForTesting())
	var wg sync.WaitGroup
	base := time.Now()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update(trainAt("1234", "RTD", base.Add(time.Duration(i)*time.Millisecond)))
		}(i)
	}
	wg.Wait()

	byStation := s.ByStation("RTD")
	require.Contains(t, byStation, "1234")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(metrics.NewForTesting())
	s.Update(trainAt("1234", "RTD", time.Now()))
	snap := s.TakeSnapshot()

	fresh := New(metrics.NewForTesting())
	fresh.Restore(snap)

	assert.Equal(t, 1, fresh.TrainCount())
	assert.Equal(t, 1, fresh.StationCount())
}
