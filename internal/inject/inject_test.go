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

package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

func newInjector() (*Injector, *store.Store) {
	s := store.New(metrics.NewForTesting())
	return New(s, metrics.NewForTesting(), rate.Inf, 100), s
}

func TestHandleInstallsSyntheticTrainWithDerivedTripID(t *testing.T) {
	inj, s := newInjector()
	req := `{
		"service_id": "9001",
		"service_number": "0",
		"stop_code": "RTD",
		"departure": "2026-08-01T08:00:00Z",
		"destination_code": "GN",
		"destination_text": "Groningen",
		"stops": [["RTD","Rotterdam"],["GN","Groningen"]]
	}`
	reply := inj.Handle([]byte(req))
	require.True(t, reply.Result)

	trains := s.ByStation("RTD")
	require.Contains(t, trains, "i9001")
	assert.True(t, trains["i9001"].Synthetic)
}

func TestHandleUsesServiceNumberWhenNonZero(t *testing.T) {
	inj, s := newInjector()
	req := `{
		"service_number": "5001",
		"stop_code": "RTD",
		"departure": "2026-08-01T08:00:00Z",
		"destination_code": "GN",
		"stops": [["RTD","Rotterdam"]]
	}`
	reply := inj.Handle([]byte(req))
	require.True(t, reply.Result)

	trains := s.ByStation("RTD")
	require.Contains(t, trains, "5001")
}

func TestHandleAppliesDelayMinutes(t *testing.T) {
	inj, s := newInjector()
	req := `{
		"service_number": "5001",
		"stop_code": "RTD",
		"departure": "2026-08-01T08:00:00Z",
		"departure_delay": 5,
		"destination_code": "GN",
		"stops": [["RTD","Rotterdam"]]
	}`
	reply := inj.Handle([]byte(req))
	require.True(t, reply.Result)

	train := s.ByStation("RTD")["5001"]
	assert.Equal(t, 5*60, int(train.CurrentDeparture.Sub(train.PlannedDeparture).Seconds()))
}

func TestHandleMarksCancellation(t *testing.T) {
	inj, s := newInjector()
	req := `{
		"service_number": "5001",
		"stop_code": "RTD",
		"departure": "2026-08-01T08:00:00Z",
		"destination_code": "GN",
		"stops": [["RTD","Rotterdam"]],
		"cancelled": true
	}`
	reply := inj.Handle([]byte(req))
	require.True(t, reply.Result)

	train := s.ByStation("RTD")["5001"]
	assert.True(t, train.IsCancelled())
}

func TestHandleRejectsMissingStopCode(t *testing.T) {
	inj, _ := newInjector()
	req := `{"service_number": "5001", "departure": "2026-08-01T08:00:00Z"}`
	reply := inj.Handle([]byte(req))
	assert.False(t, reply.Result)
	assert.NotEmpty(t, reply.Error)
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	inj, _ := newInjector()
	reply := inj.Handle([]byte("not json"))
	assert.False(t, reply.Result)
}

func TestHandleRespectsRateLimit(t *testing.T) {
	s := store.New(metrics.NewForTesting())
	inj := New(s, metrics.NewForTesting(), 0, 0)
	reply := inj.Handle([]byte(`{"stop_code":"RTD","departure":"2026-08-01T08:00:00Z"}`))
	assert.False(t, reply.Result)
	assert.Equal(t, "rate limited", reply.Error)
}
