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

package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/store"
)

func TestFileAdapterSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	var cfg Config
	cfg.Adjust()
	adapter := NewFileAdapter(path, cfg)

	train := &domain.Train{
		TrainNumber: "1234",
		TripStation: domain.Station{Code: "RTD"},
		MessageTS:   time.Now().UTC(),
		Status:      "1",
	}
	snap := store.Snapshot{
		TakenAt:   time.Now().UTC(),
		ByStation: map[string]map[string]*domain.Train{"RTD": {"1234": train}},
		ByTrain:   map[string]map[string]*domain.Train{"1234": {"RTD": train}},
	}

	require.NoError(t, adapter.Save(context.Background(), snap))

	loaded, err := adapter.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, loaded.ByStation, "RTD")
	assert.Equal(t, "1234", loaded.ByStation["RTD"]["1234"].TrainNumber)
}

func TestFileAdapterLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.bin")

	var cfg Config
	cfg.Adjust()
	adapter := NewFileAdapter(path, cfg)

	loaded, err := adapter.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.ByStation)
}
