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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railfeed/dvsd/internal/yamlutil"
)

const sampleYAML = `
bindings:
  dvs_server: "nats://feed.example:4222"
  client_server: "dvsd.client"
  injector_server: "dvsd.injector"
zmq:
  envelope: "NS."
garbage_collection:
  gc_threshold: 5m
  gc_threshold_departed: 30m
debug:
  keep_departures: true
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "dvsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDocumentedDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://feed.example:4222", cfg.Bindings.DVSServer)
	assert.Equal(t, "NS.", cfg.ZMQ.Envelope)
	assert.True(t, cfg.Debug.KeepDepartures)

	assert.Equal(t, 5*time.Minute, cfg.GarbageCollection.GCThreshold.AsDuration())
	assert.Equal(t, 30*time.Minute, cfg.GarbageCollection.GCThresholdDeparted.AsDuration())
	assert.Equal(t, yamlutil.Duration(0), cfg.GarbageCollection.GCThresholdStatic)

	assert.Equal(t, 10, cfg.DowntimeDetection.CountTimeWindow)
	assert.Equal(t, uint64(1), cfg.DowntimeDetection.CountThreshold)
	assert.Equal(t, 70*time.Minute, cfg.DowntimeDetection.RecoveryTime.AsDuration())

	assert.Equal(t, "file", cfg.Persistence.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleYAML)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.Equal(t, yamlutil.Duration(5*time.Minute), w.Current().GarbageCollection.GCThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	const updatedYAML = `
bindings:
  dvs_server: "nats://feed.example:4222"
  client_server: "dvsd.client"
  injector_server: "dvsd.injector"
zmq:
  envelope: "NS."
garbage_collection:
  gc_threshold: 15m
  gc_threshold_departed: 30m
debug:
  keep_departures: true
`
	require.NoError(t, os.WriteFile(path, []byte(updatedYAML), 0o644))

	require.Eventually(t, func() bool {
		return w.Current().GarbageCollection.GCThreshold == yamlutil.Duration(15*time.Minute)
	}, 2*time.Second, 10*time.Millisecond)
}
