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

// Package config loads the YAML configuration of spec.md §6 and
// serves it to every component. Loading happens once at startup and
// is fatal on error (spec.md §7: "Configuration / startup failure —
// logged and fatal"); a Watcher built on fsnotify re-reads the file
// afterwards and swaps in new threshold values without a restart.
package config

import (
	"os"
	"time"

	"github.com/pingcap/errors"
	"gopkg.in/yaml.v3"

	"github.com/railfeed/dvsd/internal/persistence"
	"github.com/railfeed/dvsd/internal/yamlutil"
	"github.com/railfeed/dvsd/pkg/util"
)

// Bindings holds the three NATS endpoints of spec.md §6
// ("bindings.dvs_server", "bindings.client_server",
// "bindings.injector_server").
type Bindings struct {
	DVSServer      string `yaml:"dvs_server"`
	ClientServer   string `yaml:"client_server"`
	InjectorServer string `yaml:"injector_server"`
}

// ZMQ carries the one setting spec.md §6 kept from the original
// transport's naming ("zmq.envelope"), reused verbatim as the NATS
// subject filter (SPEC_FULL.md §3.1).
type ZMQ struct {
	Envelope string `yaml:"envelope"`
}

// DowntimeDetection configures the sliding-window detector of
// spec.md §4.6.
type DowntimeDetection struct {
	CountTimeWindow int               `yaml:"count_time_window"`
	CountThreshold  uint64            `yaml:"count_threshold"`
	RecoveryTime    yamlutil.Duration `yaml:"recovery_time"`
}

// GarbageCollection configures the lifecycle sweep thresholds of
// spec.md §4.5.
type GarbageCollection struct {
	GCThreshold         yamlutil.Duration `yaml:"gc_threshold"`
	GCThresholdStatic   yamlutil.Duration `yaml:"gc_threshold_static"`
	GCThresholdDeparted yamlutil.Duration `yaml:"gc_threshold_departed"`
}

// Debug carries the one documented debug flag of spec.md §6
// ("debug.keep_departures").
type Debug struct {
	KeepDepartures bool `yaml:"keep_departures"`
}

// Injector configures the admin channel's rate limiter
// (SPEC_FULL.md §3.7 — not part of spec.md §6's table, since the
// distilled spec never names a limiter, but needed to construct
// inject.Injector).
type Injector struct {
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	Burst           int     `yaml:"burst"`
}

// Config is the root document, aggregating every section of spec.md
// §6 plus the persistence and logging sections SPEC_FULL.md adds.
type Config struct {
	Bindings          Bindings            `yaml:"bindings"`
	ZMQ               ZMQ                 `yaml:"zmq"`
	DowntimeDetection DowntimeDetection   `yaml:"downtime_detection"`
	GarbageCollection GarbageCollection   `yaml:"garbage_collection"`
	Debug             Debug               `yaml:"debug"`
	Injector          Injector            `yaml:"injector"`
	Persistence       persistence.Config  `yaml:"persistence"`
	Log               util.Config         `yaml:"log"`
}

// Adjust fills in every default SPEC_FULL.md §2.3 documents: 10/0/120
// minute GC thresholds, a 10-sample downtime window with threshold 1
// and a 70 minute recovery time, plus whatever internal/persistence
// and pkg/util already default on their own sub-configs.
func (c *Config) Adjust() {
	if c.Bindings.DVSServer == "" {
		c.Bindings.DVSServer = "nats://127.0.0.1:4222"
	}
	if c.Bindings.ClientServer == "" {
		c.Bindings.ClientServer = "dvsd.client"
	}
	if c.Bindings.InjectorServer == "" {
		c.Bindings.InjectorServer = "dvsd.injector"
	}
	if c.DowntimeDetection.CountTimeWindow == 0 {
		c.DowntimeDetection.CountTimeWindow = 10
	}
	if c.DowntimeDetection.CountThreshold == 0 {
		c.DowntimeDetection.CountThreshold = 1
	}
	if c.DowntimeDetection.RecoveryTime == 0 {
		c.DowntimeDetection.RecoveryTime = yamlutil.Duration(70 * time.Minute)
	}
	if c.GarbageCollection.GCThreshold == 0 {
		c.GarbageCollection.GCThreshold = yamlutil.Duration(10 * time.Minute)
	}
	if c.GarbageCollection.GCThresholdDeparted == 0 {
		c.GarbageCollection.GCThresholdDeparted = yamlutil.Duration(120 * time.Minute)
	}
	// GCThresholdStatic legitimately defaults to zero (spec.md §4.5:
	// synthetic trains become departed as soon as current_departure
	// passes, no grace period).
	if c.Injector.RateLimitPerSec == 0 {
		c.Injector.RateLimitPerSec = 1
	}
	if c.Injector.Burst == 0 {
		c.Injector.Burst = 5
	}
	c.Persistence.Adjust()
	c.Log.Adjust()
}

// Load reads and parses the YAML file at path, applying Adjust before
// returning it. Any failure here is the "Configuration / startup
// failure" of spec.md §7 and is meant to be treated as fatal by the
// caller.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading config file %s", path)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Annotatef(err, "parsing config file %s", path)
	}
	cfg.Adjust()
	return cfg, nil
}
