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

// Package persistence is the optional side-channel for a store
// snapshot: spec.md §5/§9 specify it by contract only ("No persistent
// database as the system of record"). Every backend is wrapped in a
// circuit breaker so a stalled downstream cannot block the lifecycle
// tick that triggers a save.
package persistence

import (
	"context"
	"time"

	"github.com/railfeed/dvsd/internal/store"
	"github.com/railfeed/dvsd/internal/yamlutil"
)

// Adapter is the persistence contract every backend implements.
type Adapter interface {
	Save(ctx context.Context, snap store.Snapshot) error
	Load(ctx context.Context) (store.Snapshot, error)
	Close() error
}

// Config selects and configures a backend (internal/config wires this
// from YAML).
type Config struct {
	Backend string `yaml:"backend"` // "file", "kafka", or "mysql"

	FilePath string `yaml:"file_path"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	MySQLDSN string `yaml:"mysql_dsn"`

	BreakerMaxRequests uint32            `yaml:"breaker_max_requests"`
	BreakerInterval    yamlutil.Duration `yaml:"breaker_interval"`
	BreakerTimeout     yamlutil.Duration `yaml:"breaker_timeout"`
}

// Adjust fills in defaults matching what a gobreaker.Settings zero
// value would otherwise leave unusable (an interval/timeout of zero
// means "never reset/retry").
func (c *Config) Adjust() {
	if c.Backend == "" {
		c.Backend = "file"
	}
	if c.FilePath == "" {
		c.FilePath = "dvsd-snapshot.bin"
	}
	if c.BreakerMaxRequests == 0 {
		c.BreakerMaxRequests = 1
	}
	if c.BreakerInterval == 0 {
		c.BreakerInterval = yamlutil.Duration(60 * time.Second)
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = yamlutil.Duration(30 * time.Second)
	}
}
