// Copyright 2020 PingCAP, Inc.
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

// Package util holds the small pieces of ambient infrastructure every
// component reaches for: logger setup and an error-aware zap field
// helper that swallows expected/benign errors from log lines.
package util

import (
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Config configures the global logger. File empty means stderr.
type Config struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Adjust fills in the default level when unset.
func (c *Config) Adjust() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// InitLogger builds and installs the process-wide logger that every
// component calls through via log.Info/Warn/Error/Debug.
func InitLogger(cfg *Config) error {
	logCfg := &log.Config{
		Level: cfg.Level,
		File:  log.FileLogConfig{Filename: cfg.File},
	}
	logger, props, err := log.InitLogger(logCfg)
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// ZapErrorFilter returns zap.Error(err), except that it returns
// zap.Error(nil) if err's cause matches one of filters — used so a
// benign, expected error (e.g. context.Canceled on shutdown) does not
// appear as an error-level log line.
func ZapErrorFilter(err error, filters ...error) zap.Field {
	cause := errors.Cause(err)
	for _, f := range filters {
		if cause == f {
			return zap.Error(nil)
		}
	}
	return zap.Error(err)
}
