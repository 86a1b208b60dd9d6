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
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Watcher re-reads its config file on every write/create event and
// atomically publishes the result. The lifecycle engine reads Current
// on every tick, so it picks up new GC thresholds without a restart
// (SPEC_FULL.md §2.3); the downtime detector keeps the values it was
// built with at startup. The bindings a component dialed at startup are
// never revisited; only the *values read back out* of Current change.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	fsw     *fsnotify.Watcher
}

// NewWatcher loads path once (fatal-on-error, per spec.md §7) and
// returns a Watcher primed with that initial value.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{path: path, fsw: fsw}
	w.current.Store(cfg)
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run blocks, reloading the config on every filesystem event until
// ctx is cancelled. A reload failure is logged and the previous
// config is kept live — only the initial Load in NewWatcher is fatal.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Warn("config reload failed, keeping previous values", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.current.Store(cfg)
			log.Info("config reloaded", zap.String("path", w.path))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
