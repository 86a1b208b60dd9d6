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
	"os"

	"github.com/pingcap/errors"
	"github.com/sony/gobreaker"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/store"
	"github.com/railfeed/dvsd/internal/wire"
)

// FileAdapter writes the wire-encoded snapshot to a local file. It is
// the default backend and what property R1's round trip exercises.
type FileAdapter struct {
	path    string
	breaker *gobreaker.CircuitBreaker
}

// NewFileAdapter creates a file-backed adapter at path, wrapped in a
// circuit breaker configured from cfg.
func NewFileAdapter(path string, cfg Config) *FileAdapter {
	return &FileAdapter{
		path:    path,
		breaker: newBreaker("file", cfg),
	}
}

// Save atomically replaces the snapshot file's contents.
func (a *FileAdapter) Save(ctx context.Context, snap store.Snapshot) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		tmp := a.path + ".tmp"
		if err := os.WriteFile(tmp, wire.Encode(snap), 0o644); err != nil {
			return nil, errors.Trace(err)
		}
		return nil, errors.Trace(os.Rename(tmp, a.path))
	})
	return err
}

// Load reads and decodes the snapshot file. A missing file is not an
// error: it returns an empty snapshot, since there may never have
// been a prior shutdown save.
func (a *FileAdapter) Load(ctx context.Context) (store.Snapshot, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		data, err := os.ReadFile(a.path)
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		snap, err := wire.Decode(data)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return snap, nil
	})
	if err != nil {
		return store.Snapshot{}, err
	}
	return result.(store.Snapshot), nil
}

func emptySnapshot() store.Snapshot {
	return store.Snapshot{
		ByStation: make(map[string]map[string]*domain.Train),
		ByTrain:   make(map[string]map[string]*domain.Train),
	}
}

// Close is a no-op for the file adapter.
func (a *FileAdapter) Close() error { return nil }
