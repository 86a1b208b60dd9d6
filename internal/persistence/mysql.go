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
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
	"github.com/sony/gobreaker"

	"github.com/railfeed/dvsd/internal/store"
	"github.com/railfeed/dvsd/internal/wire"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS dvsd_snapshot (
	id INT PRIMARY KEY,
	payload LONGBLOB NOT NULL,
	saved_at DATETIME NOT NULL
)`

// MySQLAdapter stores the latest snapshot as a single row (id=1), for
// operators who want a durable "last known good" snapshot without
// running Kafka.
type MySQLAdapter struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker
}

// NewMySQLAdapter opens dsn, ensures the snapshot table exists, and
// returns an adapter wrapped in a circuit breaker configured from cfg.
func NewMySQLAdapter(dsn string, cfg Config) (*MySQLAdapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, errors.Trace(err)
	}
	return &MySQLAdapter{db: db, breaker: newBreaker("mysql", cfg)}, nil
}

// newMySQLAdapterWithDB is the test seam: go-sqlmock supplies db.
func newMySQLAdapterWithDB(db *sql.DB, cfg Config) *MySQLAdapter {
	return &MySQLAdapter{db: db, breaker: newBreaker("mysql", cfg)}
}

// Save upserts the single snapshot row.
func (a *MySQLAdapter) Save(ctx context.Context, snap store.Snapshot) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO dvsd_snapshot (id, payload, saved_at) VALUES (1, ?, ?)
			 ON DUPLICATE KEY UPDATE payload = VALUES(payload), saved_at = VALUES(saved_at)`,
			wire.Encode(snap), snap.TakenAt)
		return nil, errors.Trace(err)
	})
	return err
}

// Load reads back the single snapshot row, or an empty snapshot if
// none has ever been saved.
func (a *MySQLAdapter) Load(ctx context.Context) (store.Snapshot, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		var payload []byte
		err := a.db.QueryRowContext(ctx, `SELECT payload FROM dvsd_snapshot WHERE id = 1`).Scan(&payload)
		if err == sql.ErrNoRows {
			return emptySnapshot(), nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		snap, err := wire.Decode(payload)
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

// Close closes the underlying database handle.
func (a *MySQLAdapter) Close() error {
	return a.db.Close()
}
