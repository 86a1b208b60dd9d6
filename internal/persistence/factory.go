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

import "github.com/pingcap/errors"

// New builds the Adapter selected by cfg.Backend.
func New(cfg Config) (Adapter, error) {
	cfg.Adjust()
	switch cfg.Backend {
	case "file":
		return NewFileAdapter(cfg.FilePath, cfg), nil
	case "kafka":
		return NewKafkaAdapter(cfg.KafkaBrokers, cfg.KafkaTopic, cfg)
	case "mysql":
		return NewMySQLAdapter(cfg.MySQLDSN, cfg)
	default:
		return nil, errors.Errorf("persistence: unknown backend %q", cfg.Backend)
	}
}
