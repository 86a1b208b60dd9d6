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

// Package yamlutil holds the small helpers every YAML-backed config
// struct in this module needs.
package yamlutil

import (
	"time"

	"github.com/pingcap/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so a YAML value like "10m" or "2h30m"
// decodes the way an operator expects. yaml.v3 has no built-in
// time.Duration support; left as a bare time.Duration field, "10m"
// would fail to decode as the int64 Duration actually is under the
// hood.
type Duration time.Duration

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// String matches time.Duration's own formatting.
func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Trace(err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Annotatef(err, "invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
