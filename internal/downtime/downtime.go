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

// Package downtime tracks whether the upstream feed is alive by
// watching the rate of the store's message counter over a sliding
// window (spec.md §4.6). It is only ever driven by the lifecycle
// task's 60-second tick, so it needs no locking of its own.
package downtime

import (
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// State is one of the four downtime states of spec.md §4.6.
type State string

const (
	StateUnknown    State = "UNKNOWN"
	StateDown       State = "DOWN"
	StateRecovering State = "RECOVERING"
	StateUp         State = "UP"
)

// AllStates lists every state, for callers zeroing a gauge vector.
var AllStates = []string{string(StateUnknown), string(StateDown), string(StateRecovering), string(StateUp)}

// nowFunc is indirected for deterministic tests.
var nowFunc = time.Now

// Detector holds the sliding window and state machine of spec.md
// §4.6. Not safe for concurrent Sample calls; the lifecycle task is
// its only caller.
type Detector struct {
	window       int
	threshold    uint64
	recoveryTime time.Duration

	samples []uint64 // head at index 0

	state            State
	downSince        *time.Time
	recoveringSince  *time.Time
}

// New creates a Detector with the given window size (sample count),
// received-count threshold, and recovery duration, matching spec.md
// §4.6/§6 defaults when constructed via DefaultDetector.
func New(window int, threshold uint64, recoveryTime time.Duration) *Detector {
	return &Detector{
		window:       window,
		threshold:    threshold,
		recoveryTime: recoveryTime,
		state:        StateUnknown,
	}
}

// DefaultDetector matches spec.md §6's documented defaults: 10-sample
// window, threshold 1, 70-minute recovery time.
func DefaultDetector() *Detector {
	return New(10, 1, 70*time.Minute)
}

// State reports the current downtime state.
func (d *Detector) State() State {
	return d.state
}

// Sample appends the current messages-counter value to the window and
// advances the state machine. Called once per lifecycle tick
// (spec.md §4.6 "Every 60 seconds it appends...").
func (d *Detector) Sample(counter uint64) {
	d.samples = append(d.samples, counter)

	now := nowFunc().UTC()

	if len(d.samples) < d.window {
		if d.downSince == nil {
			d.downSince = &now
		}
		return
	}

	received := d.samples[len(d.samples)-1] - d.samples[0]
	d.samples = d.samples[1:]

	if received < d.threshold {
		if d.state != StateDown {
			log.Warn("downtime detector transitioning to DOWN",
				zap.Uint64("received", received), zap.Uint64("threshold", d.threshold))
		}
		d.state = StateDown
		if d.downSince == nil {
			d.downSince = &now
		}
		d.recoveringSince = nil
		return
	}

	switch d.state {
	case StateUnknown, StateDown:
		d.state = StateRecovering
		d.recoveringSince = &now
		log.Info("downtime detector transitioning to RECOVERING")
	case StateRecovering:
		if d.recoveringSince != nil && !now.Before(d.recoveringSince.Add(d.recoveryTime)) {
			d.state = StateUp
			d.downSince = nil
			d.recoveringSince = nil
			log.Info("downtime detector transitioning to UP")
		}
	case StateUp:
		// stays UP
	}
}
