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
	"github.com/pingcap/log"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// newBreaker wraps every adapter backend the same way: after five
// consecutive failures the breaker trips and short-circuits further
// calls until cfg.BreakerTimeout elapses, so a stalled downstream
// cannot block the 60-second lifecycle tick that triggers a save
// (spec.md §5).
func newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval.AsDuration(),
		Timeout:     cfg.BreakerTimeout.AsDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("persistence circuit breaker state change",
				zap.String("adapter", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
