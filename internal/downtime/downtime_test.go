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

package downtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectorStartsUnknownUntilWindowFills(t *testing.T) {
	d := New(5, 1, time.Minute)
	for i := 0; i < 4; i++ {
		d.Sample(uint64(i))
		assert.Equal(t, StateUnknown, d.State())
	}
}

func TestDetectorGoesDownWhenReceivedBelowThreshold(t *testing.T) {
	d := New(3, 1, time.Minute)
	d.Sample(0)
	d.Sample(0)
	d.Sample(0) // window full, received = 0-0 = 0 < threshold 1
	assert.Equal(t, StateDown, d.State())
}

func TestDetectorGoesRecoveringThenUpAfterRecoveryTime(t *testing.T) {
	d := New(3, 1, 0) // zero recovery time so the next tick flips to UP
	d.Sample(0)
	d.Sample(0)
	d.Sample(0)
	require := assert.New(t)
	require.Equal(StateDown, d.State())

	d.Sample(5) // received = 5 >= threshold
	require.Equal(StateRecovering, d.State())

	d.Sample(10) // recovery time is 0, so this tick clears to UP
	require.Equal(StateUp, d.State())
}

func TestDetectorStaysUpOnceReached(t *testing.T) {
	d := New(2, 1, 0)
	d.Sample(0)
	d.Sample(5)
	d.Sample(10)
	d.Sample(15)
	assert.Equal(t, StateUp, d.State())
}
