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

package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersStartAtZero(t *testing.T) {
	m := NewForTesting()
	assert.Equal(t, uint64(0), m.MessagesValue())
}

func TestMessagesValueTracksIncMessage(t *testing.T) {
	m := NewForTesting()
	m.IncMessage()
	m.IncMessage()
	m.IncMessage()
	assert.Equal(t, uint64(3), m.MessagesValue())
}

func TestIncrementHelpersDoNotPanic(t *testing.T) {
	m := NewForTesting()
	m.IncDuplicate()
	m.IncStale()
	m.IncGCStation()
	m.IncGCTrain()
	m.IncInjection()
}

func TestSetDowntimeStateKeepsExactlyOneActiveSeries(t *testing.T) {
	m := NewForTesting()
	known := []string{"unknown", "down", "recovering", "up"}

	m.SetDowntimeState("down", known)
	assert.Equal(t, float64(1), gaugeValue(t, m, "down"))
	assert.Equal(t, float64(0), gaugeValue(t, m, "up"))

	m.SetDowntimeState("up", known)
	assert.Equal(t, float64(0), gaugeValue(t, m, "down"))
	assert.Equal(t, float64(1), gaugeValue(t, m, "up"))
}

func gaugeValue(t *testing.T, m *Metrics, state string) float64 {
	t.Helper()
	var dm dto.Metric
	require.NoError(t, m.DowntimeState.WithLabelValues(state).Write(&dm))
	return dm.GetGauge().GetValue()
}
