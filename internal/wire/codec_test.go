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

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/store"
)

func sampleSnapshot() store.Snapshot {
	departed := time.Date(2026, 8, 1, 6, 9, 0, 0, time.UTC)
	cancelStation := domain.Station{Code: "UT", LongName: "Utrecht Centraal"}
	train := &domain.Train{
		TripID:      "1234",
		TripDate:    "2026-08-01",
		TripStation: domain.Station{Code: "RTD", LongName: "Rotterdam Centraal"},
		MessageTS:   time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC),
		TrainNumber: "1234",
		TransportKind: domain.TransportKind{
			Code: "IC", Name: "Intercity",
		},
		Carrier:              "NS",
		TrainName:            "Beatrixexpres",
		Status:               "1",
		PlannedDeparture:     time.Date(2026, 8, 1, 6, 5, 0, 0, time.UTC),
		CurrentDeparture:     time.Date(2026, 8, 1, 6, 7, 0, 0, time.UTC),
		ExactDelaySeconds:    120,
		DampedDelaySeconds:   -60,
		PlannedPlatform:      []domain.Platform{{Number: "4"}},
		CurrentPlatform:      []domain.Platform{{Number: "4", Phase: "a"}},
		PlannedDestinations:  []domain.Station{{Code: "GN", LongName: "Groningen"}},
		CurrentDestinations:  []domain.Station{{Code: "GN", LongName: "Groningen"}},
		PlannedShortRoute:    []domain.Station{{Code: "UT"}, {Code: "ZL"}},
		CurrentShortRoute:    []domain.Station{{Code: "UT"}, {Code: "ZL"}},
		ReservationRequired:  true,
		Wings: []domain.Wing{
			{
				Destination:        domain.Station{Code: "GN", LongName: "Groningen"},
				CurrentDestination: domain.Station{Code: "GN", LongName: "Groningen"},
				PlannedPlatform:    []domain.Platform{{Number: "4"}},
				CurrentPlatform:    []domain.Platform{{Number: "4", Phase: "a"}},
				PlannedStops:       []domain.Station{{Code: "UT"}},
				RollingStock: []domain.RollingStockPart{
					{Kind: "VIRM", Designation: "4", Destination: domain.Station{Code: "GN"}, CurrentDestination: domain.Station{Code: "GN"}},
				},
				Modifications: []domain.Modification{{Kind: domain.ModDelayed, CauseShort: "drukte"}},
			},
		},
		Modifications: []domain.Modification{
			{Kind: domain.ModDelayed, CauseShort: "drukte"},
			{Kind: domain.ModCancelled, CauseLong: "werkzaamheden", Station: &cancelStation},
		},
		TravelTips: []domain.TravelTip{{Code: "t1", Stations: []domain.Station{{Code: "UT"}}}},
		BoardTips: []domain.BoardTip{{
			TrainKind:     "IC",
			AlightStation: domain.Station{Code: "UT"},
			Destination:   domain.Station{Code: "GN"},
			Platform:      &domain.Platform{Number: "4", Phase: "a"},
			DepartureUTC:  "2026-08-01T06:00:00Z",
		}},
		ChangeTips:        []domain.ChangeTip{{Destination: domain.Station{Code: "GN"}, ChangeStation: domain.Station{Code: "ZL"}}},
		DepartedTimestamp: &departed,
	}
	return store.Snapshot{
		TakenAt: time.Date(2026, 8, 1, 6, 10, 0, 0, time.UTC),
		ByStation: map[string]map[string]*domain.Train{
			"RTD": {"1234": train},
		},
		ByTrain: map[string]map[string]*domain.Train{
			"1234": {"RTD": train},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	encoded := Encode(snap)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Contains(t, decoded.ByStation, "RTD")
	got := decoded.ByStation["RTD"]["1234"]
	require.NotNil(t, got)

	want := snap.ByStation["RTD"]["1234"]
	assert.Equal(t, want.TripID, got.TripID)
	assert.Equal(t, want.TripStation, got.TripStation)
	assert.True(t, want.MessageTS.Equal(got.MessageTS))
	assert.Equal(t, want.TransportKind, got.TransportKind)
	assert.Equal(t, want.Carrier, got.Carrier)
	assert.Equal(t, want.TrainName, got.TrainName)
	assert.Equal(t, want.ExactDelaySeconds, got.ExactDelaySeconds)
	assert.Equal(t, want.DampedDelaySeconds, got.DampedDelaySeconds)
	assert.Equal(t, want.PlannedPlatform, got.PlannedPlatform)
	assert.Equal(t, want.CurrentPlatform, got.CurrentPlatform)
	assert.Equal(t, want.PlannedDestinations, got.PlannedDestinations)
	assert.Equal(t, want.CurrentDestinations, got.CurrentDestinations)
	assert.Equal(t, want.PlannedShortRoute, got.PlannedShortRoute)
	assert.Equal(t, want.CurrentShortRoute, got.CurrentShortRoute)
	assert.Equal(t, want.ReservationRequired, got.ReservationRequired)
	assert.Equal(t, want.Wings, got.Wings)
	assert.Equal(t, want.Modifications, got.Modifications)
	assert.Equal(t, want.TravelTips, got.TravelTips)
	assert.Equal(t, want.BoardTips, got.BoardTips)
	assert.Equal(t, want.ChangeTips, got.ChangeTips)
	require.NotNil(t, got.DepartedTimestamp)
	assert.True(t, want.DepartedTimestamp.Equal(*got.DepartedTimestamp))
}

func TestDecodeRejectsCorruptedTrailer(t *testing.T) {
	snap := sampleSnapshot()
	encoded := Encode(snap)
	encoded[len(encoded)-1] ^= 0xFF

	_, err := Decode(encoded)
	require.Error(t, err)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 0})
	require.Error(t, err)
}
