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

// Package inject serves the injector request/reply channel
// (spec.md §4.7): synthesized trains, usually standing in for a
// service the upstream feed never announced.
package inject

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is the JSON object the injector channel accepts, matching
// spec.md §4.7's field list exactly.
type Request struct {
	ServiceID       string     `json:"service_id"`
	ServiceNumber   string     `json:"service_number"`
	ServiceDate     string     `json:"service_date"`
	StopCode        string     `json:"stop_code"`
	TransmodeText   string     `json:"transmode_text"`
	TransmodeCode   string     `json:"transmode_code"`
	Company         string     `json:"company"`
	Departure       string     `json:"departure"`
	DepartureDelay  *int       `json:"departure_delay,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	DestinationCode string     `json:"destination_code"`
	DestinationText string     `json:"destination_text"`
	Stops           [][]string `json:"stops"`
	// Via is accepted for request-shape compatibility but is not
	// applied to the built train: spec.md §4.7's construction rule
	// attaches a wing built from stops and destination only, with no
	// route field for intermediate stations, so a request carrying via
	// is accepted and otherwise ignored rather than rejected.
	Via             [][]string `json:"via,omitempty"`
	DoNotBoard      bool       `json:"do_not_board,omitempty"`
	Cancelled       bool       `json:"cancelled,omitempty"`
}

// Reply is the injector's JSON response.
type Reply struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Injector builds synthetic Trains from injector requests and
// installs them in the store.
type Injector struct {
	store   *store.Store
	metrics *metrics.Metrics
	limiter *rate.Limiter
}

// New creates an injector rate-limited to r requests/sec with burst b
// (SPEC_FULL.md §3.7 protects the admin channel from a misbehaving
// client).
func New(s *store.Store, m *metrics.Metrics, r rate.Limit, b int) *Injector {
	return &Injector{store: s, metrics: m, limiter: rate.NewLimiter(r, b)}
}

// Handle decodes one request, applies it, and returns the reply to
// send back over the channel. It never returns an error itself:
// failures are reported inside the Reply per spec.md §4.7.
func (inj *Injector) Handle(data []byte) Reply {
	if !inj.limiter.Allow() {
		return Reply{Result: false, Error: "rate limited"}
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error("injector: malformed request", zap.Error(err))
		return Reply{Result: false, Error: errors.Cause(err).Error()}
	}

	train, err := buildTrain(req)
	if err != nil {
		log.Error("injector: invalid request", zap.Error(err))
		return Reply{Result: false, Error: err.Error()}
	}

	inj.store.Update(train)
	inj.metrics.IncInjection()
	return Reply{Result: true}
}

// buildTrain constructs the synthetic Train per spec.md §4.7's exact
// rule set: trip id derivation, single wing with the given stops,
// now_utc() message timestamp, optional cancellation modification.
func buildTrain(req Request) (*domain.Train, error) {
	departure, err := time.Parse(time.RFC3339, req.Departure)
	if err != nil {
		return nil, errors.Annotate(err, "invalid departure timestamp")
	}
	if req.StopCode == "" {
		return nil, errors.New("stop_code is required")
	}

	tripID := req.ServiceNumber
	if tripID == "" || tripID == "0" {
		tripID = domain.InjectedIDPrefix + req.ServiceID
	}

	current := departure
	if req.DepartureDelay != nil {
		current = departure.Add(time.Duration(*req.DepartureDelay) * time.Minute)
	}

	destination := domain.Station{Code: req.DestinationCode, LongName: req.DestinationText}

	train := &domain.Train{
		TripID:      tripID,
		TripStation: domain.Station{Code: req.StopCode},
		TripDate:    req.ServiceDate,
		MessageTS:   time.Now().UTC(),
		TrainNumber: tripID,
		TransportKind: domain.TransportKind{
			Code: req.TransmodeCode,
			Name: req.TransmodeText,
		},
		Carrier:             req.Company,
		Status:              "1",
		PlannedDeparture:    departure,
		CurrentDeparture:    current,
		CurrentDestinations: []domain.Station{destination},
		DoNotBoard:          req.DoNotBoard,
		Synthetic:           true,
	}

	if req.Platform != "" {
		train.CurrentPlatform = []domain.Platform{{Number: req.Platform}}
	}

	// req.Via is deliberately not consumed here; see the Via field
	// doc comment on Request.
	wing := domain.Wing{
		Destination:        destination,
		CurrentDestination: destination,
		CurrentStops:       stationsFromPairs(req.Stops),
	}
	train.Wings = []domain.Wing{wing}

	if req.Cancelled {
		train.Modifications = append(train.Modifications, domain.Modification{Kind: domain.ModCancelled})
	}

	return train, nil
}

func stationsFromPairs(pairs [][]string) []domain.Station {
	out := make([]domain.Station, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 1 {
			continue
		}
		s := domain.Station{Code: pair[0]}
		if len(pair) > 1 {
			s.LongName = pair[1]
		}
		out = append(out, s)
	}
	return out
}
