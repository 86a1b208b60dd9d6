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

package domain

import "time"

// DepartedStatus is the feed status code that means "departed"
// (spec.md §3/§6). Every other status code is opaque to the core.
const DepartedStatus = "5"

// InjectedIDPrefix reserves a key space for injected trip ids so they
// never collide with feed-assigned ones (I5). Used when the injector
// receives a zero service number (spec.md §4.7).
const InjectedIDPrefix = "i"

// TransportKind is the feed's transport-type code plus its long name,
// e.g. Code "IC", Name "Intercity".
type TransportKind struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Train is the central entity: everything the store indexes and the
// query/injector channels exchange.
type Train struct {
	TripID          string    `json:"trip_id"`
	TripStation     Station   `json:"trip_station"`
	TripDate        string    `json:"trip_date"`
	MessageTS       time.Time `json:"message_timestamp"`

	TrainNumber    string        `json:"train_number"`
	TransportKind  TransportKind `json:"transport_kind"`
	Carrier        string        `json:"carrier"`
	TrainName      string        `json:"train_name,omitempty"`

	Status string `json:"status"`

	PlannedDeparture time.Time `json:"planned_departure"`
	CurrentDeparture time.Time `json:"current_departure"`

	ExactDelaySeconds  int `json:"exact_delay_seconds"`
	DampedDelaySeconds int `json:"damped_delay_seconds"`

	PlannedPlatform []Platform `json:"planned_platform,omitempty"`
	CurrentPlatform []Platform `json:"current_platform,omitempty"`

	PlannedDestinations []Station `json:"planned_destinations,omitempty"`
	CurrentDestinations []Station `json:"current_destinations,omitempty"`

	PlannedShortRoute []Station `json:"planned_short_route,omitempty"`
	CurrentShortRoute []Station `json:"current_short_route,omitempty"`

	ReservationRequired bool `json:"reservation_required"`
	SupplementRequired  bool `json:"supplement_required"`
	DoNotBoard          bool `json:"do_not_board"`
	SpecialTicket       bool `json:"special_ticket"`
	Shunting            bool `json:"shunting"`
	RearStaysBehind     bool `json:"rear_stays_behind"`

	Wings         []Wing         `json:"wings"`
	Modifications []Modification `json:"modifications,omitempty"`

	TravelTips []TravelTip `json:"travel_tips,omitempty"`
	BoardTips  []BoardTip  `json:"board_tips,omitempty"`
	ChangeTips []ChangeTip `json:"change_tips,omitempty"`

	Synthetic        bool       `json:"synthetic"`
	DepartedTimestamp *time.Time `json:"departed_timestamp,omitempty"`
}

// IsCancelled reports whether any train-level modification has kind
// ModCancelled (spec.md §3 "Derived predicate").
func (t *Train) IsCancelled() bool {
	for _, m := range t.Modifications {
		if m.IsCancellation() {
			return true
		}
	}
	return false
}

// IsDeparted reports whether the feed status is the departed sentinel.
func (t *Train) IsDeparted() bool {
	return t.Status == DepartedStatus
}

// Clone returns a deep-enough copy for safe concurrent snapshotting:
// slices are copied so a reader iterating a snapshot never observes a
// subsequent in-place mutation (I1 requires station/train-index copies
// to stay equal, not aliased into a writer's working set).
func (t *Train) Clone() *Train {
	if t == nil {
		return nil
	}
	clone := *t
	clone.PlannedPlatform = append([]Platform(nil), t.PlannedPlatform...)
	clone.CurrentPlatform = append([]Platform(nil), t.CurrentPlatform...)
	clone.PlannedDestinations = append([]Station(nil), t.PlannedDestinations...)
	clone.CurrentDestinations = append([]Station(nil), t.CurrentDestinations...)
	clone.PlannedShortRoute = append([]Station(nil), t.PlannedShortRoute...)
	clone.CurrentShortRoute = append([]Station(nil), t.CurrentShortRoute...)
	clone.Modifications = append([]Modification(nil), t.Modifications...)
	clone.Wings = append([]Wing(nil), t.Wings...)
	if t.DepartedTimestamp != nil {
		ts := *t.DepartedTimestamp
		clone.DepartedTimestamp = &ts
	}
	return &clone
}
