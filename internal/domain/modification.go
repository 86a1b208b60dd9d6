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

// ModificationKind is the stable numeric code of a modification event,
// as carried on the wire by the source feed.
type ModificationKind int

// Modification kinds, stable across the feed (spec.md §6).
const (
	ModDelayed            ModificationKind = 10
	ModPlatformChanged    ModificationKind = 20
	ModPlatformAllocated  ModificationKind = 22
	ModScheduleChanged    ModificationKind = 30
	ModAdditional         ModificationKind = 31
	ModCancelled          ModificationKind = 32
	ModDiverted           ModificationKind = 33
	ModTerminatesAt       ModificationKind = 34
	ModContinuesTo        ModificationKind = 35
	ModStatusChanged      ModificationKind = 40
	ModAttentionGoesTo    ModificationKind = 41
	ModNoRealtime         ModificationKind = 50
	ModReplacementBus     ModificationKind = 51
)

// Modification is a typed event attached to a train or wing.
type Modification struct {
	Kind        ModificationKind `json:"kind"`
	CauseShort  string           `json:"cause_short,omitempty"`
	CauseLong   string           `json:"cause_long,omitempty"`
	Station     *Station         `json:"station,omitempty"`
}

// IsCancellation reports whether this modification marks the train
// cancelled (kind 32); this backs the Train.IsCancelled predicate.
func (m Modification) IsCancellation() bool {
	return m.Kind == ModCancelled
}

// TravelTip is one of the opaque, language-specific travel-tip
// substructures the feed carries. The core stores these verbatim but
// never interprets them (spec.md §1, §6).
type TravelTip struct {
	Code     string    `json:"code"`
	Stations []Station `json:"stations,omitempty"`
}

// BoardTip ("InstapTip") suggests an earlier train to the same
// intermediate station. Opaque to the core.
type BoardTip struct {
	TrainKind        string   `json:"train_kind"`
	AlightStation    Station  `json:"alight_station"`
	Destination      Station  `json:"destination"`
	Platform         *Platform `json:"platform,omitempty"`
	DepartureUTC     string   `json:"departure_utc"`
}

// ChangeTip ("OverstapTip") suggests where to change trains for a
// given destination. Opaque to the core.
type ChangeTip struct {
	Destination    Station `json:"destination"`
	ChangeStation  Station `json:"change_station"`
}
