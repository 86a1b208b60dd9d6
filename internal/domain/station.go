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

// Package domain holds the value types the store, decoder and query
// server all share: stations, platforms, modifications, wings and
// trains. None of them reference each other by pointer across trains;
// a train owns its wings outright.
package domain

import "fmt"

// Station is an immutable station identifier, used only by reference
// from a Train or Wing.
type Station struct {
	Code      string `json:"code"`
	ShortName string `json:"short_name"`
	MidName   string `json:"mid_name"`
	LongName  string `json:"long_name"`
	UICCode   string `json:"uic_code,omitempty"`
	Type      string `json:"type,omitempty"`
}

func (s Station) String() string {
	return fmt.Sprintf("<station %s %s>", s.Code, s.LongName)
}

// Platform is a track number with an optional letter phase, e.g. "4a".
// A train's platform field is an ordered sequence: it may depart from
// more than one platform at once.
type Platform struct {
	Number string `json:"number"`
	Phase  string `json:"phase,omitempty"`
}

func (p Platform) String() string {
	if p.Phase != "" {
		return p.Number + p.Phase
	}
	return p.Number
}

// Equal reports component-wise equality.
func (p Platform) Equal(other Platform) bool {
	return p.Number == other.Number && p.Phase == other.Phase
}

// PlatformsEqual compares two ordered platform sequences.
func PlatformsEqual(a, b []Platform) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
