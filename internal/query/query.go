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

// Package query answers the ASCII command table of spec.md §4.4. Every
// command produces exactly one reply object; replies are built from
// data read under the store's own locks, so I1 holds at the moment of
// snapshotting.
package query

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/downtime"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server answers ASCII command strings against a store, a metrics
// bundle, and a downtime detector's current state.
type Server struct {
	store    *store.Store
	metrics  *metrics.Metrics
	detector *downtime.Detector
}

// New creates a query server.
func New(s *store.Store, m *metrics.Metrics, d *downtime.Detector) *Server {
	return &Server{store: s, metrics: m, detector: d}
}

// StationReply is the reply shape for station/<CODE> and trein/<N>.
type StationReply struct {
	Status string                      `json:"status"`
	Data   map[string]*domain.Train    `json:"data"`
}

// StatusReply is the reply shape for the "status" command.
type StatusReply struct {
	Status     string `json:"status"`
	Messages   uint64 `json:"messages"`
	Duplicate  uint64 `json:"duplicate"`
	Stale      uint64 `json:"stale"`
	GCStation  uint64 `json:"gc_station"`
	GCTrain    uint64 `json:"gc_trein"`
	Injections uint64 `json:"injecties"`
	Stations   int    `json:"stations"`
	Trains     int    `json:"treinen"`
}

// Handle dispatches one ASCII command and returns the raw JSON reply
// bytes to send back. A null reply is returned (not an error) for any
// unrecognized command, per spec.md §4.4's last row.
func (s *Server) Handle(command string) []byte {
	reply := s.dispatch(command)
	out, err := json.Marshal(reply)
	if err != nil {
		log.Error("query: failed to marshal reply", zap.String("command", command), zap.Error(err))
		return []byte("null")
	}
	return out
}

func (s *Server) dispatch(command string) interface{} {
	switch {
	case strings.HasPrefix(command, "station/"):
		code := strings.TrimPrefix(command, "station/")
		data := s.store.ByStation(code)
		if len(data) == 0 {
			return struct{}{} // spec.md §4.4 B2: unknown station is bare {}, not {status, data:{}}
		}
		return StationReply{Status: string(s.detector.State()), Data: data}

	case strings.HasPrefix(command, "trein/"):
		number := strings.TrimPrefix(command, "trein/")
		data := s.store.ByTrain(number)
		if len(data) == 0 {
			return struct{}{}
		}
		return StationReply{Status: string(s.detector.State()), Data: data}

	case command == "store/trein":
		return s.store.DumpByTrain()

	case command == "store/station":
		return s.store.DumpByStation()

	case command == "count/trein":
		return s.store.TrainCount()

	case command == "count/station":
		return s.store.StationCount()

	case strings.HasPrefix(command, "count/"):
		return s.counterValue(strings.TrimPrefix(command, "count/"))

	case command == "status/status":
		return string(s.detector.State())

	case command == "status":
		return s.statusReply()

	default:
		return nil
	}
}

func (s *Server) counterValue(name string) interface{} {
	switch name {
	case "msg":
		return counterValue(s.metrics.Messages)
	case "dubbel":
		return counterValue(s.metrics.Duplicate)
	case "ouder":
		return counterValue(s.metrics.Stale)
	case "gc_station":
		return counterValue(s.metrics.GCStation)
	case "gc_trein":
		return counterValue(s.metrics.GCTrain)
	case "injecties":
		return counterValue(s.metrics.Injections)
	default:
		return nil
	}
}

func (s *Server) statusReply() StatusReply {
	return StatusReply{
		Status:     string(s.detector.State()),
		Messages:   uint64(counterValue(s.metrics.Messages)),
		Duplicate:  uint64(counterValue(s.metrics.Duplicate)),
		Stale:      uint64(counterValue(s.metrics.Stale)),
		GCStation:  uint64(counterValue(s.metrics.GCStation)),
		GCTrain:    uint64(counterValue(s.metrics.GCTrain)),
		Injections: uint64(counterValue(s.metrics.Injections)),
		Stations:   s.store.StationCount(),
		Trains:     s.store.TrainCount(),
	}
}
