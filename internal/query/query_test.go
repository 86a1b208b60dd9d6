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

package query

import (
	"testing"
	"time"

	"github.com/pingcap/check"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/downtime"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

func Test(t *testing.T) { check.TestingT(t) }

type querySuite struct{}

var _ = check.Suite(&querySuite{})

func newServer() (*Server, *store.Store) {
	s := store.New(metrics.NewForTesting())
	srv := New(s, metrics.NewForTesting(), downtime.DefaultDetector())
	return srv, s
}

func (qs *querySuite) TestStationCommandReturnsTrainsAtStation(c *check.C) {
	srv, s := newServer()
	s.Update(&domain.Train{TrainNumber: "1234", TripStation: domain.Station{Code: "RTD"}, MessageTS: time.Now()})

	reply := srv.Handle("station/RTD")
	c.Assert(string(reply), check.Matches, `.*"1234".*`)
}

func (qs *querySuite) TestStationCommandReturnsBareEmptyObjectForUnknownStation(c *check.C) {
	srv, _ := newServer()
	reply := srv.Handle("station/NOPE")
	c.Assert(string(reply), check.Equals, "{}")
}

func (qs *querySuite) TestCountTreinAndStation(c *check.C) {
	srv, s := newServer()
	s.Update(&domain.Train{TrainNumber: "1234", TripStation: domain.Station{Code: "RTD"}, MessageTS: time.Now()})

	c.Assert(string(srv.Handle("count/trein")), check.Equals, "1")
	c.Assert(string(srv.Handle("count/station")), check.Equals, "1")
}

func (qs *querySuite) TestCountNamedCounter(c *check.C) {
	srv, _ := newServer()
	c.Assert(string(srv.Handle("count/msg")), check.Equals, "0")
}

func (qs *querySuite) TestStatusStatusReturnsStateString(c *check.C) {
	srv, _ := newServer()
	c.Assert(string(srv.Handle("status/status")), check.Equals, `"UNKNOWN"`)
}

func (qs *querySuite) TestUnknownCommandReturnsNull(c *check.C) {
	srv, _ := newServer()
	c.Assert(string(srv.Handle("not-a-command")), check.Equals, "null")
}
