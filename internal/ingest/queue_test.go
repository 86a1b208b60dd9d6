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

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/check"
)

func Test(t *testing.T) { check.TestingT(t) }

type queueSuite struct{}

var _ = check.Suite(&queueSuite{})

func (s *queueSuite) TestCanPushAndPopInOrder(c *check.C) {
	q := NewQueue()
	ctx := context.Background()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ok := q.Pop(ctx)
		c.Assert(ok, check.Equals, true)
		c.Assert(first.Subject, check.Equals, "feed.1")
		second, ok := q.Pop(ctx)
		c.Assert(ok, check.Equals, true)
		c.Assert(second.Subject, check.Equals, "feed.2")
	}()

	q.Push(Payload{Subject: "feed.1"})
	q.Push(Payload{Subject: "feed.2"})
	wg.Wait()
}

func (s *queueSuite) TestPopCanBeCancelled(c *check.C) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, ok := q.Pop(ctx)
	c.Assert(ok, check.Equals, false)
}

func (s *queueSuite) TestCloseWakesBlockedPop(c *check.C) {
	q := NewQueue()
	done := make(chan struct{})
	go func() {
		_, ok := q.Pop(context.Background())
		c.Assert(ok, check.Equals, false)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		c.Fatal("Pop did not wake up after Close")
	}
}

func (s *queueSuite) TestQueueIsUnbounded(c *check.C) {
	q := NewQueue()
	for i := 0; i < 10000; i++ {
		q.Push(Payload{Subject: "feed"})
	}
	c.Assert(q.Len(), check.Equals, 10000)
}
