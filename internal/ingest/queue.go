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

// Package ingest runs the reader/worker pipeline of spec.md §4.2: the
// reader subscribes to the upstream feed and enqueues raw payloads
// onto an unbounded FIFO; the worker drains it, decompresses, decodes
// and applies each payload to the store.
package ingest

import (
	"context"
	"sync"

	"github.com/edwingeng/deque"
)

// Queue is the unbounded FIFO work queue between the reader and the
// worker (spec.md §4.2: "Receive-side high-water-mark is set to
// unbounded to avoid upstream drops during transient worker
// stalls"). A fixed-capacity channel cannot offer that guarantee, so
// this wraps a growable ring-buffer deque behind a condition
// variable, mirroring the blocking Get/AddEntry shape of the
// teacher's sorted-output buffer.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	dq   deque.Deque
	closed bool
}

// Payload is one enqueued unit: the envelope subject (for log
// correlation) and the raw gzip-compressed frame.
type Payload struct {
	Subject string
	Data    []byte
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{dq: deque.NewDeque()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a payload and wakes one waiting Pop.
func (q *Queue) Push(p Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.dq.PushBack(p)
	q.cond.Signal()
}

// Pop blocks until a payload is available, the queue is closed, or
// ctx is cancelled. ok is false in the latter two cases.
func (q *Queue) Pop(ctx context.Context) (Payload, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.dq.Empty() && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if ctx.Err() != nil || (q.dq.Empty() && q.closed) {
		return Payload{}, false
	}
	v := q.dq.PopFront()
	return v.(Payload), true
}

// Close marks the queue closed and wakes every blocked Pop; already
// queued payloads remain poppable until drained (spec.md §5: "the
// work queue is drained (or abandoned)" — this implementation drains).
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current queue depth, for diagnostics only.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dq.Len()
}
