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
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nats-io/nats.go"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const defaultReconnectWait = time.Second

// Reader subscribes to the upstream feed subject and enqueues every
// received frame onto the work queue (spec.md §4.2). The envelope is
// carried as the NATS subject; with an empty Envelope the reader
// subscribes to the base subject itself. No wildcard is added, so
// frames published on subject.<envelope> are not received.
type Reader struct {
	url      string
	subject  string
	envelope string
	queue    *Queue
	conn     *nats.Conn
	sub      *nats.Subscription
}

// NewReader creates a reader that will dial url and subscribe to
// subject (or subject+"."+envelope if envelope is non-empty).
func NewReader(url, subject, envelope string, q *Queue) *Reader {
	return &Reader{url: url, subject: subject, envelope: envelope, queue: q}
}

// Run dials the broker with an outer exponential backoff (so a
// completely unreachable broker at startup does not spin hot before
// nats.go's own reconnect state machine takes over), subscribes, and
// blocks until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	subject := r.subject
	if r.envelope != "" {
		subject = subject + "." + r.envelope
	}

	var conn *nats.Conn
	dial := func() error {
		c, err := nats.Connect(r.url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(defaultReconnectWait),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					log.Warn("upstream feed connection lost, reconnecting", zap.Error(err))
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Info("upstream feed connection restored")
			}),
		)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = 0 // retry forever; startup must not give up (spec.md §4.8)
	if err := backoff.Retry(dial, boff); err != nil {
		return errors.Trace(err)
	}
	r.conn = conn
	defer conn.Close()

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		r.queue.Push(Payload{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return errors.Trace(err)
	}
	r.sub = sub
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}
