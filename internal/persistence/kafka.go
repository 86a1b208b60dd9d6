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

package persistence

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/pingcap/errors"
	"github.com/sony/gobreaker"

	"github.com/railfeed/dvsd/internal/store"
	"github.com/railfeed/dvsd/internal/wire"
)

// KafkaAdapter publishes the wire-encoded snapshot to a topic on
// every save. This supplements the distilled spec (SPEC_FULL.md §3.4)
// by letting downstream consumers follow departure-lifecycle state
// without polling the query channel.
type KafkaAdapter struct {
	producer sarama.SyncProducer
	topic    string
	breaker  *gobreaker.CircuitBreaker
}

// NewKafkaAdapter dials brokers and returns an adapter publishing to
// topic, wrapped in a circuit breaker configured from cfg.
func NewKafkaAdapter(brokers []string, topic string, cfg Config) (*KafkaAdapter, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, saramaCfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &KafkaAdapter{
		producer: producer,
		topic:    topic,
		breaker:  newBreaker("kafka", cfg),
	}, nil
}

// Save publishes the encoded snapshot as a single message keyed by
// "snapshot", so consumers that only want the latest state can
// compact the topic on that key.
func (a *KafkaAdapter) Save(ctx context.Context, snap store.Snapshot) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		msg := &sarama.ProducerMessage{
			Topic: a.topic,
			Key:   sarama.StringEncoder("snapshot"),
			Value: sarama.ByteEncoder(wire.Encode(snap)),
		}
		_, _, err := a.producer.SendMessage(msg)
		return nil, errors.Trace(err)
	})
	return err
}

// Load is unsupported for the kafka backend: a topic is a log of
// events, not a point-in-time store this adapter can read back
// synchronously, so startup restore always falls back to an empty
// snapshot when this backend is selected.
func (a *KafkaAdapter) Load(ctx context.Context) (store.Snapshot, error) {
	return emptySnapshot(), nil
}

// Close shuts down the underlying producer.
func (a *KafkaAdapter) Close() error {
	return a.producer.Close()
}
