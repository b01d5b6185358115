// Copyright 2020 PingCAP, Inc.
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

package dictevents

import (
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "dictcache",
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Number of refresh events dropped because the publish buffer was full.",
})

// InitMetrics registers the sink's Prometheus collector against registry.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(droppedTotal)
}

// asyncProducer is the slice of sarama.AsyncProducer that Sink depends
// on, so tests can substitute a channel-backed fake.
type asyncProducer interface {
	Input() chan<- *sarama.ProducerMessage
	Errors() <-chan *sarama.ProducerError
	Close() error
}

// Sink publishes RefreshEvents to Kafka on a best-effort basis. Publish
// never blocks the caller: a full internal buffer drops the event and
// increments a counter instead of applying backpressure to whatever
// called Await.
type Sink struct {
	cfg      Config
	producer asyncProducer
	events   chan RefreshEvent

	closingMu sync.RWMutex
	closing   bool
	runDone   chan struct{}
}

// NewSink opens a Kafka async producer per cfg and starts the background
// goroutines that drain events into it.
func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}
	return newWithProducer(cfg, producer), nil
}

func newWithProducer(cfg Config, producer asyncProducer) *Sink {
	s := &Sink{
		cfg:      cfg,
		producer: producer,
		events:   make(chan RefreshEvent, cfg.BufferSize),
		runDone:  make(chan struct{}),
	}
	go s.run()
	go s.drainErrors()
	return s
}

// Publish enqueues evt for publication. If the internal buffer is full,
// the event is dropped and dictcache_events_dropped_total is incremented;
// Publish itself never blocks.
func (s *Sink) Publish(evt RefreshEvent) {
	s.closingMu.RLock()
	defer s.closingMu.RUnlock()
	if s.closing {
		return
	}
	select {
	case s.events <- evt:
	default:
		droppedTotal.Inc()
		log.L().Warn("dictevents: buffer full, dropping refresh event",
			zap.String("dictionary", evt.Dictionary), zap.String("key", evt.Key))
	}
}

func (s *Sink) run() {
	defer close(s.runDone)
	for evt := range s.events {
		payload, err := json.Marshal(evt)
		if err != nil {
			log.L().Warn("dictevents: failed to encode refresh event", zap.Error(err))
			continue
		}
		msg := &sarama.ProducerMessage{
			Topic: s.cfg.Topic,
			Key:   sarama.StringEncoder(evt.Key),
			Value: sarama.ByteEncoder(payload),
		}
		s.producer.Input() <- msg
	}
}

func (s *Sink) drainErrors() {
	for perr := range s.producer.Errors() {
		log.L().Warn("dictevents: publish failed", zap.Error(perr.Err))
	}
}

// Close stops accepting new events, drains the buffer, and closes the
// underlying producer.
func (s *Sink) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	close(s.events)
	<-s.runDone
	return s.producer.Close()
}
