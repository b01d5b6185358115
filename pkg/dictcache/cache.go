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

package dictcache

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/coredb-io/dictcache/pkg/dictevents"
	"github.com/coredb-io/dictcache/pkg/dictqueue"
	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// eventPublisher is the slice of *dictevents.Sink that Cache depends on,
// so tests can substitute a fake without standing up a real Kafka
// producer.
type eventPublisher interface {
	Publish(evt dictevents.RefreshEvent)
}

// redisClient is the slice of *redis.Client that Cache depends on. It
// exists so tests can substitute a fake without standing up a real Redis
// server.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Close() error
}

// Cache is the Redis-backed cache dictionary. Concurrent Get calls for
// the same key that both miss are coalesced into exactly one UpdateUnit;
// the queue never sees more than one outstanding submission per key at a
// time, regardless of how many goroutines are waiting on it.
type Cache struct {
	cfg        Config
	dictionary string
	rdb        redisClient
	queue      *dictqueue.UpdateQueue[string, []byte]
	sink       eventPublisher
	group      singleflight.Group
}

// New builds a Cache backed by a fresh Redis client and the given queue.
// The queue's UpdateCallback is expected to populate a unit's output with
// the freshly loaded value for unit.Input() (the key); wiring a callback
// that does something else produces a cache that silently caches garbage.
// sink receives one RefreshEvent per Get miss, published after the miss's
// Submit/Await round trip concludes, whatever its outcome; sink may be
// nil, in which case Cache simply does not publish events.
func New(dictionary string, cfg Config, queue *dictqueue.UpdateQueue[string, []byte], sink *dictevents.Sink) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	var publisher eventPublisher
	if sink != nil {
		publisher = sink
	}
	return newWithClient(dictionary, cfg, rdb, queue, publisher), nil
}

func newWithClient(dictionary string, cfg Config, rdb redisClient, queue *dictqueue.UpdateQueue[string, []byte], sink eventPublisher) *Cache {
	return &Cache{cfg: cfg, dictionary: dictionary, rdb: rdb, queue: queue, sink: sink}
}

// Get returns the current value for key, refreshing it through the
// update queue on a cache miss. Concurrent misses for the same key share
// one refresh; every caller sees that refresh's outcome.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return val, nil
	}
	if err != redis.Nil {
		return nil, dicterrors.ErrCacheUnavailable.GenWithStackByArgs(err.Error())
	}

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.refresh(ctx, key)
	})
	if shared {
		log.L().Debug("dictcache: coalesced concurrent miss", zap.String("key", key))
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// refresh submits and awaits one UpdateUnit for key, writing the result
// back to Redis with the configured TTL on success. It is only ever
// called from inside a singleflight.Group.Do closure, so at most one
// refresh per key is in flight through the queue at any time.
//
// A RefreshEvent is published exactly once per call, after Submit/Await
// concludes, regardless of which of the three ways it can conclude: this
// is the only place in the request path that can observe a Submit-side
// admission timeout or an Await-side query timeout, so it is the only
// place that can honestly report WaitTimedOut's dictevents.OutcomeTimeout
// — a callback-side wrapper only ever sees Done or Failed.
func (c *Cache) refresh(ctx context.Context, key string) (interface{}, error) {
	start := time.Now()
	unit := dictqueue.NewUpdateUnit[string, []byte](key)
	if err := c.queue.Submit(unit); err != nil {
		c.publishOutcome(key, start, err)
		return nil, err
	}
	value, err := c.queue.Await(ctx, unit)
	if err != nil {
		c.publishOutcome(key, start, err)
		return nil, err
	}
	c.publishOutcome(key, start, nil)

	if setErr := c.rdb.Set(ctx, key, value, c.cfg.DefaultTTL).Err(); setErr != nil {
		log.L().Warn("dictcache: write-through failed after successful refresh",
			zap.String("key", key), zap.Error(setErr))
	}
	return value, nil
}

// publishOutcome reports one Submit/Await round trip to c.sink, if one is
// configured. err is the round trip's own outcome, not (necessarily) a
// terminal failure: ErrPushTimedOut and ErrQueryTimedOut both classify as
// dictevents.OutcomeTimeout rather than OutcomeFailed, since the queue
// itself never actually ran the callback to a Done or Failed conclusion.
func (c *Cache) publishOutcome(key string, start time.Time, err error) {
	if c.sink == nil {
		return
	}
	outcome := dictevents.OutcomeDone
	errorCode := ""
	if err != nil {
		outcome = dictevents.OutcomeFailed
		if errors.ErrorEqual(err, dicterrors.ErrPushTimedOut) || errors.ErrorEqual(err, dicterrors.ErrQueryTimedOut) {
			outcome = dictevents.OutcomeTimeout
		}
		if e, ok := errors.Cause(err).(*errors.Error); ok {
			errorCode = string(e.RFCCode())
		}
	}
	c.sink.Publish(dictevents.RefreshEvent{
		Dictionary: c.dictionary,
		Key:        key,
		Outcome:    outcome,
		Latency:    time.Since(start),
		ErrorCode:  errorCode,
		At:         start,
	})
}

// Close stops the underlying update queue and closes the Redis client.
// It does not attempt to drain in-flight Get calls; callers are expected
// to stop issuing new requests before calling Close.
func (c *Cache) Close() error {
	queueErr := c.queue.Stop()
	if err := c.rdb.Close(); err != nil {
		return err
	}
	return queueErr
}
