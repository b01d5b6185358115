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

package dictqueue

import (
	"context"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// UpdateQueue serialises refresh work for one dictionary behind a bounded
// backlog and a fixed pool of worker goroutines. It is safe for
// concurrent use by any number of submitters; New starts the workers
// immediately, and Stop tears them down exactly once.
type UpdateQueue[I any, O any] struct {
	name    string
	cfg     Config
	backlog *backlog[I, O]
	pool    *workerPool[I, O]
	metrics *queueMetrics

	cancel context.CancelFunc
	clock  clock.Clock

	finished atomic.Bool
	stopped  atomic.Bool
}

// New validates cfg, starts cfg.WorkerCount worker goroutines running
// callback, and returns the ready queue. name identifies the dictionary
// this queue serves in logs, metrics, and error messages.
func New[I any, O any](name string, cfg Config, callback UpdateCallback[I, O]) (*UpdateQueue[I, O], error) {
	return newWithClock(name, cfg, callback, clock.New())
}

// newWithClock is New with an injectable clock, so tests can observe
// Submit/Await duration metrics deterministically instead of racing real
// time. Grounded on the same pattern pkg/upstream.Upstream uses for its
// own clock field.
func newWithClock[I any, O any](name string, cfg Config, callback UpdateCallback[I, O], c clock.Clock) (*UpdateQueue[I, O], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	metrics := newQueueMetrics(name)
	b := newBacklog[I, O](cfg.Capacity)

	q := &UpdateQueue[I, O]{
		name:    name,
		cfg:     cfg,
		backlog: b,
		metrics: metrics,
		cancel:  cancel,
		clock:   c,
	}
	q.pool = startWorkerPool(ctx, name, cfg.WorkerCount, b, callback, metrics)

	log.L().Info("dictqueue: queue started",
		zap.String("dictionary", name),
		zap.Int("capacity", cfg.Capacity),
		zap.Int("worker-count", cfg.WorkerCount))
	return q, nil
}

// Submit admits unit into the backlog, blocking for at most the queue's
// configured PushTimeout while a slot becomes free. It returns
// ErrQueueFinished if Stop has already been called, or ErrPushTimedOut if
// no slot became free in time.
func (q *UpdateQueue[I, O]) Submit(unit *UpdateUnit[I, O]) error {
	start := q.clock.Now()
	if q.finished.Load() {
		q.metrics.submitDuration.WithLabelValues("finished").Observe(q.clock.Since(start).Seconds())
		return dicterrors.ErrQueueFinished.GenWithStackByArgs(q.name)
	}

	if !q.backlog.tryAdmit(q.cfg.PushTimeout) {
		q.metrics.submitDuration.WithLabelValues("timeout").Observe(q.clock.Since(start).Seconds())
		return dicterrors.ErrPushTimedOut.GenWithStackByArgs(q.name, q.cfg.PushTimeout, q.backlog.size())
	}

	// A permit was acquired between the finished check above and here; if
	// Stop raced us and flipped finished in that window, put the permit
	// back and fail rather than enqueueing behind a torn-down pool.
	if q.finished.Load() {
		q.backlog.releasePermit()
		q.metrics.submitDuration.WithLabelValues("finished").Observe(q.clock.Since(start).Seconds())
		return dicterrors.ErrQueueFinished.GenWithStackByArgs(q.name)
	}

	q.enqueueOrRestorePermit(unit)
	q.metrics.backlogSize.Set(float64(q.backlog.size()))
	q.metrics.submitDuration.WithLabelValues("ok").Observe(q.clock.Since(start).Seconds())
	return nil
}

// enqueueOrRestorePermit performs the actual append, restoring the
// admission permit if it panics. Go's slice append under a plain mutex
// cannot realistically fail, but the safety net keeps every admitted
// permit matched by exactly one dequeue even under a future change to
// enqueue's implementation.
func (q *UpdateQueue[I, O]) enqueueOrRestorePermit(unit *UpdateUnit[I, O]) {
	committed := false
	defer func() {
		if r := recover(); r != nil && !committed {
			q.backlog.releasePermit()
			panic(r)
		}
	}()
	q.backlog.enqueue(unit)
	committed = true
}

// Await blocks until unit reaches a terminal state, ctx is cancelled, or
// the queue's configured QueryTimeout elapses, whichever happens first.
// On success it returns unit.Output(); on failure it returns a wrapped
// ErrUpdateFailed; on timeout it returns ErrQueryTimedOut.
func (q *UpdateQueue[I, O]) Await(ctx context.Context, unit *UpdateUnit[I, O]) (O, error) {
	start := q.clock.Now()
	waitCtx := ctx
	if q.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, q.cfg.QueryTimeout)
		defer cancel()
	}

	outcome, err := unit.Wait(waitCtx)
	var zero O
	switch outcome {
	case WaitDone:
		q.metrics.awaitDuration.WithLabelValues("ok").Observe(q.clock.Since(start).Seconds())
		return unit.Output(), nil
	case WaitFailed:
		q.metrics.awaitDuration.WithLabelValues("failed").Observe(q.clock.Since(start).Seconds())
		return zero, err
	default:
		q.metrics.awaitDuration.WithLabelValues("timeout").Observe(q.clock.Since(start).Seconds())
		return zero, dicterrors.ErrQueryTimedOut.GenWithStackByArgs(q.name, q.cfg.QueryTimeout)
	}
}

// Stop marks the queue finished, discards the backlog, signals every
// worker to stop picking up new units, and waits for them to finish. A
// callback already running when Stop is called is not
// cancelled and runs to completion; Stop returns only after every such
// callback has returned. Every unit still pending in the backlog at the
// moment Stop is called is discarded without ever reaching a callback;
// submitters blocked in Await on those units keep waiting until their
// own ctx or QueryTimeout fires. Calling Stop more than once returns
// ErrDoubleStop.
func (q *UpdateQueue[I, O]) Stop() error {
	if !q.stopped.CompareAndSwap(false, true) {
		return dicterrors.ErrDoubleStop.GenWithStackByArgs(q.name)
	}
	q.finished.Store(true)
	q.cancel()
	q.backlog.drainAndSignalAll()
	err := q.pool.join()
	log.L().Info("dictqueue: queue stopped", zap.String("dictionary", q.name))
	return err
}

// Size returns the number of units currently waiting in the backlog.
// Advisory only, per Open Question resolution: it is never used to gate
// synchronization decisions inside the queue itself.
func (q *UpdateQueue[I, O]) Size() int {
	return q.backlog.size()
}
