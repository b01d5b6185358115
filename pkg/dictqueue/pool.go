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
	"fmt"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// UpdateCallback performs the actual refresh work for one unit: it reads
// unit.Input(), does whatever is required to produce a fresh value, and
// either records the result with unit.SetOutput before returning nil, or
// returns a non-nil error describing why the refresh could not be
// completed. It must not call unit.MarkDone or unit.MarkFailed itself —
// the worker pool does that once the callback returns, so that a panic
// inside the callback cannot leave the unit's completion state
// inconsistent.
type UpdateCallback[I any, O any] func(ctx context.Context, unit *UpdateUnit[I, O]) error

// workerPool runs workerCount goroutines, each pulling units off backlog
// and running callback against them until told to stop. It is unexported:
// callers only ever see it through UpdateQueue.
type workerPool[I any, O any] struct {
	name     string
	backlog  *backlog[I, O]
	callback UpdateCallback[I, O]
	metrics  *queueMetrics

	group    *errgroup.Group
	groupCtx context.Context
}

func startWorkerPool[I any, O any](
	ctx context.Context,
	name string,
	workerCount int,
	b *backlog[I, O],
	callback UpdateCallback[I, O],
	metrics *queueMetrics,
) *workerPool[I, O] {
	group, groupCtx := errgroup.WithContext(ctx)
	p := &workerPool[I, O]{
		name:     name,
		backlog:  b,
		callback: callback,
		metrics:  metrics,
		group:    group,
		groupCtx: groupCtx,
	}
	for i := 0; i < workerCount; i++ {
		p.group.Go(p.run)
	}
	return p
}

// run is the body of a single worker goroutine. It drains units from the
// backlog until dequeueBlocking reports the queue finished, applying the
// callback to each and always driving the unit to a terminal state
// regardless of whether the callback panics, errors, or succeeds.
func (p *workerPool[I, O]) run() error {
	for {
		unit, ok := p.backlog.dequeueBlocking(func() bool {
			return p.groupCtx.Err() != nil
		})
		if !ok {
			return nil
		}
		p.metrics.backlogSize.Set(float64(p.backlog.size()))
		p.metrics.workersBusy.Inc()
		p.runOne(unit)
		p.metrics.workersBusy.Dec()
	}
}

// runOne applies the callback to unit and terminates it, converting a
// callback panic into a captured UpdateFailed error rather than letting it
// take down the worker goroutine. A single misbehaving source lookup must
// not stop every other unit already queued behind it from ever completing.
//
// The callback runs against context.Background(), never p.groupCtx: once a
// unit has been dequeued, Stop must let its callback run to completion
// rather than aborting it, so the pool's own shutdown signal must not
// reach into an in-flight callback invocation.
func (p *workerPool[I, O]) runOne(unit *UpdateUnit[I, O]) {
	var callbackErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callbackErr = fmt.Errorf("panic in update callback: %v", r)
			}
		}()
		callbackErr = p.callback(context.Background(), unit)
	}()

	if callbackErr != nil {
		log.L().Warn("dictqueue: update callback failed",
			zap.String("dictionary", p.name),
			zap.Error(callbackErr))
		unit.MarkFailed(dicterrors.ErrUpdateFailed.GenWithStackByArgs(p.name, callbackErr.Error()))
		return
	}
	unit.MarkDone()
}

// join waits for every worker goroutine to return. It is only called
// after the backlog has been drained and every worker has been signalled,
// so it does not itself trigger shutdown.
func (p *workerPool[I, O]) join() error {
	return p.group.Wait()
}
