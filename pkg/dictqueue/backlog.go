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
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// backlog is a bounded FIFO of pending update units. Admission and
// delivery are deliberately split across two different waits: a counting
// semaphore bounds how many units may be outstanding (admission), while a
// condition variable wakes workers when the queue transitions from empty
// to non-empty (delivery). Collapsing the two into a single condition
// would force submitters to poll the queue length to find out whether
// they may enqueue, losing the O(1) admission check.
//
// A permit is released on dequeue, not on callback completion: the
// backlog bounds queue *length*, not total in-flight work. A worker that
// has dequeued a unit and is still running its callback does not hold a
// permit — the next submitter may already have been admitted by the time
// that callback finishes.
type backlog[I any, O any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []*UpdateUnit[I, O]

	emptySlots *semaphore.Weighted
}

func newBacklog[I any, O any](capacity int) *backlog[I, O] {
	b := &backlog[I, O]{
		emptySlots: semaphore.NewWeighted(int64(capacity)),
	}
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// tryAdmit attempts to acquire one admission permit within timeout. A
// timeout of zero performs a non-blocking attempt: it succeeds only if a
// permit is immediately available. It never mutates the queue itself.
func (b *backlog[I, O]) tryAdmit(timeout time.Duration) bool {
	if timeout <= 0 {
		return b.emptySlots.TryAcquire(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return b.emptySlots.Acquire(ctx, 1) == nil
}

// releasePermit restores one admission permit without touching the queue.
// It exists so that a caller which acquired a permit via tryAdmit but
// then failed to enqueue (see UpdateQueue.Submit) can put the permit
// back, keeping queue length and free permits in sync.
func (b *backlog[I, O]) releasePermit() {
	b.emptySlots.Release(1)
}

// enqueue appends unit to the tail of the queue and wakes exactly one
// waiting worker — one new unit needs at most one more worker running,
// and waking every idle worker to let all but one immediately re-block
// is the O(N) thundering-herd this split from drainAndSignalAll's
// Broadcast is meant to avoid. The caller must have just been admitted
// by tryAdmit; enqueue performs no admission check of its own.
func (b *backlog[I, O]) enqueue(unit *UpdateUnit[I, O]) {
	b.mu.Lock()
	b.queue = append(b.queue, unit)
	b.notEmpty.Signal()
	b.mu.Unlock()
}

// dequeueBlocking waits until the queue is non-empty or finished reports
// true, then pops and returns the oldest unit. It returns ok=false only
// when finished became true while the queue stayed empty — the signal a
// worker uses to exit its loop. There is no timeout on this wait: a
// worker with nothing to do is expected to block indefinitely until
// either work arrives or the queue is torn down.
func (b *backlog[I, O]) dequeueBlocking(finished func() bool) (unit *UpdateUnit[I, O], ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 && !finished() {
		b.notEmpty.Wait()
	}
	if len(b.queue) == 0 {
		return nil, false
	}
	unit, b.queue = b.queue[0], b.queue[1:]
	b.emptySlots.Release(1)
	return unit, true
}

// drainAndSignalAll discards every pending unit and wakes every worker
// blocked in dequeueBlocking so each can observe the finished flag. Used
// only by UpdateQueue.Stop.
func (b *backlog[I, O]) drainAndSignalAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.notEmpty.Broadcast()
}

// size returns the current backlog length. Advisory only: nothing
// synchronizes on the value returned, and by the time the caller acts on
// it, it may already be stale.
func (b *backlog[I, O]) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
