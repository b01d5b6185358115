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

	"github.com/coredb-io/dictcache/pkg/syncutil"
)

// WaitOutcome is the terminal state observed by a submitter's Wait call.
type WaitOutcome int

const (
	// WaitDone means the callback completed successfully; Output() is safe
	// to read.
	WaitDone WaitOutcome = iota
	// WaitFailed means the callback raised; the returned error is the
	// captured failure.
	WaitFailed
	// WaitTimedOut means the deadline elapsed before the unit reached a
	// terminal state. The unit may still complete later; nobody is
	// listening any more.
	WaitTimedOut
)

// UpdateUnit is a single pending refresh request. It carries an immutable
// input payload, output slots written exactly once by whichever worker
// claims it, and its own completion signal so that its submitter can be
// woken without disturbing any other in-flight unit.
//
// Ownership is shared between the submitter that constructs it and the
// worker that eventually claims it: the submitter reads Input and,
// after Wait returns WaitDone, Output; the worker (and only the worker
// that dequeued this unit) writes Output via SetOutput and terminates the
// unit's lifecycle via MarkDone or MarkFailed. Neither party needs to
// coordinate disposal — the unit is simply garbage once both have let go
// of their reference.
type UpdateUnit[I any, O any] struct {
	input I

	mu      sync.Mutex
	cond    *syncutil.Cond
	output  O
	done    bool
	failure error
}

// NewUpdateUnit builds a pending unit carrying input. The unit is not
// enqueued anywhere yet; the caller still owns it exclusively until it is
// passed to UpdateQueue.Submit.
func NewUpdateUnit[I any, O any](input I) *UpdateUnit[I, O] {
	u := &UpdateUnit[I, O]{input: input}
	u.cond = syncutil.NewCond(&u.mu)
	return u
}

// Input returns the immutable request payload. Safe to call from any
// goroutine at any time; input is never mutated after construction.
func (u *UpdateUnit[I, O]) Input() I {
	return u.input
}

// SetOutput is called by the worker's UpdateCallback, and only by it,
// while it holds exclusive ownership of the unit's output slot — i.e.
// strictly before calling MarkDone. It must not be called after MarkDone
// or MarkFailed.
func (u *UpdateUnit[I, O]) SetOutput(output O) {
	u.output = output
}

// Output returns the value written by SetOutput. Only meaningful after
// Wait has returned WaitDone; the happens-before edge is established by
// the completion broadcast the worker issues from MarkDone.
func (u *UpdateUnit[I, O]) Output() O {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.output
}

// MarkDone is worker-only: it records successful completion and wakes
// every submitter waiting on this unit. It must never be called after
// MarkFailed, and it must never be called twice.
func (u *UpdateUnit[I, O]) MarkDone() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failure != nil || u.done {
		panic("dictqueue: MarkDone called on a unit that already completed")
	}
	u.done = true
	u.cond.Broadcast()
}

// MarkFailed is worker-only: it records the callback's failure and wakes
// every submitter waiting on this unit. failure is stored as is, and Wait
// hands that same value to the submitter's goroutine. The worker pool
// therefore never passes the callback's own error here: it passes a fresh
// ErrUpdateFailed that carries only the callback error's text.
func (u *UpdateUnit[I, O]) MarkFailed(failure error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done || u.failure != nil {
		panic("dictqueue: MarkFailed called on a unit that already completed")
	}
	u.failure = failure
	u.cond.Broadcast()
}

// Wait blocks until the unit reaches a terminal state or ctx is done,
// whichever happens first. It never rethrows a captured failure; it
// returns the error stored by MarkFailed, and UpdateQueue.Await returns
// that error to its caller (the worker pool has already wrapped the
// callback's failure into a typed UpdateFailed error).
func (u *UpdateUnit[I, O]) Wait(ctx context.Context) (WaitOutcome, error) {
	u.mu.Lock()
	for !u.done && u.failure == nil {
		if err := u.cond.WaitWithContext(ctx); err != nil {
			// syncutil.Cond.WaitWithContext does not re-lock on
			// cancellation; nothing left to unlock here.
			return WaitTimedOut, nil
		}
	}
	defer u.mu.Unlock()
	if u.done {
		return WaitDone, nil
	}
	return WaitFailed, u.failure
}
