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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func echoCallback(ctx context.Context, unit *UpdateUnit[int, int]) error {
	unit.SetOutput(unit.Input() * 10)
	return nil
}

func slowCallback(delay time.Duration) UpdateCallback[int, int] {
	return func(ctx context.Context, unit *UpdateUnit[int, int]) error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		unit.SetOutput(unit.Input())
		return nil
	}
}

func TestUpdateQueueSubmitAwaitRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	q, err := New[int, int]("s1", cfg, echoCallback)
	require.NoError(t, err)
	defer q.Stop()

	unit := NewUpdateUnit[int, int](4)
	require.NoError(t, q.Submit(unit))
	out, err := q.Await(context.Background(), unit)
	require.NoError(t, err)
	require.Equal(t, 40, out)
}

func TestUpdateQueueConcurrentSubmitters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 4
	q, err := New[int, int]("s2", cfg, echoCallback)
	require.NoError(t, err)
	defer q.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unit := NewUpdateUnit[int, int](i)
			require.NoError(t, q.Submit(unit))
			out, err := q.Await(context.Background(), unit)
			require.NoError(t, err)
			require.Equal(t, i*10, out)
		}(i)
	}
	wg.Wait()
}

func TestUpdateQueueSubmitTimesOutWhenBacklogFull(t *testing.T) {
	cfg := Config{Capacity: 1, WorkerCount: 1, PushTimeout: 20 * time.Millisecond, QueryTimeout: time.Second}
	blocker := make(chan struct{})
	q, err := New[int, int]("s3", cfg, func(ctx context.Context, unit *UpdateUnit[int, int]) error {
		<-blocker
		unit.SetOutput(unit.Input())
		return nil
	})
	require.NoError(t, err)
	defer func() {
		close(blocker)
		q.Stop()
	}()

	first := NewUpdateUnit[int, int](1)
	require.NoError(t, q.Submit(first))

	time.Sleep(10 * time.Millisecond)
	second := NewUpdateUnit[int, int](2)
	require.NoError(t, q.Submit(second))

	third := NewUpdateUnit[int, int](3)
	err = q.Submit(third)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Timelimit")
}

func TestUpdateQueueAwaitSurfacesCallbackFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cause := errors.New("upstream exploded")
	q, err := New[int, int]("s4", cfg, func(ctx context.Context, unit *UpdateUnit[int, int]) error {
		return cause
	})
	require.NoError(t, err)
	defer q.Stop()

	unit := NewUpdateUnit[int, int](1)
	require.NoError(t, q.Submit(unit))
	_, err = q.Await(context.Background(), unit)
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream exploded")
}

func TestUpdateQueueAwaitTimesOut(t *testing.T) {
	cfg := Config{Capacity: 4, WorkerCount: 1, PushTimeout: time.Second, QueryTimeout: 20 * time.Millisecond}
	q, err := New[int, int]("s5", cfg, slowCallback(200*time.Millisecond))
	require.NoError(t, err)
	defer q.Stop()

	unit := NewUpdateUnit[int, int](1)
	require.NoError(t, q.Submit(unit))
	_, err = q.Await(context.Background(), unit)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout exceeded")
}

func TestUpdateQueueStopWaitsForInFlightCallbackToComplete(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	started := make(chan struct{})
	var sawCancellation bool
	q, err := New[int, int]("s7", cfg, func(ctx context.Context, unit *UpdateUnit[int, int]) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		sawCancellation = ctx.Err() != nil
		unit.SetOutput(unit.Input())
		return nil
	})
	require.NoError(t, err)

	unit := NewUpdateUnit[int, int](1)
	require.NoError(t, q.Submit(unit))
	<-started

	require.NoError(t, q.Stop())
	require.False(t, sawCancellation, "Stop must not cancel an already-running callback")

	out, err := q.Await(context.Background(), unit)
	require.NoError(t, err)
	require.Equal(t, 1, out)
}

func TestUpdateQueueStopRejectsFurtherSubmits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 2
	q, err := New[int, int]("s6", cfg, echoCallback)
	require.NoError(t, err)

	require.NoError(t, q.Stop())

	err = q.Submit(NewUpdateUnit[int, int](1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "already finished")

	err = q.Stop()
	require.Error(t, err)
	require.Contains(t, err.Error(), "already stopped")
}

func TestUpdateQueueSizeReflectsPendingUnits(t *testing.T) {
	cfg := Config{Capacity: 4, WorkerCount: 1, PushTimeout: time.Second, QueryTimeout: time.Second}
	blocker := make(chan struct{})
	q, err := New[int, int]("s-size", cfg, func(ctx context.Context, unit *UpdateUnit[int, int]) error {
		<-blocker
		unit.SetOutput(unit.Input())
		return nil
	})
	require.NoError(t, err)
	defer func() {
		close(blocker)
		q.Stop()
	}()

	require.NoError(t, q.Submit(NewUpdateUnit[int, int](1)))
	time.Sleep(10 * time.Millisecond) // let the worker claim the first unit
	require.NoError(t, q.Submit(NewUpdateUnit[int, int](2)))
	require.NoError(t, q.Submit(NewUpdateUnit[int, int](3)))
	require.Equal(t, 2, q.Size())
}

func TestUpdateQueueNewRejectsInvalidConfig(t *testing.T) {
	_, err := New[int, int]("bad", Config{Capacity: 0, WorkerCount: 1}, echoCallback)
	require.Error(t, err)
}
