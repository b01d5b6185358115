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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateUnitMarkDoneWakesWaiter(t *testing.T) {
	u := NewUpdateUnit[int, string](7)
	done := make(chan struct{})
	go func() {
		outcome, err := u.Wait(context.Background())
		require.Equal(t, WaitDone, outcome)
		require.NoError(t, err)
		require.Equal(t, "seven", u.Output())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	u.SetOutput("seven")
	u.MarkDone()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestUpdateUnitMarkFailedWakesWaiter(t *testing.T) {
	u := NewUpdateUnit[int, string](7)
	cause := errors.New("boom")
	done := make(chan struct{})
	go func() {
		outcome, err := u.Wait(context.Background())
		require.Equal(t, WaitFailed, outcome)
		require.Equal(t, cause, err)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	u.MarkFailed(cause)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestUpdateUnitWaitTimesOutWithoutCompletion(t *testing.T) {
	u := NewUpdateUnit[int, string](7)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome, err := u.Wait(ctx)
	require.Equal(t, WaitTimedOut, outcome)
	require.NoError(t, err)
}

func TestUpdateUnitDoubleMarkDonePanics(t *testing.T) {
	u := NewUpdateUnit[int, string](7)
	u.MarkDone()
	require.Panics(t, func() { u.MarkDone() })
}

func TestUpdateUnitMarkFailedAfterMarkDonePanics(t *testing.T) {
	u := NewUpdateUnit[int, string](7)
	u.MarkDone()
	require.Panics(t, func() { u.MarkFailed(errors.New("too late")) })
}
