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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func histogramSampleCount(t *testing.T, name string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, submitDurationHistogram.WithLabelValues(name, "ok").(prometheus.Metric).Write(m))
	return m.GetHistogram().GetSampleCount()
}

// TestUpdateQueueSubmitObservesInjectedClockDuration verifies that Submit
// measures its duration through the queue's clock field rather than
// calling time.Now directly, so that a mock clock advanced entirely
// deterministically still produces exactly one observation per call.
func TestUpdateQueueSubmitObservesInjectedClockDuration(t *testing.T) {
	mockClock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	q, err := newWithClock[int, int]("clock-test", cfg, echoCallback, mockClock)
	require.NoError(t, err)
	defer q.Stop()

	before := histogramSampleCount(t, "clock-test")
	mockClock.Add(5 * time.Millisecond)
	unit := NewUpdateUnit[int, int](1)
	require.NoError(t, q.Submit(unit))
	after := histogramSampleCount(t, "clock-test")

	require.Equal(t, before+1, after)
}
