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

import "github.com/prometheus/client_golang/prometheus"

var (
	backlogSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dictcache",
		Subsystem: "queue",
		Name:      "backlog_size",
		Help:      "Number of update units currently waiting in the backlog.",
	}, []string{"dictionary"})

	workersBusyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dictcache",
		Subsystem: "queue",
		Name:      "workers_busy",
		Help:      "Number of worker goroutines currently executing an update callback.",
	}, []string{"dictionary"})

	submitDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dictcache",
		Subsystem: "queue",
		Name:      "submit_duration_seconds",
		Help:      "Time spent inside Submit, including any wait for admission.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"dictionary", "result"})

	awaitDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dictcache",
		Subsystem: "queue",
		Name:      "await_duration_seconds",
		Help:      "Time spent inside Await, including any wait for callback completion.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"dictionary", "result"})
)

// InitMetrics registers the queue's Prometheus collectors against
// registry. Callers embedding this package into a larger service call it
// once during startup, mirroring the registration entrypoints the rest of
// the pack's services expose.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(backlogSizeGauge)
	registry.MustRegister(workersBusyGauge)
	registry.MustRegister(submitDurationHistogram)
	registry.MustRegister(awaitDurationHistogram)
}

// queueMetrics binds the package-level collector vectors to one
// dictionary name, so call sites never repeat the label.
type queueMetrics struct {
	backlogSize     prometheus.Gauge
	workersBusy     prometheus.Gauge
	submitDuration  prometheus.ObserverVec
	awaitDuration   prometheus.ObserverVec
}

func newQueueMetrics(name string) *queueMetrics {
	return &queueMetrics{
		backlogSize:    backlogSizeGauge.WithLabelValues(name),
		workersBusy:    workersBusyGauge.WithLabelValues(name),
		submitDuration: submitDurationHistogram.MustCurryWith(prometheus.Labels{"dictionary": name}),
		awaitDuration:  awaitDurationHistogram.MustCurryWith(prometheus.Labels{"dictionary": name}),
	}
}
