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
	"time"

	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// Config controls the shape and timeout behaviour of one UpdateQueue
// instance. It is intended to be embedded inside a larger TOML document by
// pkg/dictconfig; field names follow that package's tagging convention.
type Config struct {
	// Capacity bounds the number of units allowed to sit in the backlog at
	// once. Must be at least 1.
	Capacity int `toml:"capacity" json:"capacity"`
	// WorkerCount is the number of goroutines draining the backlog. Must be
	// at least 1.
	WorkerCount int `toml:"worker-count" json:"worker-count"`
	// PushTimeout bounds how long Submit will wait for admission before
	// returning PushTimedOut. Zero means Submit never blocks for
	// admission: it fails immediately if the backlog is full.
	PushTimeout time.Duration `toml:"push-timeout" json:"push-timeout"`
	// QueryTimeout bounds how long Await will wait for a submitted unit to
	// reach a terminal state before returning QueryTimedOut. Zero means no
	// deadline: Await blocks until the unit completes or its context is
	// cancelled.
	QueryTimeout time.Duration `toml:"query-timeout" json:"query-timeout"`
}

// DefaultConfig returns a reasonable starting point: a modestly sized
// backlog, four workers, and timeouts drawn from the values ClickHouse
// ships as defaults for cache dictionaries.
func DefaultConfig() Config {
	return Config{
		Capacity:     100000,
		WorkerCount:  4,
		PushTimeout:  10 * time.Second,
		QueryTimeout: 60 * time.Second,
	}
}

// Validate reports whether c describes a usable queue. Called once at
// construction time by New; never re-checked afterwards, since Capacity
// and WorkerCount are immutable for the lifetime of a queue.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("capacity must be at least 1")
	}
	if c.WorkerCount < 1 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("worker-count must be at least 1")
	}
	if c.PushTimeout < 0 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("push-timeout must not be negative")
	}
	if c.QueryTimeout < 0 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("query-timeout must not be negative")
	}
	return nil
}
