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

package dictevents

import "github.com/coredb-io/dictcache/pkg/dicterrors"

// Config describes the Kafka topic refresh events are published to and
// how many events may sit in the internal buffer before new ones are
// dropped.
type Config struct {
	Brokers    []string `toml:"brokers" json:"brokers"`
	Topic      string   `toml:"topic" json:"topic"`
	BufferSize int      `toml:"buffer-size" json:"buffer-size"`
}

// DefaultConfig returns a configuration with a 1024-event buffer.
func DefaultConfig() Config {
	return Config{
		Brokers:    []string{"127.0.0.1:9092"},
		Topic:      "dictcache-refresh-events",
		BufferSize: 1024,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("events.brokers must not be empty")
	}
	if c.Topic == "" {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("events.topic must not be empty")
	}
	if c.BufferSize < 1 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("events.buffer-size must be at least 1")
	}
	return nil
}
