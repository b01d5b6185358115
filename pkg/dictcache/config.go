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

package dictcache

import (
	"time"

	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// Config describes how to reach Redis and how long a freshly loaded entry
// stays valid before Get treats it as expired and triggers a refresh.
type Config struct {
	Addr     string `toml:"addr" json:"addr"`
	Password string `toml:"password" json:"password"`
	DB       int    `toml:"db" json:"db"`
	// DefaultTTL is applied to every entry written back after a
	// successful refresh. There is no per-key override: spec.md's
	// dictionary model has a single expiry policy per cache instance.
	DefaultTTL time.Duration `toml:"default-ttl" json:"default-ttl"`
}

// DefaultConfig returns a configuration pointing at a local Redis with a
// five minute entry lifetime.
func DefaultConfig() Config {
	return Config{
		Addr:       "127.0.0.1:6379",
		DB:         0,
		DefaultTTL: 5 * time.Minute,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("cache.addr must not be empty")
	}
	if c.DefaultTTL <= 0 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("cache.default-ttl must be positive")
	}
	return nil
}
