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

package clickhouse

import (
	"time"

	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// Config describes the ClickHouse connection and the table this loader
// resolves keys against.
type Config struct {
	Hosts       []string      `toml:"hosts" json:"hosts"`
	Database    string        `toml:"database" json:"database"`
	Username    string        `toml:"username" json:"username"`
	Password    string        `toml:"password" json:"password"`
	DialTimeout time.Duration `toml:"dial-timeout" json:"dial-timeout"`

	// Table is queried as `SELECT <ValueColumn> FROM <Table> WHERE
	// <KeyColumn> = ?`. Both column names are configurable so the same
	// loader implementation can front any single-key-lookup table.
	Table       string `toml:"table" json:"table"`
	KeyColumn   string `toml:"key-column" json:"key-column"`
	ValueColumn string `toml:"value-column" json:"value-column"`

	// MaxAttempts bounds how many times Load runs the query, the first
	// try included, before it raises ErrSourceUnavailable.
	MaxAttempts int `toml:"max-attempts" json:"max-attempts"`
	// InitialBackoff and MaxBackoff bound the exponential backoff applied
	// between attempts.
	InitialBackoff time.Duration `toml:"initial-backoff" json:"initial-backoff"`
	MaxBackoff     time.Duration `toml:"max-backoff" json:"max-backoff"`
}

// DefaultConfig returns a configuration with a five-attempt retry budget
// and a ten-second dial timeout.
func DefaultConfig() Config {
	return Config{
		Hosts:          []string{"127.0.0.1:9000"},
		Database:       "default",
		DialTimeout:    10 * time.Second,
		Table:          "dictionary",
		KeyColumn:      "key",
		ValueColumn:    "value",
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if len(c.Hosts) == 0 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("source.hosts must not be empty")
	}
	if c.Table == "" {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("source.table must not be empty")
	}
	if c.KeyColumn == "" || c.ValueColumn == "" {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("source.key-column and source.value-column must not be empty")
	}
	if c.MaxAttempts < 1 {
		return dicterrors.ErrInvalidConfig.GenWithStackByArgs("source.max-attempts must be at least 1")
	}
	return nil
}
