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
	"context"
	"database/sql"
	"fmt"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/coredb-io/dictcache/pkg/dictqueue"
	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

// conn is the slice of driver.Conn that Loader depends on, so tests can
// substitute a fake without a live ClickHouse server.
type conn interface {
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Ping(ctx context.Context) error
	Close() error
}

// Loader resolves the key carried by an UpdateUnit against a single
// ClickHouse table. It is stateless across calls beyond the pooled
// connection: Load may be invoked concurrently by any number of worker
// goroutines belonging to the same UpdateQueue.
type Loader struct {
	cfg   Config
	conn  conn
	query string
}

// NewLoader opens a pooled ClickHouse connection per cfg and verifies it
// with a Ping before returning.
func NewLoader(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := chdriver.Open(&chdriver.Options{
		Addr: cfg.Hosts,
		Auth: chdriver.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, dicterrors.ErrSourceUnavailable.GenWithStackByArgs(1, err.Error())
	}
	if err := c.Ping(context.Background()); err != nil {
		c.Close()
		return nil, dicterrors.ErrSourceUnavailable.GenWithStackByArgs(1, err.Error())
	}

	return newWithConn(cfg, c), nil
}

func newWithConn(cfg Config, c conn) *Loader {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", cfg.ValueColumn, cfg.Table, cfg.KeyColumn)
	return &Loader{cfg: cfg, conn: c, query: query}
}

// Load is the dictqueue.UpdateCallback body: it resolves unit.Input()
// against the configured table and writes the raw column value to the
// unit's output. A row that does not exist writes a nil output rather
// than raising; only a persistent connection or query error raises
// ErrSourceUnavailable, after cfg.MaxAttempts attempts in all (the first
// try plus cfg.MaxAttempts-1 retries with exponential backoff).
func (l *Loader) Load(ctx context.Context, unit *dictqueue.UpdateUnit[string, []byte]) error {
	key := unit.Input()

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = l.cfg.InitialBackoff
	backoffPolicy.MaxInterval = l.cfg.MaxBackoff
	var bounded backoff.BackOff = backoff.WithMaxRetries(backoffPolicy, uint64(l.cfg.MaxAttempts-1))
	bounded = backoff.WithContext(bounded, ctx)

	var value []byte
	var found bool
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var raw string
		scanErr := l.conn.QueryRow(ctx, l.query, key).Scan(&raw)
		if scanErr == nil {
			value, found = []byte(raw), true
			return nil
		}
		if scanErr == sql.ErrNoRows {
			found = false
			return nil
		}
		log.L().Warn("dictsource/clickhouse: query attempt failed",
			zap.String("key", key), zap.Int("attempt", attempt), zap.Error(scanErr))
		return scanErr
	}, bounded)
	if err != nil {
		return dicterrors.ErrSourceUnavailable.GenWithStackByArgs(attempt, err.Error())
	}

	if !found {
		unit.SetOutput(nil)
		return nil
	}
	unit.SetOutput(value)
	return nil
}

// Close closes the underlying ClickHouse connection.
func (l *Loader) Close() error {
	return l.conn.Close()
}
