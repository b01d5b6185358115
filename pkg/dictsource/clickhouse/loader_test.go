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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"

	"github.com/coredb-io/dictcache/pkg/dictqueue"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

func (r fakeRow) ScanStruct(dest any) error { return nil }
func (r fakeRow) Err() error                { return r.err }

type fakeConn struct {
	rows        []fakeRow
	call        int32
	pingErr     error
	closeCalled bool
}

func (c *fakeConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	i := atomic.AddInt32(&c.call, 1) - 1
	if int(i) >= len(c.rows) {
		return fakeRow{err: errors.New("fakeConn: no more canned rows")}
	}
	return c.rows[i]
}

func (c *fakeConn) Ping(ctx context.Context) error { return c.pingErr }
func (c *fakeConn) Close() error                   { c.closeCalled = true; return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Hosts = []string{"127.0.0.1:9000"}
	cfg.Table = "dict_table"
	cfg.MaxAttempts = 3
	return cfg
}

func TestLoaderLoadWritesFoundValue(t *testing.T) {
	fc := &fakeConn{rows: []fakeRow{{value: "hello"}}}
	l := newWithConn(testConfig(), fc)

	unit := dictqueue.NewUpdateUnit[string, []byte]("k1")
	require.NoError(t, l.Load(context.Background(), unit))
	require.Equal(t, "hello", string(unit.Output()))
}

func TestLoaderLoadWritesNilOutputOnNotFound(t *testing.T) {
	fc := &fakeConn{rows: []fakeRow{{err: sql.ErrNoRows}}}
	l := newWithConn(testConfig(), fc)

	unit := dictqueue.NewUpdateUnit[string, []byte]("missing")
	require.NoError(t, l.Load(context.Background(), unit))
	require.Nil(t, unit.Output())
}

func TestLoaderLoadRetriesTransientErrorsThenSucceeds(t *testing.T) {
	fc := &fakeConn{rows: []fakeRow{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{value: "recovered"},
	}}
	cfg := testConfig()
	cfg.InitialBackoff = 0
	l := newWithConn(cfg, fc)

	unit := dictqueue.NewUpdateUnit[string, []byte]("k2")
	require.NoError(t, l.Load(context.Background(), unit))
	require.Equal(t, "recovered", string(unit.Output()))
	require.Equal(t, int32(3), atomic.LoadInt32(&fc.call))
}

func TestLoaderLoadGivesUpAfterMaxAttempts(t *testing.T) {
	fc := &fakeConn{rows: []fakeRow{
		{err: errors.New("down")},
		{err: errors.New("down")},
		{err: errors.New("down")},
	}}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = 0
	l := newWithConn(cfg, fc)

	unit := dictqueue.NewUpdateUnit[string, []byte]("k3")
	err := l.Load(context.Background(), unit)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unavailable")
	require.Equal(t, int32(3), atomic.LoadInt32(&fc.call))
}
