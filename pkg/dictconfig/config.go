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

// Package dictconfig is the single TOML-decoded configuration tree for
// the demo binary, tying together the queue, cache, source, event sink
// and logging configuration of every other package.
package dictconfig

import (
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/coredb-io/dictcache/pkg/dictcache"
	"github.com/coredb-io/dictcache/pkg/dictevents"
	"github.com/coredb-io/dictcache/pkg/dictqueue"
	chsource "github.com/coredb-io/dictcache/pkg/dictsource/clickhouse"
	"github.com/coredb-io/dictcache/pkg/logutil"
)

// LogConfig controls the demo binary's structured logger.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// Config is the top-level configuration document, decoded from one TOML
// file with sections [queue], [cache], [source], [events], [log].
type Config struct {
	Dictionary string                `toml:"dictionary" json:"dictionary"`
	ListenAddr string                `toml:"listen-addr" json:"listen-addr"`
	Queue      dictqueue.Config      `toml:"queue" json:"queue"`
	Cache      dictcache.Config      `toml:"cache" json:"cache"`
	Source     chsource.Config       `toml:"source" json:"source"`
	Events     dictevents.Config     `toml:"events" json:"events"`
	Log        LogConfig             `toml:"log" json:"log"`
}

// Default returns a configuration whose collaborator sections come from
// each package's own DefaultConfig, so a caller only needs to override
// the fields their deployment actually differs on.
func Default() *Config {
	return &Config{
		Dictionary: "default",
		ListenAddr: "0.0.0.0:8080",
		Queue:      dictqueue.DefaultConfig(),
		Cache:      dictcache.DefaultConfig(),
		Source:     chsource.DefaultConfig(),
		Events:     dictevents.DefaultConfig(),
		Log:        LogConfig{Level: "info"},
	}
}

// FromFile loads a Config from a TOML file, starting from Default and
// overwriting whichever fields the file sets explicitly.
func FromFile(path string) (*Config, error) {
	cfg := Default()
	metaData, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := metaData.Undecoded(); len(undecoded) > 0 {
		log.L().Warn("dictconfig: ignoring unrecognised keys", zap.Any("keys", undecoded))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate delegates to every section's own Validate, so an invalid field
// is always attributed to the section that owns it.
func (c *Config) Validate() error {
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return nil
}

// String renders c as sensitive-scrubbed JSON, safe to write to a log
// line.
func (c *Config) String() string {
	raw, err := json.Marshal(c)
	if err != nil {
		log.L().Error("dictconfig: marshal to json failed", zap.Error(err))
		return ""
	}
	return logutil.HideSensitive(string(raw))
}
