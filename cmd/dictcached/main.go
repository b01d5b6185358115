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

package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coredb-io/dictcache/pkg/dictcache"
	"github.com/coredb-io/dictcache/pkg/dictconfig"
	"github.com/coredb-io/dictcache/pkg/dictevents"
	"github.com/coredb-io/dictcache/pkg/dictqueue"
	chsource "github.com/coredb-io/dictcache/pkg/dictsource/clickhouse"
	"github.com/coredb-io/dictcache/pkg/dicterrors"
)

func main() {
	configPath := flag.String("config", os.Getenv("DICTCACHED_CONFIG"), "path to the TOML configuration file")
	flag.Parse()

	cfg := dictconfig.Default()
	if *configPath != "" {
		loaded, err := dictconfig.FromFile(*configPath)
		if err != nil {
			os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
			os.Exit(2)
		}
		cfg = loaded
	}

	if _, _, err := log.InitLogger(&log.Config{Level: cfg.Log.Level, File: log.FileLogConfig{Filename: cfg.Log.File}}); err != nil {
		os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	log.L().Info("dictcached: starting", zap.String("config", cfg.String()))

	loader, err := chsource.NewLoader(cfg.Source)
	if err != nil {
		log.L().Fatal("dictcached: failed to open source loader", zap.Error(err))
	}
	defer loader.Close()

	sink, err := dictevents.NewSink(cfg.Events)
	if err != nil {
		log.L().Fatal("dictcached: failed to open event sink", zap.Error(err))
	}
	defer sink.Close()

	queue, err := dictqueue.New[string, []byte](cfg.Dictionary, cfg.Queue, loader.Load)
	if err != nil {
		log.L().Fatal("dictcached: failed to start update queue", zap.Error(err))
	}

	cache, err := dictcache.New(cfg.Dictionary, cfg.Cache, queue, sink)
	if err != nil {
		log.L().Fatal("dictcached: failed to start cache", zap.Error(err))
	}
	defer cache.Close()

	registry := prometheus.NewRegistry()
	dictqueue.InitMetrics(registry)
	dictevents.InitMetrics(registry)

	gin.DefaultWriter = io.Discard
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, cache, registry)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.L().Info("dictcached: http server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.L().Error("dictcached: http server error", zap.Error(err))
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	log.L().Info("dictcached: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// registerRoutes wires the demo binary's HTTP surface: a single key
// lookup endpoint backed by the cache, and a Prometheus exposition
// endpoint.
func registerRoutes(router *gin.Engine, cache *dictcache.Cache, registry *prometheus.Registry) {
	router.GET("/dict/:key", func(c *gin.Context) {
		key := c.Param("key")
		value, err := cache.Get(c.Request.Context(), key)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", value)
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// statusForError maps the queue's typed error taxonomy onto HTTP status
// codes: a caller-visible signal of whether the failure is retryable
// (503), permanent for this key (502), or something else (500).
func statusForError(err error) int {
	switch {
	case errors.ErrorEqual(err, dicterrors.ErrQueueFinished), errors.ErrorEqual(err, dicterrors.ErrQueryTimedOut):
		return http.StatusServiceUnavailable
	case errors.ErrorEqual(err, dicterrors.ErrUpdateFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
