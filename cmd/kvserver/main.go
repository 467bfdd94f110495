// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// kvserver is the in-memory key-value server: a single-threaded data-plane
// event loop plus an ambient stack of logging, metrics, config hot-reload,
// audit fan-out, startup seed import and periodic stats export, each
// supervised on its own goroutine and never touching the keyspace directly.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/aristanetworks/glog"
	"github.com/aristanetworks/kvstore/internal/audit"
	"github.com/aristanetworks/kvstore/internal/config"
	"github.com/aristanetworks/kvstore/internal/hashtable"
	"github.com/aristanetworks/kvstore/internal/influxstats"
	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/aristanetworks/kvstore/internal/metrics"
	"github.com/aristanetworks/kvstore/internal/netloop"
	"github.com/aristanetworks/kvstore/internal/seed"
	"github.com/aristanetworks/kvstore/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags()
	flag.Parse()

	if err := cfg.LoadFile(); err != nil {
		glog.Fatalf("kvserver: failed to load config file: %v", err)
	}

	log := &logger.Glog{InfoLevel: glog.Level(cfg.LogVerbosity)}

	reg, promReg := metrics.NewRegistry()

	limits := hashtable.Limits{
		LoadFactor:   cfg.RehashLoadFactor,
		RehashBudget: cfg.MigrationStepBudget,
	}
	auditSink := buildAuditSink(cfg, log)
	state := store.NewWithLimits(log, reg, auditSink, limits)

	if cfg.SeedRedisAddr != "" {
		if err := seed.Import(cfg.SeedRedisAddr, state, log); err != nil {
			log.Errorf("kvserver: seed import failed: %v", err)
		}
	}

	loop, err := netloop.ListenWithLimit(cfg.Addr, log, cfg.MaxMessageBytes)
	if err != nil {
		glog.Fatalf("kvserver: failed to listen on %s: %v", cfg.Addr, err)
	}
	defer loop.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var g errgroup.Group

	g.Go(func() error {
		return loop.Run(state)
	})

	g.Go(func() error {
		return metrics.NewServer(cfg.MetricsAddr, promReg, log).Run()
	})

	done := make(chan struct{})
	defer close(done)
	if err := cfg.WatchFile(log, done, func() {
		state.SetAuditSink(buildAuditSink(cfg, log))
	}); err != nil {
		log.Errorf("kvserver: config watch failed: %v", err)
	}

	if cfg.InfluxAddr != "" {
		exporter, err := influxstats.New(cfg.InfluxAddr, cfg.InfluxDB, 30*time.Second, state, log)
		if err != nil {
			log.Errorf("kvserver: influx exporter setup failed: %v", err)
		} else {
			g.Go(func() error {
				return exporter.Run(ctx)
			})
		}
	}

	log.Infof("kvserver: listening on %s, metrics on %s", cfg.Addr, cfg.MetricsAddr)
	if err := g.Wait(); err != nil {
		glog.Fatalf("kvserver: fatal error: %v", err)
	}
}

func buildAuditSink(cfg *config.Config, log logger.Logger) audit.Sink {
	var sinks []audit.Sink
	if cfg.KafkaAddrs != "" {
		addrs := strings.Split(cfg.KafkaAddrs, ",")
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = "kvstore-audit"
		}
		sink, err := audit.NewKafkaSink(addrs, topic, nil)
		if err != nil {
			log.Errorf("kvserver: kafka audit sink setup failed: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.SplunkURLs != "" {
		sinks = append(sinks, audit.NewSplunkSink(cfg.SplunkURLs, cfg.SplunkToken, cfg.SplunkIndex))
	}
	return audit.Fan(sinks...)
}
