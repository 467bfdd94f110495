// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package influxstats periodically snapshots server counters and pushes
// them to InfluxDB as a single point per interval, modeled on the teacher's
// influxlib connection/write pattern.
package influxstats

import (
	"context"
	"fmt"
	"time"

	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/aristanetworks/kvstore/internal/store"
	influxdb "github.com/influxdata/influxdb1-client/v2"
)

// Exporter owns the InfluxDB client and the ticker that drives periodic
// writes.
type Exporter struct {
	client   influxdb.Client
	database string
	interval time.Duration
	state    *store.ServerState
	log      logger.Logger
}

// New connects to the InfluxDB HTTP endpoint at addr. database need not
// already exist; InfluxDB creates it implicitly on first write in the
// common configuration.
func New(addr, database string, interval time.Duration, state *store.ServerState, log logger.Logger) (*Exporter, error) {
	client, err := influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:    addr,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("influxstats: connect to %s: %w", addr, err)
	}
	return &Exporter{client: client, database: database, interval: interval, state: state, log: log}, nil
}

// Run writes one kvstore_stats point every interval until ctx is done.
func (e *Exporter) Run(ctx context.Context) error {
	defer e.client.Close()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.writePoint(); err != nil && e.log != nil {
				e.log.Errorf("influxstats: write failed: %v", err)
			}
		}
	}
}

func (e *Exporter) writePoint() error {
	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  e.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"keyspace_size": int64(e.state.KeyspaceSize()),
	}
	pt, err := influxdb.NewPoint("kvstore_stats", nil, fields, time.Now())
	if err != nil {
		return err
	}
	bp.AddPoint(pt)
	return e.client.Write(bp)
}
