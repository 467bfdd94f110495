// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package metrics exposes the server's Prometheus counters/gauges and an
// embedded debug HTTP server, in the shape of the teacher's monitor package
// extended with a /metrics endpoint.
package metrics

import (
	_ "expvar" // recommended usage: registers /debug/vars
	"fmt"
	"net/http"
	_ "net/http/pprof" // recommended usage: registers /debug/pprof

	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/trace"
)

// Registry owns every Prometheus collector the server publishes.
type Registry struct {
	CommandsTotal *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	AuditTotal    *prometheus.CounterVec

	OpenConnections prometheus.Gauge
	KeyspaceSize    prometheus.Gauge
	BiggerSize      prometheus.Gauge
	SmallerSize     prometheus.Gauge
	MigrationCursor prometheus.Gauge
}

// NewRegistry creates and registers every collector against its own private
// prometheus.Registry, so repeated test construction never panics on
// duplicate registration.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	r := &Registry{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_commands_total",
			Help: "Commands dispatched, by command name.",
		}, []string{"command"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_errors_total",
			Help: "ERR replies sent, by error code.",
		}, []string{"code"}),
		AuditTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_audit_total",
			Help: "Audit publish attempts, by sink and outcome.",
		}, []string{"sink", "outcome"}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_open_connections",
			Help: "Currently open client connections.",
		}),
		KeyspaceSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_keyspace_size",
			Help: "Number of entries in the keyspace.",
		}),
		BiggerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_hashmap_bigger_size",
			Help: "Entries in the live (bigger) hash sub-table.",
		}),
		SmallerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_hashmap_smaller_size",
			Help: "Entries remaining in the migrating (smaller) hash sub-table.",
		}),
		MigrationCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_hashmap_migration_cursor",
			Help: "Current bucket index of an in-progress rehash migration.",
		}),
	}
	reg.MustRegister(
		r.CommandsTotal, r.ErrorsTotal, r.AuditTotal,
		r.OpenConnections, r.KeyspaceSize, r.BiggerSize, r.SmallerSize, r.MigrationCursor,
	)
	return r, reg
}

// Server serves /debug and /metrics on addr, distinct from the data-plane
// TCP listener.
type Server struct {
	addr string
	reg  *prometheus.Registry
	log  logger.Logger
}

// NewServer builds a Server bound to addr, exposing reg via /metrics.
func NewServer(addr string, reg *prometheus.Registry, log logger.Logger) *Server {
	return &Server{addr: addr, reg: reg, log: log}
}

func debugHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html>
<head><title>/debug</title></head>
<body>
<p>/debug</p>
<div><a href="/debug/vars">vars</a></div>
<div><a href="/debug/pprof">pprof</a></div>
<div><a href="/debug/requests">requests</a></div>
<div><a href="/metrics">metrics</a></div>
</body>
</html>
`)
}

// Run starts the HTTP server and blocks until it exits. Intended to be run
// on its own goroutine, supervised by an errgroup.
func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug", debugHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/requests", func(w http.ResponseWriter, r *http.Request) {
		trace.Render(w, r, false)
	})

	s.log.Infof("metrics server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

// CommandTrace starts a golang.org/x/net/trace event for one dispatched
// command, used to annotate /debug/requests.
func CommandTrace(command string) trace.Trace {
	return trace.New("kvstore.command", command)
}
