// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"sync/atomic"
	"time"

	"github.com/aristanetworks/kvstore/internal/audit"
	"github.com/aristanetworks/kvstore/internal/hashtable"
	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/aristanetworks/kvstore/internal/metrics"
	"golang.org/x/exp/slices"
)

// ServerState is the explicit, non-global owner of the keyspace: no
// package-level singleton backs it, per the design note against hidden
// global state. The connection loop and command executor both take a
// *ServerState explicitly.
type ServerState struct {
	keyspace *hashtable.Map[string, *entry]
	limits   hashtable.Limits
	Logger   logger.Logger
	Metrics  *metrics.Registry

	// audit is swapped by the config watcher goroutine on reload, so it is
	// held behind an atomic.Value rather than accessed as a plain field:
	// it is the one piece of ServerState touched from outside the event
	// loop goroutine.
	audit atomic.Value // audit.Sink
}

// New creates an empty ServerState using hashtable.DefaultLimits. metrics
// and auditSink may be nil, in which case metric updates and audit
// publication are silently skipped.
func New(log logger.Logger, reg *metrics.Registry, auditSink audit.Sink) *ServerState {
	return NewWithLimits(log, reg, auditSink, hashtable.DefaultLimits())
}

// NewWithLimits creates an empty ServerState whose keyspace and every
// sorted set it creates migrate according to limits, e.g. one sourced from
// Config's structural, non-reloadable fields (spec §4.8).
func NewWithLimits(log logger.Logger, reg *metrics.Registry, auditSink audit.Sink, limits hashtable.Limits) *ServerState {
	if auditSink == nil {
		auditSink = audit.NopSink{}
	}
	s := &ServerState{
		keyspace: hashtable.NewWithLimits[string, *entry](hashtable.HashString,
			func(a, b string) bool { return a == b }, limits),
		limits:  limits,
		Logger:  log,
		Metrics: reg,
	}
	s.audit.Store(auditSink)
	return s
}

// SetAuditSink atomically swaps the audit sink, used by config hot-reload
// to pick up newly configured endpoints without touching the keyspace.
func (s *ServerState) SetAuditSink(sink audit.Sink) {
	if sink == nil {
		sink = audit.NopSink{}
	}
	s.audit.Store(sink)
}

// KeyspaceSize returns the number of entries currently stored, for metrics.
func (s *ServerState) KeyspaceSize() int {
	return s.keyspace.Size()
}

// HashMapStats returns the keyspace hash map's live sub-table sizes and
// migration cursor, for the gauges described in spec §4.9.
func (s *ServerState) HashMapStats() (bigger, smaller int, migrationCursor uint64) {
	return s.keyspace.BiggerSize(), s.keyspace.SmallerSize(), s.keyspace.MigrationCursor()
}

// SetString inserts or overwrites a STR entry unconditionally, bypassing
// type-mismatch checking. Used by the startup seed importer, which only
// ever deals in plain strings and runs before any client connects.
func (s *ServerState) SetString(key, value string) {
	if _, ok := s.keyspace.Lookup(key); ok {
		s.keyspace.Delete(key)
	}
	s.keyspace.Insert(key, &entry{typ: typeStr, str: value})
}

func (s *ServerState) sortedKeys() []string {
	keys := make([]string, 0, s.keyspace.Size())
	s.keyspace.ForEach(func(k string, _ *entry) bool {
		keys = append(keys, k)
		return true
	})
	slices.Sort(keys)
	return keys
}

// emitAudit publishes an AuditEvent for a command that actually mutated the
// keyspace. Read-only commands never call this.
func (s *ServerState) emitAudit(op, key, name string, score *float64) {
	sink := s.audit.Load().(audit.Sink)
	err := sink.Publish(audit.Event{Op: op, Key: key, Name: name, Score: score, At: time.Now()})
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if s.Logger != nil {
			s.Logger.Errorf("audit publish failed for %s %s: %v", op, key, err)
		}
	}
	if s.Metrics != nil {
		s.Metrics.AuditTotal.WithLabelValues("configured", outcome).Inc()
	}
}
