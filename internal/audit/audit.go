// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package audit fans out best-effort notifications of committed keyspace
// mutations to external sinks (Kafka, Splunk). Publication never blocks or
// fails command execution: the mutation has already committed in memory
// regardless of whether it is ever audited.
package audit

import "time"

// Event describes one committed mutation.
type Event struct {
	Op    string // "set", "del", "sadd", "srem"
	Key   string
	Name  string   // sorted-set member name, empty for plain string ops
	Score *float64 // sorted-set score, nil for plain string ops
	At    time.Time
}

// Sink publishes Events to some external system. Publish must not block
// past handing the event to an internal queue; implementations that can't
// keep up drop and log rather than apply backpressure to the caller.
type Sink interface {
	Publish(Event) error
}

// multiSink fans an Event out to every configured Sink, collecting but not
// stopping on individual failures.
type multiSink struct {
	sinks []Sink
}

// Fan combines zero or more sinks into one, skipping nil sinks. With no
// non-nil sink it returns NopSink{}; with exactly one it returns that sink
// itself.
func Fan(sinks ...Sink) Sink {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return NopSink{}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &multiSink{sinks: live}
}

func (m *multiSink) Publish(e Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Publish(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopSink discards every event. It is the default when no audit endpoint is
// configured.
type NopSink struct{}

func (NopSink) Publish(Event) error { return nil }
