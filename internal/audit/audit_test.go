// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package audit

import (
	"errors"
	"testing"
)

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Publish(e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestFanOutPublishesToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	sink := Fan(a, b)

	e := Event{Op: "set", Key: "k"}
	if err := sink.Publish(e); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out did not reach both sinks: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestFanOutWithNoSinksIsNop(t *testing.T) {
	sink := Fan()
	if err := sink.Publish(Event{Op: "set"}); err != nil {
		t.Fatalf("Publish on empty fan-out returned error: %v", err)
	}
}

func TestFanOutSkipsNilSinks(t *testing.T) {
	a := &recordingSink{}
	sink := Fan(nil, a)
	sink.Publish(Event{Op: "del"})
	if len(a.events) != 1 {
		t.Fatalf("nil sink in Fan() broke delivery to the live sink")
	}
}

func TestFanOutReturnsFirstError(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	sink := Fan(failing, ok)

	err := sink.Publish(Event{Op: "set"})
	if err == nil {
		t.Fatalf("Publish should surface a sink error")
	}
	if len(ok.events) != 1 {
		t.Fatalf("a failing sink should not stop fan-out to the others")
	}
}

func TestNopSinkNeverFails(t *testing.T) {
	if err := (NopSink{}).Publish(Event{}); err != nil {
		t.Fatalf("NopSink.Publish returned error: %v", err)
	}
}
