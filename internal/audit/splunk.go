// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package audit

import (
	"strings"
	"sync"

	"github.com/aristanetworks/glog"
	hec "github.com/aristanetworks/splunk-hec-go"
)

// splunkQueueSize bounds the events buffered ahead of the HEC writer
// goroutine. Once full, Publish drops and logs rather than waiting on the
// network, matching the Sink contract.
const splunkQueueSize = 1024

// SplunkSink publishes Events as HEC events to one or more Splunk indexers
// using a background writer goroutine, the same shape as KafkaSink: Publish
// only ever hands the event to an internal channel. Close must be called to
// release the goroutine.
type SplunkSink struct {
	cluster    hec.Cluster
	index      string
	sourceType string

	events chan *hec.Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSplunkSink builds a sink from a comma-separated list of HEC URLs and an
// auth token, and starts the background writer goroutine. index may be
// empty to use the token's default index.
func NewSplunkSink(urls, token, index string) *SplunkSink {
	cluster := hec.NewCluster(strings.Split(urls, ","), token)
	s := &SplunkSink{
		cluster:    cluster,
		index:      index,
		sourceType: "kvstore_audit",
		events:     make(chan *hec.Event, splunkQueueSize),
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Publish enqueues e for delivery by the writer goroutine. It returns as
// soon as the event is handed to the internal channel, never waiting on
// Splunk; if the channel is full the event is dropped and logged.
func (s *SplunkSink) Publish(e Event) error {
	event := &hec.Event{
		SourceType: &s.sourceType,
		Event:      e,
	}
	if s.index != "" {
		event.Index = &s.index
	}
	event.SetTime(e.At)
	select {
	case s.events <- event:
		return nil
	default:
		glog.Errorf("audit: splunk queue full, dropping event for key %q", e.Key)
		return nil
	}
}

func (s *SplunkSink) run() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.events:
			if err := s.cluster.WriteEvent(event); err != nil {
				glog.Errorf("audit: splunk publish failed: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

// Close stops accepting new events and waits for the writer goroutine to
// drain what it already picked up.
func (s *SplunkSink) Close() {
	close(s.done)
	s.wg.Wait()
}
