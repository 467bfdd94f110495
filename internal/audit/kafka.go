// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package audit

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/aristanetworks/glog"
)

// KafkaSink publishes Events as JSON-encoded messages to one Kafka topic
// using an async producer. Construction starts background goroutines that
// drain the producer's success/error channels; Close must be called to
// release them.
type KafkaSink struct {
	topic    string
	producer sarama.AsyncProducer
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewKafkaSink dials addrs and returns a sink that publishes to topic. cfg
// may be nil, in which case sensible defaults are used.
func NewKafkaSink(addrs []string, topic string, cfg *sarama.Config) (*KafkaSink, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		hostname, err := os.Hostname()
		if err != nil {
			hostname = ""
		}
		cfg.ClientID = hostname
		cfg.Producer.Compression = sarama.CompressionSnappy
		cfg.Producer.Return.Successes = true
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	}

	p, err := sarama.NewAsyncProducer(addrs, cfg)
	if err != nil {
		return nil, err
	}
	k := &KafkaSink{
		topic:    topic,
		producer: p,
		done:     make(chan struct{}),
	}
	k.wg.Add(2)
	go k.handleSuccesses()
	go k.handleErrors()
	return k, nil
}

// Publish enqueues e for async delivery. It returns as soon as the message
// is handed to the producer's input channel, never waiting for the broker;
// if the input channel is full the event is dropped and logged.
func (k *KafkaSink) Publish(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Key),
		Value: sarama.ByteEncoder(body),
	}
	select {
	case k.producer.Input() <- msg:
		return nil
	case <-k.done:
		return nil
	default:
		glog.Errorf("audit: kafka input full, dropping event for key %q", e.Key)
		return nil
	}
}

func (k *KafkaSink) handleSuccesses() {
	defer k.wg.Done()
	for range k.producer.Successes() {
	}
}

func (k *KafkaSink) handleErrors() {
	defer k.wg.Done()
	for err := range k.producer.Errors() {
		glog.Errorf("audit: kafka publish failed: %v", err)
	}
}

// Close stops accepting new events and waits for the drain goroutines.
func (k *KafkaSink) Close() {
	close(k.done)
	k.producer.Close()
	k.wg.Wait()
}
