// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package messaging mirrors event-bus traffic across appliances in the
// cluster over Kafka, the optional cross-appliance fan-out path named in
// SPEC_FULL's DOMAIN STACK. The in-process dispatch in engine/eventbus.go
// remains the default and only required path; this package is consumed
// through the engine.Mirror interface and may be left nil.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"

	"github.com/epicsarchiver/engine"
)

// wireEvent is the JSON envelope an engine.Event is marshalled into before
// being produced to Kafka; PVName and Destination are kept as plain fields
// so a consumer on another appliance can filter without unmarshalling the
// opaque Payload.
type wireEvent struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	PVName      string `json:"pvName"`
	ExtraFields []string `json:"extraFields,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
}

// KafkaMirror publishes engine.Event values to a single Kafka topic shared
// by every appliance in the cluster, and implements engine.Mirror.
type KafkaMirror struct {
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaMirror constructs a synchronous producer against brokers.
func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka mirror: new producer: %w", err)
	}
	return &KafkaMirror{topic: topic, producer: producer}, nil
}

// Publish implements engine.Mirror by producing evt as a JSON message keyed
// by PV name, so all events for one PV land on the same partition and
// preserve per-PV ordering across appliances.
func (m *KafkaMirror) Publish(ctx context.Context, evt engine.Event) error {
	body, err := json.Marshal(wireEvent{
		Type:        evt.Type,
		Destination: evt.Destination,
		PVName:      evt.PVName,
		ExtraFields: evt.ExtraFields,
		Payload:     evt.Payload,
	})
	if err != nil {
		return fmt.Errorf("kafka mirror: marshal: %w", err)
	}

	_, _, err = m.producer.SendMessage(&sarama.ProducerMessage{
		Topic: m.topic,
		Key:   sarama.StringEncoder(evt.PVName),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("kafka mirror: send: %w", err)
	}
	return nil
}

// Close releases the underlying producer.
func (m *KafkaMirror) Close() error {
	return m.producer.Close()
}

// KafkaMirrorConsumer consumes mirrored events from peer appliances and
// re-publishes them onto the local EventBus, closing the loop so a
// StartArchivingPV posted on one appliance reaches every appliance's
// subscribers (spec.md §4.F).
type KafkaMirrorConsumer struct {
	consumer *cluster.Consumer
	bus      *engine.EventBus
}

// NewKafkaMirrorConsumer joins a consumer group reading topic from
// brokers, dispatching every decoded message onto bus.
func NewKafkaMirrorConsumer(brokers []string, topic, groupID string, bus *engine.EventBus) (*KafkaMirrorConsumer, error) {
	cfg := cluster.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Group.Return.Notifications = false

	consumer, err := cluster.NewConsumer(brokers, groupID, []string{topic}, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka mirror consumer: new consumer: %w", err)
	}
	return &KafkaMirrorConsumer{consumer: consumer, bus: bus}, nil
}

// Run dispatches messages onto bus until ctx is cancelled. Decode failures
// for a single message are dropped rather than stopping the consumer.
func (c *KafkaMirrorConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.consumer.Messages():
			if !ok {
				return
			}
			var decoded wireEvent
			if err := json.Unmarshal(msg.Value, &decoded); err != nil {
				c.consumer.MarkOffset(msg, "")
				continue
			}
			c.bus.Publish(ctx, engine.Event{
				Type:        decoded.Type,
				Destination: decoded.Destination,
				PVName:      decoded.PVName,
				ExtraFields: decoded.ExtraFields,
				Payload:     decoded.Payload,
			})
			c.consumer.MarkOffset(msg, "")
		}
	}
}

// Close leaves the consumer group.
func (c *KafkaMirrorConsumer) Close() error {
	return c.consumer.Close()
}
