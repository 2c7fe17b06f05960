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

package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicsarchiver/engine"
)

// TestWireEvent_PreservesEventFieldsAcrossTheWire guards the envelope
// contract that lets a peer appliance's KafkaMirrorConsumer rebuild an
// engine.Event identical to the one a KafkaMirror.Publish call marshalled,
// without needing a live broker to round-trip the bytes through.
func TestWireEvent_PreservesEventFieldsAcrossTheWire(t *testing.T) {
	evt := engine.Event{
		Type:        engine.EventStartArchivingPV,
		Destination: engine.DestinationAll,
		PVName:      "IOC1:PV1.HIHI",
		ExtraFields: []string{"HIHI"},
		Payload:     []byte(`{"threshold":42}`),
	}

	body, err := json.Marshal(wireEvent{
		Type:        evt.Type,
		Destination: evt.Destination,
		PVName:      evt.PVName,
		ExtraFields: evt.ExtraFields,
		Payload:     evt.Payload,
	})
	require.NoError(t, err)

	var decoded wireEvent
	require.NoError(t, json.Unmarshal(body, &decoded))

	rebuilt := engine.Event{
		Type:        decoded.Type,
		Destination: decoded.Destination,
		PVName:      decoded.PVName,
		ExtraFields: decoded.ExtraFields,
		Payload:     decoded.Payload,
	}
	assert.Equal(t, evt, rebuilt)
}

// TestWireEvent_MalformedPayloadFailsToDecode documents the failure mode
// KafkaMirrorConsumer.Run relies on to drop one bad message instead of
// stopping the whole consumer: decode errors are ordinary JSON errors.
func TestWireEvent_MalformedPayloadFailsToDecode(t *testing.T) {
	var decoded wireEvent
	err := json.Unmarshal([]byte("not-json"), &decoded)
	assert.Error(t, err)
}
