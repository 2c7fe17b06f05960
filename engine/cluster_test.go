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

package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterClient_AllPeersUnderThreshold_NoPeers(t *testing.T) {
	c := NewClusterClient(noopLogger{}, noopMetrics{}, 100)
	cs := newFakeConfigService()
	assert.True(t, c.AllPeersUnderThreshold(context.Background(), cs))
}

func TestClusterClient_AllPeersUnderThreshold_UnreachablePeerIsIgnored(t *testing.T) {
	c := NewClusterClient(noopLogger{}, noopMetrics{}, 100)
	cs := newFakeConfigService()
	cs.peers = []string{"http://127.0.0.1:1"} // nothing listens here

	assert.True(t, c.AllPeersUnderThreshold(context.Background(), cs), "an unreachable peer must be treated as unknown, not as failing")
}

func TestClusterClient_AllPeersUnderThreshold_PeerOverThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":"200","disconnected":"20"}`)
	}))
	defer srv.Close()

	c := NewClusterClient(noopLogger{}, noopMetrics{}, 100)
	cs := newFakeConfigService()
	cs.peers = []string{srv.URL}

	assert.False(t, c.AllPeersUnderThreshold(context.Background(), cs))
}

func TestClusterClient_AllPeersUnderThreshold_PeerUnderThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":"200","disconnected":"1"}`)
	}))
	defer srv.Close()

	c := NewClusterClient(noopLogger{}, noopMetrics{}, 100)
	cs := newFakeConfigService()
	cs.peers = []string{srv.URL}

	assert.True(t, c.AllPeersUnderThreshold(context.Background(), cs))
}

func TestClusterClient_AllPeersUnderThreshold_MalformedResponseIsIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewClusterClient(noopLogger{}, noopMetrics{}, 100)
	cs := newFakeConfigService()
	cs.peers = []string{srv.URL}

	assert.True(t, c.AllPeersUnderThreshold(context.Background(), cs))
}
