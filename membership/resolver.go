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

// Package membership discovers the appliance cluster's peer set via
// ringpop-go gossip membership, mirroring the membershipResolver field held
// by resource.Impl in the teacher pack. A ConfigService implementation can
// back PeerApplianceURLs with it; the cmd/engine binary reads a static peer
// list from its config file instead.
package membership

import (
	"fmt"
	"sync"

	"github.com/uber/ringpop-go"
	"github.com/uber/ringpop-go/discovery/statichosts"
	"github.com/uber/tchannel-go"
)

// Resolver tracks the appliance cluster's peers via ringpop gossip
// membership. Each entry is a member's ringpop address (host:port) as
// GetReachableMembers reports it; no HTTP engine URL is registered with or
// looked up from the ring.
type Resolver struct {
	serviceName string
	ring        *ringpop.Ringpop
	channel     *tchannel.Channel

	mu    sync.RWMutex
	peers []string
}

// NewResolver constructs a Resolver for one appliance identified by
// identity, joining the ringpop cluster via the static seed host list.
// seedHosts are other appliances' ringpop bootstrap addresses (host:port).
func NewResolver(serviceName, identity string, ringpopListenAddr string, seedHosts []string) (*Resolver, error) {
	channel, err := tchannel.NewChannel(serviceName, nil)
	if err != nil {
		return nil, fmt.Errorf("membership resolver: new tchannel: %w", err)
	}
	if err := channel.ListenAndServe(ringpopListenAddr); err != nil {
		return nil, fmt.Errorf("membership resolver: listen: %w", err)
	}

	ring, err := ringpop.New(serviceName,
		ringpop.Identity(identity),
		ringpop.Channel(channel),
	)
	if err != nil {
		return nil, fmt.Errorf("membership resolver: new ringpop: %w", err)
	}

	bootstrapOpts := &ringpop.BootstrapOptions{
		DiscoverProvider: statichosts.New(seedHosts...),
	}
	if _, err := ring.Bootstrap(bootstrapOpts); err != nil {
		return nil, fmt.Errorf("membership resolver: bootstrap: %w", err)
	}

	r := &Resolver{serviceName: serviceName, ring: ring, channel: channel}
	r.refresh()
	return r, nil
}

// refresh recomputes the peer list from the current ringpop membership
// snapshot, excluding this node's own identity.
func (r *Resolver) refresh() {
	members, err := r.ring.GetReachableMembers()
	if err != nil {
		return
	}
	self, err := r.ring.WhoAmI()
	if err != nil {
		return
	}
	peers := make([]string, 0, len(members))
	for _, m := range members {
		if m != self {
			peers = append(peers, m)
		}
	}
	r.mu.Lock()
	r.peers = peers
	r.mu.Unlock()
}

// PeerApplianceURLs returns the last-known set of peer ringpop addresses. Callers
// (ConfigService implementations) should call Refresh periodically or on a
// ringpop membership-change event; this method itself never blocks on
// network I/O.
func (r *Resolver) PeerApplianceURLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.peers))
	copy(out, r.peers)
	return out
}

// Refresh re-polls ringpop membership. Exposed for a caller to invoke from
// its own membership-change subscription or a periodic ticker.
func (r *Resolver) Refresh() {
	r.refresh()
}

// Close leaves the ringpop ring and shuts down the tchannel.
func (r *Resolver) Close() {
	r.ring.Destroy()
	r.channel.Close()
}
