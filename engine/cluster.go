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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// peerConnectedCount is the JSON shape returned by a peer appliance's
// ConnectedPVCountForAppliance endpoint (spec.md §4.E): total archived PVs
// and how many are currently disconnected, both serialized as strings by
// the source system.
type peerConnectedCount struct {
	Total        string `json:"total"`
	Disconnected string `json:"disconnected"`
}

// ClusterClient polls peer appliances for their disconnected-PV fraction so
// the disconnect monitor can gate metachannel startup cluster-wide
// (spec.md §4.D step 4, §4.E). A peer that cannot be reached is treated as
// "unknown", not as "over threshold" — spec.md §4.E requires failures be
// non-fatal.
type ClusterClient struct {
	logger        log.Logger
	metricsClient metrics.Client
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewClusterClient constructs a client rate-limited to requestsPerSecond
// outbound peer polls.
func NewClusterClient(logger log.Logger, metricsClient metrics.Client, requestsPerSecond float64) *ClusterClient {
	return &ClusterClient{
		logger:        logger,
		metricsClient: metricsClient,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// AllPeersUnderThreshold polls every peer appliance and reports whether
// every peer that answered is below MetachannelGatingThresholdPercent
// disconnected. A peer appliance that cannot be reached does not block the
// gate; only a peer that explicitly reports itself over threshold does
// (spec.md §4.D step 4, §4.E).
func (c *ClusterClient) AllPeersUnderThreshold(ctx context.Context, cs ConfigService) bool {
	for _, url := range cs.PeerApplianceURLs() {
		percent, ok := c.connectedPercentDisconnected(ctx, url)
		if !ok {
			continue
		}
		if percent >= MetachannelGatingThresholdPercent {
			c.logger.Info("cluster client: peer appliance over disconnect threshold",
				tag.ComponentClusterClient, tag.Appliance(url), tag.Value("disconnected-percent", percent))
			return false
		}
	}
	return true
}

// connectedPercentDisconnected issues a single rate-limited GET to the
// peer's ConnectedPVCountForAppliance endpoint and returns the percentage
// of PVs it reports disconnected. ok is false on any network, decode, or
// rate-limit wait error, which the caller treats as "peer unknown"
// (spec.md §4.E).
func (c *ClusterClient) connectedPercentDisconnected(ctx context.Context, applianceURL string) (float64, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, false
	}

	correlationID := uuid.New().String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, applianceURL+"/ConnectedPVCountForAppliance", nil)
	if err != nil {
		c.logger.Error("cluster client: could not build peer request",
			tag.ComponentClusterClient, tag.Appliance(applianceURL), tag.Error(err))
		return 0, false
	}
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metricsClient.IncCounter(metrics.ClusterPeerCallFailures)
		c.logger.Warn("cluster client: peer appliance unreachable",
			tag.ComponentClusterClient, tag.Appliance(applianceURL), tag.Value("correlation-id", correlationID), tag.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metricsClient.IncCounter(metrics.ClusterPeerCallFailures)
		c.logger.Warn("cluster client: peer appliance returned non-200",
			tag.ComponentClusterClient, tag.Appliance(applianceURL), tag.Count("status", resp.StatusCode))
		return 0, false
	}

	var payload peerConnectedCount
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metricsClient.IncCounter(metrics.ClusterPeerCallFailures)
		c.logger.Warn("cluster client: could not decode peer response",
			tag.ComponentClusterClient, tag.Appliance(applianceURL), tag.Error(err))
		return 0, false
	}

	total, err := strconv.ParseFloat(payload.Total, 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	disconnected, err := strconv.ParseFloat(payload.Disconnected, 64)
	if err != nil {
		return 0, false
	}

	return disconnected * 100.0 / total, true
}
