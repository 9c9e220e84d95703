// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainindex

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes limits responses to 64 MiB. Pool histories can be long.
const maxResponseBytes = 64 << 20

const connectionStatusConnected = "connected"

// Client is an HTTP client for the Kupo REST API
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Kupo client for the given base URL
// (e.g. "http://localhost:1442")
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "chainindex")
	return c
}

// FindOutput corresponds to GET /matches/{index}@{txHash}
func (c *Client) FindOutput(
	ctx context.Context,
	txHash string,
	index uint32,
) (*Output, error) {
	reqURL := fmt.Sprintf(
		"%s/matches/%d@%s",
		c.baseURL,
		index,
		url.PathEscape(txHash),
	)
	ref := OutputRef(txHash, index)
	var outputs []Output
	if err := c.getJSON(ctx, reqURL, &outputs); err != nil {
		return nil, fmt.Errorf("finding output %s: %w", ref, err)
	}
	for i := range outputs {
		if strings.EqualFold(outputs[i].Ref(), ref) {
			return &outputs[i], nil
		}
	}
	return nil, fmt.Errorf("output %s: %w", ref, ErrNotFound)
}

// FindOutputsAtScript corresponds to GET /matches/{scriptHash}/*
func (c *Client) FindOutputsAtScript(
	ctx context.Context,
	scriptHash string,
	policyId string,
	assetName string,
) ([]Output, error) {
	params := url.Values{}
	params.Set("order", "most_recent_first")
	if policyId != "" {
		params.Set("policy_id", policyId)
		if assetName != "" {
			params.Set("asset_name", assetName)
		}
	}
	reqURL := fmt.Sprintf(
		"%s/matches/%s/*?%s",
		c.baseURL,
		url.PathEscape(scriptHash),
		params.Encode(),
	)
	var outputs []Output
	if err := c.getJSON(ctx, reqURL, &outputs); err != nil {
		return nil, fmt.Errorf("finding outputs at script %s: %w", scriptHash, err)
	}
	return outputs, nil
}

// FindDatum corresponds to GET /datums/{datumHash}
func (c *Client) FindDatum(ctx context.Context, datumHash string) ([]byte, error) {
	reqURL := c.baseURL + "/datums/" + url.PathEscape(datumHash)
	var resp *struct {
		Datum string `json:"datum"`
	}
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("finding datum %s: %w", datumHash, err)
	}
	if resp == nil || resp.Datum == "" {
		return nil, fmt.Errorf("datum %s: %w", datumHash, ErrNotFound)
	}
	ret, err := hex.DecodeString(resp.Datum)
	if err != nil {
		return nil, fmt.Errorf("decoding datum %s: %w", datumHash, err)
	}
	return ret, nil
}

type Health struct {
	ConnectionStatus     string `json:"connection_status"`
	Version              string `json:"version"`
	MostRecentCheckpoint uint64 `json:"most_recent_checkpoint"`
	MostRecentNodeTip    uint64 `json:"most_recent_node_tip"`
}

// Connected reports whether the index is following its node
func (h *Health) Connected() bool {
	return h.ConnectionStatus == connectionStatusConnected
}

// Health corresponds to GET /health
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var ret Health
	if err := c.getJSON(ctx, c.baseURL+"/health", &ret); err != nil {
		return nil, fmt.Errorf("getting health: %w", err)
	}
	return &ret, nil
}

// WaitHealthy polls the health endpoint until the index is connected and
// its node tip is past minSlot. It gives up after the given number of
// attempts.
func (c *Client) WaitHealthy(
	ctx context.Context,
	minSlot uint64,
	attempts int,
	interval time.Duration,
) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		health, err := c.Health(ctx)
		switch {
		case err != nil:
			lastErr = err
			c.logger.Error(
				"unable to get chain index health",
				"error", err,
				"attempt", attempt,
			)
		case health.Connected() && health.MostRecentNodeTip > minSlot:
			c.logger.Info(
				"chain index is healthy",
				"node_tip", health.MostRecentNodeTip,
				"checkpoint", health.MostRecentCheckpoint,
			)
			return nil
		default:
			lastErr = fmt.Errorf(
				"chain index not ready: status %s, node tip %d",
				health.ConnectionStatus,
				health.MostRecentNodeTip,
			)
			c.logger.Debug(
				"chain index not ready",
				"status", health.ConnectionStatus,
				"node_tip", health.MostRecentNodeTip,
				"expected_slot", minSlot,
			)
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no health check attempted")
	}
	return fmt.Errorf("waiting for chain index: %w", lastErr)
}

func (c *Client) getJSON(ctx context.Context, reqURL string, dest any) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		reqURL,
		nil,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured base URL
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf(
			"unexpected status %d: %s",
			resp.StatusCode,
			string(bodyBytes),
		)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
