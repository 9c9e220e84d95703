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

// Package ouroboros provides the node-to-client chain-sync session which
// feeds blocks from a local Cardano node into the governance projection.
package ouroboros

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/chainsync"
	ouroboros "github.com/blinklabs-io/gouroboros"
	ochainsync "github.com/blinklabs-io/gouroboros/protocol/chainsync"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
)

const (
	DefaultMaxRetries    = 10
	DefaultRetryInterval = 15 * time.Second
	DefaultPipelineLimit = 10
)

var ErrNoAddress = errors.New("no upstream address or socket path configured")

// BlockHandler receives the chain-sync stream. A returned error stops the
// session.
type BlockHandler interface {
	RollForward(ctx context.Context, block *chain.Block) error
	RollBackward(ctx context.Context, point chain.Point) error
}

// RestartFunc is called after the connection was lost. It is expected to
// resolve the resume point and call Sync again.
type RestartFunc func(ctx context.Context) error

type ChainSyncClientConfig struct {
	Logger        *slog.Logger
	Handler       BlockHandler
	Restart       RestartFunc
	Address       string
	SocketPath    string
	NetworkMagic  uint32
	MaxRetries    int
	RetryInterval time.Duration
	PipelineLimit int
}

// ChainSyncClient keeps a single upstream connection open and reconnects
// when it drops
type ChainSyncClient struct {
	config   ChainSyncClientConfig
	logger   *slog.Logger
	conn     *ouroboros.Connection
	ctx      context.Context
	errChan  chan error
	mutex    sync.Mutex
	stopping bool
	failed   bool
}

func NewChainSyncClient(cfg ChainSyncClientConfig) (*ChainSyncClient, error) {
	if cfg.Handler == nil {
		return nil, errors.New("chain-sync client: handler must not be nil")
	}
	if _, _, err := cfg.dialTarget(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.PipelineLimit <= 0 {
		cfg.PipelineLimit = DefaultPipelineLimit
	}
	return &ChainSyncClient{
		config:  cfg,
		logger:  cfg.Logger.With("component", "ouroboros"),
		errChan: make(chan error, 1),
	}, nil
}

// dialTarget returns the network and address to dial. A socket path takes
// precedence over a TCP address.
func (c ChainSyncClientConfig) dialTarget() (string, string, error) {
	switch {
	case c.SocketPath != "":
		return "unix", c.SocketPath, nil
	case c.Address != "":
		return "tcp", c.Address, nil
	default:
		return "", "", ErrNoAddress
	}
}

// ErrorChan delivers the error which ended the session. Nothing is sent
// after Stop.
func (c *ChainSyncClient) ErrorChan() <-chan error {
	return c.errChan
}

// Sync connects to the upstream node, retrying failed connection attempts,
// and starts chain-sync from the given point. Blocks are then delivered to
// the handler in the background until the context is cancelled, Stop is
// called or a fatal error is reported on ErrorChan.
func (c *ChainSyncClient) Sync(ctx context.Context, point chain.Point) error {
	c.mutex.Lock()
	c.ctx = ctx
	c.mutex.Unlock()
	var err error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		var conn *ouroboros.Connection
		conn, err = c.connect()
		if err == nil {
			err = c.startSync(conn, point)
			if err == nil {
				c.mutex.Lock()
				c.conn = conn
				c.mutex.Unlock()
				go c.watch(ctx, conn)
				return nil
			}
			_ = conn.Close()
			if errors.Is(err, chainsync.ErrIntersectNotFound) {
				return err
			}
		}
		c.logger.Warn(
			"failed to connect to upstream node",
			"attempt", attempt,
			"max_attempts", c.config.MaxRetries,
			"error", err,
		)
		if attempt == c.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.RetryInterval):
		}
	}
	return fmt.Errorf(
		"upstream unavailable after %d attempts: %w",
		c.config.MaxRetries,
		err,
	)
}

func (c *ChainSyncClient) connect() (*ouroboros.Connection, error) {
	network, address, err := c.config.dialTarget()
	if err != nil {
		return nil, err
	}
	conn, err := ouroboros.NewConnection(
		ouroboros.WithNetworkMagic(c.config.NetworkMagic),
		ouroboros.WithNodeToNode(false),
		ouroboros.WithKeepAlive(false),
		ouroboros.WithChainSyncConfig(
			ochainsync.NewConfig(c.chainSyncClientConnOpts()...),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	if err := conn.Dial(network, address); err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	c.logger.Info("connected to upstream node", "address", address)
	return conn, nil
}

func (c *ChainSyncClient) startSync(conn *ouroboros.Connection, point chain.Point) error {
	intersect := ocommon.NewPointOrigin()
	if !point.IsOrigin() {
		intersect = ocommon.NewPoint(point.Slot, point.Hash)
	}
	if err := conn.ChainSync().Client.Sync([]ocommon.Point{intersect}); err != nil {
		if errors.Is(err, ochainsync.ErrIntersectNotFound) {
			return fmt.Errorf("%w: %s", chainsync.ErrIntersectNotFound, point)
		}
		return fmt.Errorf("start chain-sync: %w", err)
	}
	c.logger.Info("chain-sync started", "point", point.String())
	return nil
}

// watch waits for the connection to end and restarts the session unless
// the end was requested
func (c *ChainSyncClient) watch(ctx context.Context, conn *ouroboros.Connection) {
	var connErr error
	select {
	case <-ctx.Done():
		_ = conn.Close()
		return
	case connErr = <-conn.ErrorChan():
	}
	c.mutex.Lock()
	stop := c.stopping || c.failed
	c.mutex.Unlock()
	if stop {
		return
	}
	c.logger.Warn("upstream connection lost", "error", connErr)
	if c.config.Restart == nil {
		c.fail(fmt.Errorf("upstream connection lost: %w", connErr))
		return
	}
	if err := c.config.Restart(ctx); err != nil {
		c.fail(fmt.Errorf("restart chain-sync: %w", err))
	}
}

// fail reports the first fatal error. An error returned from a chain-sync
// callback shuts the connection down by itself.
func (c *ChainSyncClient) fail(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.failed || c.stopping {
		return
	}
	c.failed = true
	c.logger.Error("chain-sync failed", "error", err)
	c.errChan <- err
}

// Stop closes the upstream connection
func (c *ChainSyncClient) Stop() error {
	c.mutex.Lock()
	c.stopping = true
	conn := c.conn
	c.conn = nil
	c.mutex.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *ChainSyncClient) handlerContext() context.Context {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
