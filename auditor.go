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

// Package govaudit audits on-chain governance of Cardano projects: it
// follows the chain from a local node, projects polls, proposals and votes
// into a relational database and verifies the voting power claimed by each
// vote.
package govaudit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/govaudit/api"
	"github.com/blinklabs-io/govaudit/chainindex"
	"github.com/blinklabs-io/govaudit/chainsync"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/governance"
	"github.com/blinklabs-io/govaudit/ouroboros"
	"github.com/blinklabs-io/govaudit/project"
	_ "github.com/blinklabs-io/govaudit/project/wingriders"
	"github.com/blinklabs-io/govaudit/slotclock"
	"github.com/redis/go-redis/v9"
)

type Auditor struct {
	db            *database.Database
	coordinator   *chainsync.Coordinator
	upstream      *ouroboros.ChainSyncClient
	api           *api.Server
	redis         *redis.Client
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Auditor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Auditor{
		config: cfg,
		done:   make(chan struct{}),
	}, nil
}

// Run starts the auditor and blocks until the context is cancelled, Stop
// is called or chain-sync fails
func (a *Auditor) Run(ctx context.Context) error {
	// Configure tracing
	if a.config.tracing {
		if err := a.setupTracing(ctx); err != nil {
			return err
		}
	}
	network, err := slotclock.NetworkByName(a.config.network)
	if err != nil {
		return err
	}
	// Load database
	db, err := database.New(
		database.WithLogger(a.config.logger),
		database.WithDriver(a.config.databaseDriver),
		database.WithDataDir(a.config.dataDir),
		database.WithDSN(a.config.databaseDsn),
		database.WithTracing(a.config.tracing),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	// Chain index
	index := chainindex.NewClient(
		a.config.chainIndexUrl,
		chainindex.WithLogger(a.config.logger),
	)
	if a.config.waitChainIndexHealth {
		err := index.WaitHealthy(
			ctx,
			a.config.earliestPoint.Slot,
			a.config.chainIndexRetries,
			a.config.chainIndexInterval,
		)
		if err != nil {
			return err
		}
	}
	// Load project rules
	deps := project.Deps{
		Logger:     a.config.logger,
		Network:    network,
		ChainIndex: index,
		CacheTTL:   a.config.cacheTTL,
		Workers:    a.config.workers,
	}
	if a.config.redisUrl != "" {
		client, err := a.connectRedis(ctx)
		if err != nil {
			return err
		}
		a.redis = client
		deps.Redis = client
	}
	proj, err := project.New(a.config.project, deps)
	if err != nil {
		return err
	}
	govCfg := governance.Config{
		Logger:  a.config.logger,
		Network: network,
		Project: proj,
	}
	proposals, err := governance.NewProposalIngestor(govCfg)
	if err != nil {
		return err
	}
	votes, err := governance.NewVoteIngestor(govCfg)
	if err != nil {
		return err
	}
	// Chain-sync
	a.coordinator, err = chainsync.NewCoordinator(
		chainsync.CoordinatorConfig{
			Logger:        a.config.logger,
			Database:      a.db,
			Proposals:     proposals,
			Votes:         votes,
			PromRegistry:  a.config.promRegistry,
			EarliestPoint: a.config.earliestPoint,
			StableDepth:   a.config.stableDepth,
			Workers:       a.config.workers,
		},
	)
	if err != nil {
		return err
	}
	a.upstream, err = ouroboros.NewChainSyncClient(
		ouroboros.ChainSyncClientConfig{
			Logger:  a.config.logger,
			Handler: a.coordinator,
			// Resume from the last stable point after a lost connection
			Restart: func(ctx context.Context) error {
				return a.coordinator.Start(ctx, a.upstream)
			},
			Address:       a.config.upstreamAddress,
			SocketPath:    a.config.upstreamSocketPath,
			NetworkMagic:  network.NetworkMagic,
			MaxRetries:    a.config.upstreamRetries,
			RetryInterval: a.config.upstreamInterval,
		},
	)
	if err != nil {
		return err
	}
	// Read API
	if a.config.apiListenAddress != "" {
		a.api, err = api.New(api.Config{
			Logger:        a.config.logger,
			Store:         a.db,
			ListenAddress: a.config.apiListenAddress,
		})
		if err != nil {
			return err
		}
		if err := a.api.Start(); err != nil {
			return err
		}
	}
	if err := a.coordinator.Start(ctx, a.upstream); err != nil {
		return err
	}
	a.config.logger.Info(
		"governance auditor started",
		"network", network.Name,
		"project", proj.Name(),
	)
	// Wait for shutdown or a fatal chain-sync error
	select {
	case <-ctx.Done():
		return nil
	case <-a.done:
		return nil
	case err := <-a.upstream.ErrorChan():
		return err
	}
}

func (a *Auditor) connectRedis(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(a.config.redisUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	a.config.logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

func (a *Auditor) Stop() error {
	var err error
	a.shutdownOnce.Do(func() {
		err = a.shutdown()
	})
	return err
}

func (a *Auditor) shutdown() error {
	shutdownTimeout := DefaultShutdownTimeout
	if a.config.shutdownTimeout > 0 {
		shutdownTimeout = a.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	a.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	a.config.logger.Debug("shutdown phase 1: stopping new work")

	if a.api != nil {
		if stopErr := a.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	if a.upstream != nil {
		if stopErr := a.upstream.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("upstream shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain in-flight blocks
	a.config.logger.Debug("shutdown phase 2: draining chain-sync")

	if a.coordinator != nil {
		a.coordinator.Stop()
	}

	// Phase 3: Close storage
	a.config.logger.Debug("shutdown phase 3: closing storage")

	if a.redis != nil {
		if closeErr := a.redis.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("redis close: %w", closeErr))
		}
	}

	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	a.config.logger.Debug("shutdown phase 4: cleanup resources")

	for _, fn := range a.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	a.shutdownFuncs = nil

	a.config.logger.Debug("graceful shutdown complete")
	close(a.done)
	return err
}
