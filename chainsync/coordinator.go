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

// Package chainsync drives the governance projection from the stream of
// roll forward and roll backward messages delivered by an upstream node.
package chainsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultStableDepth = 50
	DefaultWorkers     = 8

	tracerName = "github.com/blinklabs-io/govaudit/chainsync"
)

var ErrIntersectNotFound = errors.New("intersection not found")

// Upstream is a block source. Sync negotiates an intersection at the point
// and then delivers blocks to the coordinator's RollForward and
// RollBackward methods, one at a time.
type Upstream interface {
	Sync(ctx context.Context, point chain.Point) error
}

type ProposalScraper interface {
	ScrapeProposal(ctx context.Context, txn *database.Txn, tx *chain.Tx, block *models.Block, blockIndex uint32) (*models.Proposal, error)
}

type VoteScraper interface {
	ScrapeVotes(ctx context.Context, txn *database.Txn, tx *chain.Tx, block *models.Block) ([]models.Vote, error)
}

type State int

const (
	StateUninitialized State = iota
	StateSyncing
)

func (s State) String() string {
	if s == StateSyncing {
		return "syncing"
	}
	return "uninitialized"
}

type CoordinatorConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	Proposals    ProposalScraper
	Votes        VoteScraper
	PromRegistry prometheus.Registerer
	// Point to start from when nothing has been projected yet
	EarliestPoint chain.Point
	// Number of most recent blocks which are reprojected on start-up
	StableDepth int
	// Maximum number of transactions scraped concurrently
	Workers int
}

type Coordinator struct {
	config  CoordinatorConfig
	logger  *slog.Logger
	pool    pond.Pool
	tracer  trace.Tracer
	metrics coordinatorMetrics
	tip     chain.Point
	state   State
	// Serializes roll forward and roll backward
	mutex      sync.Mutex
	stateMutex sync.RWMutex
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Proposals == nil || cfg.Votes == nil {
		return nil, errors.New("proposal and vote scrapers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.StableDepth <= 0 {
		cfg.StableDepth = DefaultStableDepth
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	c := &Coordinator{
		config: cfg,
		logger: cfg.Logger.With("component", "chainsync"),
		pool:   pond.NewPool(cfg.Workers),
		tracer: otel.Tracer(tracerName),
	}
	c.metrics.init(cfg.PromRegistry)
	return c, nil
}

// Start rolls back to the last stable block and asks the upstream to
// deliver blocks from there, or from the configured earliest point when
// nothing stable has been projected yet
func (c *Coordinator) Start(ctx context.Context, upstream Upstream) error {
	point, err := c.LastStablePoint(ctx)
	if err != nil {
		return err
	}
	if err := c.RollBackward(ctx, point); err != nil {
		return fmt.Errorf("sanity rollback: %w", err)
	}
	if point.IsOrigin() {
		point = c.config.EarliestPoint
	}
	c.logger.Info("starting chain sync", "point", point.String())
	if err := upstream.Sync(ctx, point); err != nil {
		return fmt.Errorf("start sync at %s: %w", point, err)
	}
	c.stateMutex.Lock()
	c.state = StateSyncing
	c.stateMutex.Unlock()
	return nil
}

// Stop waits for in-flight work and releases the worker pool
func (c *Coordinator) Stop() {
	c.pool.StopAndWait()
}

// LastStablePoint returns the point of the block StableDepth blocks behind
// the tip, or the origin when fewer blocks were projected
func (c *Coordinator) LastStablePoint(ctx context.Context) (chain.Point, error) {
	block, err := c.config.Database.LastStableBlock(ctx, c.config.StableDepth)
	if err != nil {
		return chain.Point{}, fmt.Errorf("find last stable block: %w", err)
	}
	if block == nil {
		return chain.Point{}, nil
	}
	return chain.NewPoint(block.Slot, block.Hash), nil
}

func (c *Coordinator) State() State {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// Tip returns the point of the last block handled
func (c *Coordinator) Tip() chain.Point {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.tip
}

func (c *Coordinator) setTip(point chain.Point) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.tip = point
}

// RollForward projects a block. The block is stored in a single database
// transaction: the block row, then every transaction's proposals and
// votes, then the outputs spent by the block.
func (c *Coordinator) RollForward(ctx context.Context, block *chain.Block) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ctx, span := c.tracer.Start(
		ctx,
		"chainsync.RollForward",
		trace.WithAttributes(
			// nolint:gosec
			attribute.Int64("slot", int64(block.Slot)),
			// nolint:gosec
			attribute.Int64("height", int64(block.Height)),
			attribute.String("era", block.Era.String()),
			attribute.Int("transactions", len(block.Transactions)),
		),
	)
	defer span.End()
	if !block.Era.Supported() {
		c.logger.Debug(
			"skipping block from unsupported era",
			"slot", block.Slot,
			"era", block.Era.String(),
		)
		c.metrics.skippedBlocks.Inc()
		c.setTip(block.Point())
		return nil
	}
	startTime := time.Now()
	var result blockResult
	err := c.config.Database.Transaction(ctx, func(txn *database.Txn) error {
		var err error
		result, err = c.projectBlock(ctx, txn, block)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roll forward failed")
		return fmt.Errorf("roll forward to %s: %w", block.Point(), err)
	}
	c.setTip(block.Point())
	c.metrics.blocks.Inc()
	c.metrics.blockProcessing.Observe(time.Since(startTime).Seconds())
	c.metrics.tipSlot.Set(float64(block.Slot))
	c.metrics.tipHeight.Set(float64(block.Height))
	c.metrics.proposals.Add(float64(result.proposals))
	for _, vote := range result.votes {
		c.metrics.votes.WithLabelValues(vote.VerificationState).Inc()
	}
	if result.proposals > 0 || len(result.votes) > 0 {
		c.logger.Info(
			"projected governance block",
			"slot", block.Slot,
			"height", block.Height,
			"proposals", result.proposals,
			"votes", len(result.votes),
			"spent_outputs", result.spent,
		)
	}
	return nil
}

type blockResult struct {
	votes     []models.Vote
	proposals int
	spent     int64
}

type txResult struct {
	err      error
	votes    []models.Vote
	proposal bool
}

func (c *Coordinator) projectBlock(
	ctx context.Context,
	txn *database.Txn,
	block *chain.Block,
) (blockResult, error) {
	var ret blockResult
	storedBlock := &models.Block{
		Hash:   block.Hash,
		Height: block.Height,
		Slot:   block.Slot,
	}
	if err := txn.InsertBlock(storedBlock); err != nil {
		return ret, err
	}
	if len(block.Transactions) > math.MaxUint32 {
		return ret, errors.New("too many transactions in block")
	}
	results := make([]txResult, len(block.Transactions))
	group := c.pool.NewGroupContext(ctx)
	for idx, tx := range block.Transactions {
		// Failed scripts only consume collateral
		if !tx.Valid {
			continue
		}
		group.Submit(func() {
			// nolint:gosec
			results[idx] = c.scrapeTx(ctx, txn, tx, storedBlock, uint32(idx))
		})
	}
	if err := group.Wait(); err != nil {
		return ret, err
	}
	var errs []error
	for _, result := range results {
		if result.err != nil {
			errs = append(errs, result.err)
			continue
		}
		if result.proposal {
			ret.proposals++
		}
		ret.votes = append(ret.votes, result.votes...)
	}
	if err := errors.Join(errs...); err != nil {
		return ret, err
	}
	// Outputs created earlier in the block may be spent later in it, so
	// spending is only recorded once every transaction was scraped
	var inputs []chain.Input
	for _, tx := range block.Transactions {
		inputs = append(inputs, tx.SpentInputs()...)
	}
	spent, err := txn.MarkSpent(storedBlock.ID, inputs)
	if err != nil {
		return ret, err
	}
	ret.spent = spent
	return ret, ctx.Err()
}

func (c *Coordinator) scrapeTx(
	ctx context.Context,
	txn *database.Txn,
	tx *chain.Tx,
	block *models.Block,
	blockIndex uint32,
) txResult {
	var ret txResult
	proposal, err := c.config.Proposals.ScrapeProposal(ctx, txn, tx, block, blockIndex)
	if err != nil {
		ret.err = fmt.Errorf("transaction %s: scrape proposal: %w", tx.Hash, err)
		return ret
	}
	ret.proposal = proposal != nil
	ret.votes, err = c.config.Votes.ScrapeVotes(ctx, txn, tx, block)
	if err != nil {
		ret.err = fmt.Errorf("transaction %s: scrape votes: %w", tx.Hash, err)
	}
	return ret
}

// RollBackward removes every block after the point. Rolling back to a
// point at or beyond the tip does nothing.
func (c *Coordinator) RollBackward(ctx context.Context, point chain.Point) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ctx, span := c.tracer.Start(
		ctx,
		"chainsync.RollBackward",
		// nolint:gosec
		trace.WithAttributes(attribute.Int64("slot", int64(point.Slot))),
	)
	defer span.End()
	var removed int64
	err := c.config.Database.Transaction(ctx, func(txn *database.Txn) error {
		var err error
		removed, err = txn.RollbackTo(point)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roll backward failed")
		return fmt.Errorf("roll backward to %s: %w", point, err)
	}
	c.setTip(point)
	c.metrics.rollbacks.Inc()
	c.metrics.rolledBack.Add(float64(removed))
	c.metrics.tipSlot.Set(float64(point.Slot))
	c.logger.Info(
		"rolled back",
		"point", point.String(),
		"removed_blocks", removed,
	)
	return nil
}
