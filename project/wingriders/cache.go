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

package wingriders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "govaudit:wingriders:pool:"

// PoolState is the governance token reserve and issued LP supply of a pool
// at a snapshot slot
type PoolState struct {
	GovernanceReserve *big.Int
	IssuedLp          *big.Int
}

// emptyPoolState is used when no pool output was live at the snapshot.
// Issuing one unit keeps the LP share well defined while yielding zero.
func emptyPoolState() PoolState {
	return PoolState{
		GovernanceReserve: new(big.Int),
		IssuedLp:          big.NewInt(1),
	}
}

// SnapshotCache stores resolved pool states keyed by "poolId@slot"
type SnapshotCache interface {
	Get(ctx context.Context, key string) (PoolState, bool)
	Set(ctx context.Context, key string, state PoolState)
}

func poolCacheKey(poolId string, slot uint64) string {
	return fmt.Sprintf("%s@%d", poolId, slot)
}

type memoryCache struct {
	states *xsync.Map[string, PoolState]
}

// NewMemoryCache returns an unbounded in-process cache. Historical pool
// states never change, so entries are never invalidated.
func NewMemoryCache() SnapshotCache {
	return &memoryCache{
		states: xsync.NewMap[string, PoolState](),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (PoolState, bool) {
	return c.states.Load(key)
}

func (c *memoryCache) Set(_ context.Context, key string, state PoolState) {
	c.states.Store(key, state)
}

type redisCache struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

// NewRedisCache returns a cache shared between processes. Entries expire
// after ttl, or never when ttl is zero.
func NewRedisCache(
	client redis.UniversalClient,
	ttl time.Duration,
	logger *slog.Logger,
) SnapshotCache {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &redisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) (PoolState, bool) {
	val, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn(
				"failed to read pool state from cache",
				"key", key,
				"error", err,
			)
		}
		return PoolState{}, false
	}
	state, err := decodePoolState(val)
	if err != nil {
		c.logger.Warn(
			"ignoring malformed cached pool state",
			"key", key,
			"error", err,
		)
		return PoolState{}, false
	}
	return state, true
}

func (c *redisCache) Set(ctx context.Context, key string, state PoolState) {
	err := c.client.Set(ctx, redisKeyPrefix+key, encodePoolState(state), c.ttl).Err()
	if err != nil {
		c.logger.Warn(
			"failed to store pool state in cache",
			"key", key,
			"error", err,
		)
	}
}

func encodePoolState(state PoolState) string {
	return state.GovernanceReserve.String() + ":" + state.IssuedLp.String()
}

func decodePoolState(val string) (PoolState, error) {
	reserveStr, issuedStr, ok := strings.Cut(val, ":")
	if !ok {
		return PoolState{}, errors.New("missing separator")
	}
	reserve, ok := new(big.Int).SetString(reserveStr, 10)
	if !ok {
		return PoolState{}, fmt.Errorf("invalid reserve %q", reserveStr)
	}
	issued, ok := new(big.Int).SetString(issuedStr, 10)
	if !ok || issued.Sign() <= 0 {
		return PoolState{}, fmt.Errorf("invalid issued LP supply %q", issuedStr)
	}
	return PoolState{GovernanceReserve: reserve, IssuedLp: issued}, nil
}
