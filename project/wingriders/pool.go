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
	"fmt"
	"math/big"

	"github.com/blinklabs-io/govaudit/chainindex"
)

// poolState finds the pool output live at the slot and derives the
// governance token reserve and issued LP supply from it
func (w *WingRiders) poolState(ctx context.Context, slot uint64, poolId string) (PoolState, error) {
	outputs, err := w.index.FindOutputsAtScript(
		ctx,
		w.consts.LpScriptHash,
		w.consts.LpPolicyId,
		poolId,
	)
	if err != nil {
		return PoolState{}, err
	}
	validityUnit := w.consts.poolValidityUnit()
	var snapshot *chainindex.Output
	// Outputs are ordered newest first
	for i := range outputs {
		output := &outputs[i]
		if output.AssetQuantity(validityUnit).Cmp(big.NewInt(1)) != 0 ||
			output.DatumHash == "" {
			continue
		}
		if output.LiveAt(slot) {
			snapshot = output
			break
		}
	}
	if snapshot == nil {
		return emptyPoolState(), nil
	}
	rawDatum, err := w.index.FindDatum(ctx, snapshot.DatumHash)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool datum: %w", err)
	}
	pool, err := decodePoolDatum(rawDatum)
	if err != nil {
		return PoolState{}, err
	}
	treasury, err := pool.treasury(w.consts.GovernanceToken)
	if err != nil {
		return PoolState{}, err
	}
	heldLp, ok := snapshot.Value.Assets[w.consts.lpUnit(poolId)]
	if !ok || heldLp == nil {
		heldLp = new(big.Int).Sub(maxInt64, big.NewInt(1))
	}
	issued := new(big.Int).Sub(maxInt64, heldLp)
	if issued.Sign() <= 0 {
		// Nothing issued, so no LP holder has a share of the reserve
		return emptyPoolState(), nil
	}
	reserve := snapshot.AssetQuantity(w.consts.GovernanceToken.Unit())
	reserve.Sub(reserve, treasury)
	return PoolState{
		GovernanceReserve: reserve,
		IssuedLp:          issued,
	}, nil
}

func (w *WingRiders) cachedPoolState(ctx context.Context, slot uint64, poolId string) (PoolState, error) {
	key := poolCacheKey(poolId, slot)
	if state, ok := w.cache.Get(ctx, key); ok {
		return state, nil
	}
	// Concurrent misses for the same pool and slot share one lookup
	ret, err, _ := w.poolFetches.Do(key, func() (any, error) {
		if state, ok := w.cache.Get(ctx, key); ok {
			return state, nil
		}
		w.logger.Info(
			"pool not found in cache, fetching",
			"pool_id", poolId,
			"slot", slot,
		)
		state, err := w.poolState(ctx, slot, poolId)
		if err != nil {
			return nil, err
		}
		w.cache.Set(ctx, key, state)
		return state, nil
	})
	if err != nil {
		return PoolState{}, err
	}
	state, _ := ret.(PoolState)
	return state, nil
}

// lpPower returns the governance tokens attributable to the LP tokens held
// by the output. Only the WRT/ADA pool is supported; other LP tokens
// contribute nothing.
func (w *WingRiders) lpPower(ctx context.Context, slot uint64, output *chainindex.Output) (*big.Int, error) {
	ret := new(big.Int)
	lpCount := output.AssetQuantity(w.consts.lpUnit(w.consts.WrtAdaPoolId))
	if lpCount.Sign() == 0 {
		return ret, nil
	}
	state, err := w.cachedPoolState(ctx, slot, w.consts.WrtAdaPoolId)
	if err != nil {
		return nil, err
	}
	ret.Mul(state.GovernanceReserve, lpCount)
	ret.Quo(ret, state.IssuedLp)
	return ret, nil
}
