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

// Package wingriders implements the governance rules and voting power
// verification of the WingRiders DEX.
package wingriders

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/alitto/pond/v2"
	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/chainindex"
	"github.com/blinklabs-io/govaudit/metadatum"
	"github.com/blinklabs-io/govaudit/project"
	"github.com/blinklabs-io/govaudit/slotclock"
	"golang.org/x/sync/singleflight"
)

const defaultWorkers = 8

func init() {
	project.Register(Name, func(deps project.Deps) (project.Project, error) {
		w, err := New(deps)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

type WingRiders struct {
	logger            *slog.Logger
	network           *slotclock.Network
	index             chainindex.Lookup
	cache             SnapshotCache
	poolFetches       singleflight.Group
	governanceAddress chain.Address
	consts            Constants
	workers           int
}

// New creates the project for the network in deps. The pool snapshot cache
// lives in Redis when a client is supplied, and in process otherwise.
func New(deps project.Deps) (*WingRiders, error) {
	if deps.Network == nil {
		return nil, errors.New("network is required")
	}
	if deps.ChainIndex == nil {
		return nil, errors.New("chain index is required")
	}
	consts, err := ConstantsForNetwork(deps.Network.Name)
	if err != nil {
		return nil, err
	}
	govAddr, err := chain.NewAddressFromBech32(consts.GovernanceAddress)
	if err != nil {
		return nil, fmt.Errorf("governance address: %w", err)
	}
	w := &WingRiders{
		logger:            deps.Logger,
		network:           deps.Network,
		index:             deps.ChainIndex,
		governanceAddress: govAddr,
		consts:            consts,
		workers:           deps.Workers,
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	w.logger = w.logger.With("component", "wingriders")
	if w.workers <= 0 {
		w.workers = defaultWorkers
	}
	if deps.Redis != nil {
		w.cache = NewRedisCache(deps.Redis, deps.CacheTTL, w.logger)
	} else {
		w.cache = NewMemoryCache()
	}
	return w, nil
}

func (w *WingRiders) Name() string {
	return Name
}

// VerifyVotingPower sums the voting power of every referenced output. The
// outputs are checked concurrently and a failing output counts as zero.
func (w *WingRiders) VerifyVotingPower(
	ctx context.Context,
	snapshotSlot uint64,
	ownerStakeKeyHash []byte,
	utxos []metadatum.UTxORef,
) *big.Int {
	powers := make([]*big.Int, len(utxos))
	pool := pond.NewPool(w.workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	for i, utxo := range utxos {
		group.Submit(func() {
			power, err := w.verifyUTxO(ctx, snapshotSlot, ownerStakeKeyHash, utxo)
			if err != nil {
				w.logger.Warn(
					"unable to process utxo",
					"utxo", utxo.String(),
					"error", err,
				)
				return
			}
			powers[i] = power
		})
	}
	if err := group.Wait(); err != nil {
		w.logger.Warn("voting power verification interrupted", "error", err)
	}
	ret := new(big.Int)
	for _, power := range powers {
		if power != nil {
			ret.Add(ret, power)
		}
	}
	return ret
}

func (w *WingRiders) verifyUTxO(
	ctx context.Context,
	snapshotSlot uint64,
	ownerStakeKeyHash []byte,
	utxo metadatum.UTxORef,
) (*big.Int, error) {
	output, err := w.index.FindOutput(ctx, utxo.TxHash, utxo.Index)
	if err != nil {
		return nil, err
	}
	if !output.LiveAt(snapshotSlot) {
		return nil, fmt.Errorf("utxo was not live at slot %d", snapshotSlot)
	}
	addr, err := output.ParsedAddress()
	if err != nil {
		return nil, err
	}
	govTokens := output.AssetQuantity(w.consts.GovernanceToken.Unit())
	switch {
	case addr.IsPaymentScript():
		scriptHash, _ := addr.PaymentHash()
		if output.DatumHash == "" {
			return nil, errors.New("script output has no datum")
		}
		switch hex.EncodeToString(scriptHash) {
		case w.consts.FarmScriptHash:
			if err := w.checkDatumOwner(ctx, output, ownerStakeKeyHash); err != nil {
				return nil, fmt.Errorf("farm: %w", err)
			}
			lpPower, err := w.lpPower(ctx, snapshotSlot, output)
			if err != nil {
				return nil, err
			}
			return govTokens.Add(govTokens, lpPower), nil
		case w.consts.VestingScriptHash:
			if err := w.checkDatumOwner(ctx, output, ownerStakeKeyHash); err != nil {
				return nil, fmt.Errorf("vesting: %w", err)
			}
			// Vested tokens count for half
			return govTokens.Quo(govTokens, big.NewInt(2)), nil
		}
		return new(big.Int), nil
	case addr.IsPaymentKey():
		stakeKeyHash, ok := addr.StakeKeyHash()
		if !ok || !bytes.Equal(stakeKeyHash, ownerStakeKeyHash) {
			return nil, errors.New("utxo does not belong to the owner")
		}
		lpPower, err := w.lpPower(ctx, snapshotSlot, output)
		if err != nil {
			return nil, err
		}
		return govTokens.Add(govTokens, lpPower), nil
	}
	return new(big.Int), nil
}

func (w *WingRiders) checkDatumOwner(
	ctx context.Context,
	output *chainindex.Output,
	ownerKeyHash []byte,
) error {
	rawDatum, err := w.index.FindDatum(ctx, output.DatumHash)
	if err != nil {
		return err
	}
	datumOwner, err := ownerStakeKeyHash(rawDatum)
	if err != nil {
		return err
	}
	if !bytes.Equal(datumOwner, ownerKeyHash) {
		return errors.New("script output is not owned by the voter")
	}
	return nil
}
