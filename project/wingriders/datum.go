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
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/plutigo/data"
)

var errInvalidDatum = errors.New("invalid datum")

func constrFields(pd data.PlutusData, tag uint64, minFields int) ([]data.PlutusData, error) {
	constr, ok := pd.(*data.Constr)
	if !ok {
		return nil, fmt.Errorf("%w: expected constructor, got %T", errInvalidDatum, pd)
	}
	if uint64(constr.Tag) != tag {
		return nil, fmt.Errorf(
			"%w: expected constructor %d, got %d",
			errInvalidDatum,
			tag,
			uint64(constr.Tag),
		)
	}
	if len(constr.Fields) < minFields {
		return nil, fmt.Errorf(
			"%w: expected at least %d fields, got %d",
			errInvalidDatum,
			minFields,
			len(constr.Fields),
		)
	}
	return constr.Fields, nil
}

func bytesValue(pd data.PlutusData) ([]byte, error) {
	b, ok := pd.(*data.ByteString)
	if !ok {
		return nil, fmt.Errorf("%w: expected bytes, got %T", errInvalidDatum, pd)
	}
	return b.Inner, nil
}

func intValue(pd data.PlutusData) (*big.Int, error) {
	i, ok := pd.(*data.Integer)
	if !ok || i.Inner == nil {
		return nil, fmt.Errorf("%w: expected integer, got %T", errInvalidDatum, pd)
	}
	return new(big.Int).Set(i.Inner), nil
}

// stakeKeyHashFromAddress extracts the staking key hash from an on-chain
// address:
//
//	Address = Constr0[paymentCredential, Maybe StakingCredential]
//	Just (StakingHash (PubKeyCredential h)) = Constr0[Constr0[Constr0[h]]]
func stakeKeyHashFromAddress(pd data.PlutusData) ([]byte, error) {
	fields, err := constrFields(pd, 0, 2)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	maybeStake, err := constrFields(fields[1], 0, 1)
	if err != nil {
		return nil, fmt.Errorf("address has no staking credential: %w", err)
	}
	stakingHash, err := constrFields(maybeStake[0], 0, 1)
	if err != nil {
		return nil, fmt.Errorf("address staking credential is a pointer: %w", err)
	}
	keyCred, err := constrFields(stakingHash[0], 0, 1)
	if err != nil {
		return nil, fmt.Errorf("address staking credential is a script: %w", err)
	}
	return bytesValue(keyCred[0])
}

// ownerStakeKeyHash decodes a farm or vesting datum, both of which start
// with the address of the party entitled to the locked tokens
func ownerStakeKeyHash(raw []byte) ([]byte, error) {
	pd, err := data.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidDatum, err)
	}
	fields, err := constrFields(pd, 0, 1)
	if err != nil {
		return nil, err
	}
	return stakeKeyHashFromAddress(fields[0])
}

type poolDatum struct {
	AssetA    AssetClass
	AssetB    AssetClass
	TreasuryA *big.Int
	TreasuryB *big.Int
}

func assetClassValue(pd data.PlutusData) (AssetClass, error) {
	fields, err := constrFields(pd, 0, 2)
	if err != nil {
		return AssetClass{}, fmt.Errorf("asset class: %w", err)
	}
	policyId, err := bytesValue(fields[0])
	if err != nil {
		return AssetClass{}, err
	}
	assetName, err := bytesValue(fields[1])
	if err != nil {
		return AssetClass{}, err
	}
	return AssetClass{
		PolicyId:  hex.EncodeToString(policyId),
		AssetName: hex.EncodeToString(assetName),
	}, nil
}

// decodePoolDatum decodes a liquidity pool datum:
//
//	Constr0[requestScriptHash, Constr0[assetA, assetB], lastInteraction, treasuryA, treasuryB, ...]
func decodePoolDatum(raw []byte) (*poolDatum, error) {
	pd, err := data.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidDatum, err)
	}
	fields, err := constrFields(pd, 0, 5)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	assets, err := constrFields(fields[1], 0, 2)
	if err != nil {
		return nil, fmt.Errorf("pool assets: %w", err)
	}
	ret := &poolDatum{}
	if ret.AssetA, err = assetClassValue(assets[0]); err != nil {
		return nil, err
	}
	if ret.AssetB, err = assetClassValue(assets[1]); err != nil {
		return nil, err
	}
	if ret.TreasuryA, err = intValue(fields[3]); err != nil {
		return nil, fmt.Errorf("pool treasury A: %w", err)
	}
	if ret.TreasuryB, err = intValue(fields[4]); err != nil {
		return nil, fmt.Errorf("pool treasury B: %w", err)
	}
	return ret, nil
}

// treasury returns the pool treasury held in the given asset
func (p *poolDatum) treasury(asset AssetClass) (*big.Int, error) {
	switch asset {
	case p.AssetA:
		return p.TreasuryA, nil
	case p.AssetB:
		return p.TreasuryB, nil
	}
	return nil, fmt.Errorf(
		"%w: pool does not trade %s",
		errInvalidDatum,
		asset.Unit(),
	)
}
