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

// Package chainindex reads historical outputs and datums from a Kupo
// chain index.
package chainindex

import (
	"context"
	"errors"
	"math/big"
	"strconv"

	"github.com/blinklabs-io/govaudit/chain"
)

var ErrNotFound = errors.New("not found in chain index")

// Lookup is the read-only view of the chain index used for voting power
// verification
type Lookup interface {
	// FindOutput returns the output with the given reference, spent or not
	FindOutput(ctx context.Context, txHash string, index uint32) (*Output, error)
	// FindOutputsAtScript returns every output, spent or not, paid to the
	// script and holding the given asset, newest first
	FindOutputsAtScript(ctx context.Context, scriptHash string, policyId string, assetName string) ([]Output, error)
	// FindDatum returns the datum CBOR for the given datum hash
	FindDatum(ctx context.Context, datumHash string) ([]byte, error)
}

type Point struct {
	HeaderHash string `json:"header_hash"`
	SlotNo     uint64 `json:"slot_no"`
}

func (p Point) String() string {
	return strconv.FormatUint(p.SlotNo, 10) + "." + p.HeaderHash
}

type Value struct {
	Coins *big.Int `json:"coins"`
	// Quantities keyed by "policy.name" (or "policy" for an empty name)
	Assets map[string]*big.Int `json:"assets"`
}

type Output struct {
	Value         Value  `json:"value"`
	SpentAt       *Point `json:"spent_at"`
	TransactionId string `json:"transaction_id"`
	Address       string `json:"address"`
	DatumHash     string `json:"datum_hash"`
	ScriptHash    string `json:"script_hash"`
	CreatedAt     Point  `json:"created_at"`
	OutputIndex   uint32 `json:"output_index"`
}

// OutputRef formats an output reference in "txhash#index" form
func OutputRef(txHash string, index uint32) string {
	return txHash + "#" + strconv.FormatUint(uint64(index), 10)
}

// Ref returns the output reference in "txhash#index" form
func (o *Output) Ref() string {
	return OutputRef(o.TransactionId, o.OutputIndex)
}

// AssetQuantity returns the quantity of the asset with the given unit
func (o *Output) AssetQuantity(unit string) *big.Int {
	if qty, ok := o.Value.Assets[unit]; ok && qty != nil {
		return new(big.Int).Set(qty)
	}
	return new(big.Int)
}

// LiveAt reports whether the output existed unspent at the given slot.
// An output spent in the slot itself still counts as live.
func (o *Output) LiveAt(slot uint64) bool {
	if o.CreatedAt.SlotNo > slot {
		return false
	}
	return o.SpentAt == nil || o.SpentAt.SlotNo >= slot
}

// ParsedAddress decodes the bech32 output address
func (o *Output) ParsedAddress() (chain.Address, error) {
	return chain.NewAddressFromBech32(o.Address)
}

// AssetUnit builds the asset identifier used by the chain index
func AssetUnit(policyId, assetName string) string {
	if assetName == "" {
		return policyId
	}
	return policyId + "." + assetName
}
