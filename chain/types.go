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

// Package chain holds the ledger view used by the governance projection:
// blocks, transactions and outputs reduced to the fields the auditor
// reads, plus address credential helpers.
package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"slices"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// Point identifies a position on the chain. The zero value is the origin.
type Point struct {
	Hash []byte
	Slot uint64
}

func NewPoint(slot uint64, hash []byte) Point {
	return Point{Slot: slot, Hash: hash}
}

// IsOrigin reports whether the point precedes every block
func (p Point) IsOrigin() bool {
	return p.Slot == 0 && len(p.Hash) == 0
}

func (p Point) String() string {
	if p.IsOrigin() {
		return "origin"
	}
	return fmt.Sprintf("%d.%s", p.Slot, hex.EncodeToString(p.Hash))
}

type Era int

const (
	EraUnsupported Era = iota
	EraAlonzo
	EraBabbage
	EraConway
)

func (e Era) String() string {
	switch e {
	case EraAlonzo:
		return "alonzo"
	case EraBabbage:
		return "babbage"
	case EraConway:
		return "conway"
	default:
		return "unsupported"
	}
}

// Supported reports whether blocks of this era carry the transaction
// features the projection needs (metadata, datums, required signers)
func (e Era) Supported() bool {
	return e != EraUnsupported
}

type Block struct {
	Hash         []byte
	Slot         uint64
	Height       uint64
	Era          Era
	Transactions []*Tx
}

// Point returns the chain point of the block
func (b *Block) Point() Point {
	return NewPoint(b.Slot, b.Hash)
}

type Input struct {
	TxHash string
	Index  uint32
}

func (i Input) String() string {
	return fmt.Sprintf("%s#%d", i.TxHash, i.Index)
}

type AssetAmount struct {
	PolicyId  string // hex
	AssetName string // hex
	Quantity  *big.Int
}

// Unit returns the asset identifier in "policy.name" form, or just the
// policy when the asset name is empty
func (a AssetAmount) Unit() string {
	if a.AssetName == "" {
		return a.PolicyId
	}
	return a.PolicyId + "." + a.AssetName
}

type Output struct {
	Address   Address
	Coins     *big.Int
	Assets    []AssetAmount
	DatumHash string // hex, empty when absent
	Datum     []byte // datum CBOR when known
	Index     uint32
}

// AssetQuantity returns the quantity of the given asset held by the output
func (o *Output) AssetQuantity(policyId, assetName string) *big.Int {
	ret := new(big.Int)
	for _, asset := range o.Assets {
		if asset.PolicyId == policyId && asset.AssetName == assetName {
			ret.Add(ret, asset.Quantity)
		}
	}
	return ret
}

type Tx struct {
	Hash            string
	Inputs          []Input
	Collateral      []Input
	Outputs         []Output
	RequiredSigners []string // hex key hashes
	// Slot before which the transaction is invalid, nil when unbounded
	ValidityStart *uint64
	Metadata      map[uint64]lcommon.TransactionMetadatum
	// Witness datums by hex datum hash
	Datums map[string][]byte
	Valid  bool
}

// SpentInputs returns the inputs consumed by the transaction. A transaction
// which failed phase-2 validation only consumes its collateral.
func (t *Tx) SpentInputs() []Input {
	if t.Valid {
		return t.Inputs
	}
	return t.Collateral
}

// HasRequiredSigner reports whether the key hash is among the required
// extra signatures
func (t *Tx) HasRequiredSigner(keyHash []byte) bool {
	return slices.Contains(t.RequiredSigners, hex.EncodeToString(keyHash))
}
