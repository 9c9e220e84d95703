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

package chain

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/blinklabs-io/govaudit/metadatum"
	gledger "github.com/blinklabs-io/gouroboros/ledger"
	"github.com/blinklabs-io/gouroboros/ledger/alonzo"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
)

// EraFromBlockType maps a ledger block type to the eras the projection
// understands
func EraFromBlockType(blockType int) Era {
	switch blockType {
	case int(alonzo.BlockTypeAlonzo):
		return EraAlonzo
	case int(babbage.BlockTypeBabbage):
		return EraBabbage
	case int(conway.BlockTypeConway):
		return EraConway
	default:
		return EraUnsupported
	}
}

// NewBlock converts a ledger block. Transactions are only converted for
// supported eras.
func NewBlock(block gledger.Block) (*Block, error) {
	ret := &Block{
		Hash:   block.Hash().Bytes(),
		Slot:   block.SlotNumber(),
		Height: block.BlockNumber(),
		Era:    EraFromBlockType(block.Type()),
	}
	if !ret.Era.Supported() {
		return ret, nil
	}
	txs := block.Transactions()
	ret.Transactions = make([]*Tx, 0, len(txs))
	for idx, tx := range txs {
		tmpTx, err := NewTx(tx)
		if err != nil {
			return nil, fmt.Errorf("convert transaction %d: %w", idx, err)
		}
		ret.Transactions = append(ret.Transactions, tmpTx)
	}
	return ret, nil
}

// NewTx converts a ledger transaction
func NewTx(tx lcommon.Transaction) (*Tx, error) {
	ret := &Tx{
		Hash:       tx.Hash().String(),
		Valid:      tx.IsValid(),
		Inputs:     convertInputs(tx.Inputs()),
		Collateral: convertInputs(tx.Collateral()),
		Datums:     make(map[string][]byte),
	}
	if start := tx.ValidityIntervalStart(); start > 0 {
		ret.ValidityStart = &start
	}
	for _, signer := range tx.RequiredSigners() {
		ret.RequiredSigners = append(
			ret.RequiredSigners,
			hex.EncodeToString(signer.Bytes()),
		)
	}
	if ws := tx.Witnesses(); ws != nil {
		for _, datum := range ws.PlutusData() {
			rawDatum := datum.Cbor()
			if len(rawDatum) == 0 {
				continue
			}
			ret.Datums[lcommon.Blake2b256Hash(rawDatum).String()] = rawDatum
		}
	}
	labels, err := metadatum.Labels(tx.Metadata())
	if err != nil {
		return nil, fmt.Errorf("transaction %s metadata: %w", ret.Hash, err)
	}
	ret.Metadata = labels
	for idx, out := range tx.Outputs() {
		if idx > math.MaxUint32 {
			return nil, fmt.Errorf("transaction %s: too many outputs", ret.Hash)
		}
		tmpOutput, err := NewOutput(out, uint32(idx)) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf(
				"transaction %s output %d: %w",
				ret.Hash,
				idx,
				err,
			)
		}
		if tmpOutput.Datum == nil && tmpOutput.DatumHash != "" {
			tmpOutput.Datum = ret.Datums[tmpOutput.DatumHash]
		}
		ret.Outputs = append(ret.Outputs, tmpOutput)
	}
	return ret, nil
}

func convertInputs(inputs []lcommon.TransactionInput) []Input {
	ret := make([]Input, 0, len(inputs))
	for _, input := range inputs {
		ret = append(ret, Input{
			TxHash: input.Id().String(),
			Index:  input.Index(),
		})
	}
	return ret
}

// NewOutput converts a ledger transaction output
func NewOutput(out lcommon.TransactionOutput, idx uint32) (Output, error) {
	ret := Output{
		Index: idx,
		Coins: bigIntFrom(out.Amount()),
	}
	addr, err := NewAddressFromLedger(out.Address())
	if err != nil {
		return ret, err
	}
	ret.Address = addr
	if assets := out.Assets(); assets != nil {
		for _, policyId := range assets.Policies() {
			for _, assetName := range assets.Assets(policyId) {
				ret.Assets = append(ret.Assets, AssetAmount{
					PolicyId:  hex.EncodeToString(policyId.Bytes()),
					AssetName: hex.EncodeToString(assetName),
					Quantity:  bigIntFrom(assets.Asset(policyId, assetName)),
				})
			}
		}
	}
	if datumHash := out.DatumHash(); datumHash != nil {
		ret.DatumHash = datumHash.String()
	}
	if datum := out.Datum(); datum != nil {
		if rawDatum := datum.Cbor(); len(rawDatum) > 0 {
			ret.Datum = rawDatum
			if ret.DatumHash == "" {
				ret.DatumHash = lcommon.Blake2b256Hash(rawDatum).String()
			}
		}
	}
	return ret, nil
}

// bigIntFrom normalizes ledger amounts, which are exposed either as
// *big.Int or uint64 depending on the output type
func bigIntFrom(v any) *big.Int {
	switch val := v.(type) {
	case *big.Int:
		if val == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(val)
	case uint64:
		return new(big.Int).SetUint64(val)
	case int64:
		return big.NewInt(val)
	default:
		return new(big.Int)
	}
}
