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
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	mockledger "github.com/blinklabs-io/ouroboros-mock/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMainnetAddr = "addr1qx8rhe77m9jdj6ghrf0cnkx2l7x8rq7xw08v4qesd72xsmpeju49prd7tpf3q3m34mehnuzakuhv57sqxjpy83vhdgrqlu92zd"
	testPreprodAddr = "addr_test1qz8rhe77m9jdj6ghrf0cnkx2l7x8rq7xw08v4qesd72xsmpeju49prd7tpf3q3m34mehnuzakuhv57sqxjpy83vhdgrqu2c2wj"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	for _, addrStr := range []string{testMainnetAddr, testPreprodAddr} {
		addr, err := NewAddressFromBech32(addrStr)
		require.NoError(t, err)
		assert.Len(t, addr.Bytes(), 57)
		assert.Equal(t, uint8(lcommon.AddressTypeKeyKey), addr.Type())
		assert.True(t, addr.IsPaymentKey())
		assert.False(t, addr.IsPaymentScript())
		assert.Equal(t, addrStr, addr.String())
		// Hex form parses back to the same address
		fromHex, err := NewAddressFromHex(addr.Hex())
		require.NoError(t, err)
		assert.True(t, addr.Equal(fromHex))
	}
}

func TestAddressCredentials(t *testing.T) {
	mainnet, err := NewAddressFromBech32(testMainnetAddr)
	require.NoError(t, err)
	preprod, err := NewAddressFromBech32(testPreprodAddr)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), mainnet.NetworkId())
	assert.Equal(t, uint8(0), preprod.NetworkId())
	// Both addresses share the same credentials
	mainPay, ok := mainnet.PaymentHash()
	require.True(t, ok)
	prePay, ok := preprod.PaymentHash()
	require.True(t, ok)
	assert.Equal(t, mainPay, prePay)
	mainStake, ok := mainnet.StakeKeyHash()
	require.True(t, ok)
	preStake, ok := preprod.StakeKeyHash()
	require.True(t, ok)
	assert.Equal(t, mainStake, preStake)
	assert.Len(t, mainStake, 28)
}

func TestAddressTypes(t *testing.T) {
	payment := bytes.Repeat([]byte{0xaa}, 28)
	stake := bytes.Repeat([]byte{0xbb}, 28)
	testDefs := []struct {
		header        byte
		body          []byte
		isScript      bool
		hasPayment    bool
		hasStakeKey   bool
		stakeIsInline bool
	}{
		{header: 0x01, body: append(append([]byte{}, payment...), stake...), hasPayment: true, hasStakeKey: true, stakeIsInline: true},
		{header: 0x11, body: append(append([]byte{}, payment...), stake...), isScript: true, hasPayment: true, hasStakeKey: true, stakeIsInline: true},
		{header: 0x21, body: append(append([]byte{}, payment...), stake...), hasPayment: true, stakeIsInline: true},
		{header: 0x31, body: append(append([]byte{}, payment...), stake...), isScript: true, hasPayment: true, stakeIsInline: true},
		{header: 0x61, body: payment, hasPayment: true},
		{header: 0x71, body: payment, isScript: true, hasPayment: true},
		{header: 0xe1, body: stake, hasStakeKey: true, stakeIsInline: true},
		{header: 0xf1, body: stake, stakeIsInline: true},
	}
	for _, testDef := range testDefs {
		addr, err := NewAddressFromHex(
			hex.EncodeToString(append([]byte{testDef.header}, testDef.body...)),
		)
		require.NoError(t, err, "header %x", testDef.header)
		assert.Equal(t, testDef.isScript, addr.IsPaymentScript(), "header %x", testDef.header)
		paymentHash, ok := addr.PaymentHash()
		assert.Equal(t, testDef.hasPayment, ok, "header %x", testDef.header)
		if ok {
			assert.Equal(t, payment, paymentHash)
		}
		stakeKeyHash, ok := addr.StakeKeyHash()
		assert.Equal(t, testDef.hasStakeKey, ok, "header %x", testDef.header)
		if ok {
			assert.Equal(t, stake, stakeKeyHash)
		}
		_, ok = addr.StakeHash()
		assert.Equal(t, testDef.stakeIsInline, ok, "header %x", testDef.header)
	}
	_, err := NewAddressFromHex("01abcd")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NewAddressFromHex("zz")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NewAddressFromHex("")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressFromLedger(t *testing.T) {
	ledgerAddr, err := lcommon.NewAddress(testMainnetAddr)
	require.NoError(t, err)
	addr, err := NewAddressFromLedger(ledgerAddr)
	require.NoError(t, err)
	fromBech32, err := NewAddressFromBech32(testMainnetAddr)
	require.NoError(t, err)
	assert.True(t, addr.Equal(fromBech32))
	assert.Equal(t, testMainnetAddr, addr.Ledger().String())
	paymentHash, ok := addr.PaymentHash()
	require.True(t, ok)
	assert.Equal(t, ledgerAddr.PaymentKeyHash().Bytes(), paymentHash)
}

func TestAddressZero(t *testing.T) {
	var addr Address
	assert.True(t, addr.IsZero())
	assert.False(t, addr.IsPaymentKey())
	assert.False(t, addr.IsPaymentScript())
	_, ok := addr.PaymentHash()
	assert.False(t, ok)
	_, ok = addr.StakeKeyHash()
	assert.False(t, ok)
	assert.Empty(t, addr.String())
}

func TestPoint(t *testing.T) {
	assert.True(t, Point{}.IsOrigin())
	assert.Equal(t, "origin", Point{}.String())
	p := NewPoint(42, []byte{0x01, 0x02})
	assert.False(t, p.IsOrigin())
	assert.Equal(t, "42.0102", p.String())
}

func TestTxSpentInputs(t *testing.T) {
	tx := &Tx{
		Inputs:     []Input{{TxHash: "aa", Index: 0}},
		Collateral: []Input{{TxHash: "bb", Index: 1}},
		Valid:      true,
	}
	assert.Equal(t, tx.Inputs, tx.SpentInputs())
	tx.Valid = false
	assert.Equal(t, tx.Collateral, tx.SpentInputs())
}

func TestTxRequiredSigner(t *testing.T) {
	keyHash := bytes.Repeat([]byte{0x0c}, 28)
	tx := &Tx{RequiredSigners: []string{hex.EncodeToString(keyHash)}}
	assert.True(t, tx.HasRequiredSigner(keyHash))
	assert.False(t, tx.HasRequiredSigner(bytes.Repeat([]byte{0x0d}, 28)))
}

func TestOutputAssetQuantity(t *testing.T) {
	out := &Output{
		Assets: []AssetAmount{
			{PolicyId: "aa", AssetName: "01", Quantity: big.NewInt(5)},
			{PolicyId: "aa", AssetName: "02", Quantity: big.NewInt(7)},
		},
	}
	assert.Equal(t, 0, out.AssetQuantity("aa", "02").Cmp(big.NewInt(7)))
	assert.Equal(t, 0, out.AssetQuantity("bb", "01").Sign())
	assert.Equal(t, "aa.01", out.Assets[0].Unit())
}

func TestEraFromBlockType(t *testing.T) {
	assert.Equal(t, EraBabbage, EraFromBlockType(int(babbage.BlockTypeBabbage)))
	assert.False(t, EraFromBlockType(0).Supported())
}

func TestNewTxFromMock(t *testing.T) {
	ws := mockledger.NewMockTransactionWitnessSet().
		WithVkeyWitnesses(lcommon.VkeyWitness{
			Vkey:      make([]byte, 32),
			Signature: make([]byte, 64),
		})
	mockTx := mockledger.NewTransactionBuilder().
		WithWitnesses(ws)
	mockTx.WithId(bytes.Repeat([]byte{0x42}, 32))
	tx, err := NewTx(mockTx)
	require.NoError(t, err)
	assert.Equal(t, mockTx.Hash().String(), tx.Hash)
	assert.Empty(t, tx.Outputs)
	assert.Empty(t, tx.Metadata)
	assert.Empty(t, tx.Datums)
}
