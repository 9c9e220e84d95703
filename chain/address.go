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
	"errors"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

var ErrInvalidAddress = errors.New("invalid address")

// Address is a ledger address together with its raw binary form. The zero
// value is an empty address with no credentials.
type Address struct {
	addr lcommon.Address
	raw  []byte
}

// NewAddressFromLedger wraps an address decoded by the ledger
func NewAddressFromLedger(addr lcommon.Address) (Address, error) {
	raw, err := addr.Bytes()
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(raw) == 0 {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	return Address{addr: addr, raw: raw}, nil
}

// NewAddressFromHex parses hex encoded address bytes
func NewAddressFromHex(addrHex string) (Address, error) {
	b, err := hex.DecodeString(addrHex)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(b) == 0 {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	addr, err := lcommon.NewAddressFromBytes(b)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return NewAddressFromLedger(addr)
}

// NewAddressFromBech32 parses a bech32 encoded address
func NewAddressFromBech32(addrStr string) (Address, error) {
	addr, err := lcommon.NewAddress(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return NewAddressFromLedger(addr)
}

// Ledger returns the underlying ledger address
func (a Address) Ledger() lcommon.Address {
	return a.addr
}

func (a Address) IsZero() bool {
	return len(a.raw) == 0
}

// Type returns the address header type
func (a Address) Type() uint8 {
	return uint8(a.addr.Type()) //nolint:gosec
}

// NetworkId returns the network id from the address header
func (a Address) NetworkId() uint8 {
	return uint8(a.addr.NetworkId()) //nolint:gosec
}

// IsPaymentScript reports whether spending is controlled by a script
func (a Address) IsPaymentScript() bool {
	if a.IsZero() {
		return false
	}
	switch a.Type() {
	case lcommon.AddressTypeScriptKey, lcommon.AddressTypeScriptScript,
		lcommon.AddressTypeScriptPointer, lcommon.AddressTypeScriptNone:
		return true
	}
	return false
}

// IsPaymentKey reports whether spending is controlled by a key
func (a Address) IsPaymentKey() bool {
	if a.IsZero() {
		return false
	}
	switch a.Type() {
	case lcommon.AddressTypeKeyKey, lcommon.AddressTypeKeyScript,
		lcommon.AddressTypeKeyPointer, lcommon.AddressTypeKeyNone:
		return true
	}
	return false
}

// PaymentHash returns the payment credential hash (key or script), if the
// address has one
func (a Address) PaymentHash() ([]byte, bool) {
	if !a.IsPaymentKey() && !a.IsPaymentScript() {
		return nil, false
	}
	return a.addr.PaymentKeyHash().Bytes(), true
}

// StakeHash returns the staking credential hash (key or script), if the
// address carries one inline
func (a Address) StakeHash() ([]byte, bool) {
	if a.IsZero() {
		return nil, false
	}
	switch a.Type() {
	case lcommon.AddressTypeKeyKey, lcommon.AddressTypeScriptKey,
		lcommon.AddressTypeKeyScript, lcommon.AddressTypeScriptScript,
		lcommon.AddressTypeNoneKey, lcommon.AddressTypeNoneScript:
		return a.addr.StakeKeyHash().Bytes(), true
	}
	return nil, false
}

// StakeKeyHash returns the staking credential hash only when it is a key
// hash
func (a Address) StakeKeyHash() ([]byte, bool) {
	if a.IsZero() {
		return nil, false
	}
	switch a.Type() {
	case lcommon.AddressTypeKeyKey, lcommon.AddressTypeScriptKey,
		lcommon.AddressTypeNoneKey:
		return a.StakeHash()
	}
	return nil, false
}

func (a Address) Bytes() []byte {
	return a.raw
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.raw, other.raw)
}

func (a Address) Hex() string {
	return hex.EncodeToString(a.raw)
}

// String returns the bech32 form of Shelley addresses and the base58 form
// of Byron addresses
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.addr.String()
}
