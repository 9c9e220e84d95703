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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
)

// BigInt stores an arbitrary precision integer as its decimal string form
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

func (BigInt) GormDataType() string {
	return "text"
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	if b.Int == nil {
		b.Int = new(big.Int)
	}
	var v string
	switch tmpVal := val.(type) {
	case string:
		v = tmpVal
	case []byte:
		v = string(tmpVal)
	case int64:
		b.SetInt64(tmpVal)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	if _, ok := b.SetString(v, 10); !ok {
		return fmt.Errorf("failed to set big.Int value from string: %s", v)
	}
	return nil
}

// Big returns a copy of the value, treating unset values as zero
func (b BigInt) Big() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Int)
}

// StringList stores a list of strings as a JSON array
//
//nolint:recvcheck
type StringList []string

func (StringList) GormDataType() string {
	return "text"
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	ret, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(ret), nil
}

func (l *StringList) Scan(val any) error {
	var v []byte
	switch tmpVal := val.(type) {
	case string:
		v = []byte(tmpVal)
	case []byte:
		v = tmpVal
	case nil:
		*l = StringList{}
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	var tmpList []string
	if err := json.Unmarshal(v, &tmpList); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = tmpList
	return nil
}
