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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigInt(t *testing.T) {
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	val, err := NewBigInt(huge).Value()
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", val)
	var tmp BigInt
	require.NoError(t, tmp.Scan("123456789012345678901234567890"))
	assert.Equal(t, 0, tmp.Cmp(huge))
	require.NoError(t, tmp.Scan([]byte("-5")))
	assert.Equal(t, int64(-5), tmp.Int64())
	require.Error(t, tmp.Scan("five"))
	require.Error(t, tmp.Scan(1.5))
	val, err = BigInt{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "0", val)
	assert.Equal(t, 0, BigInt{}.Big().Sign())
}

func TestStringList(t *testing.T) {
	val, err := StringList{"aa#0", "bb#1"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["aa#0","bb#1"]`, val)
	var tmp StringList
	require.NoError(t, tmp.Scan(`["aa#0","bb#1"]`))
	assert.Equal(t, StringList{"aa#0", "bb#1"}, tmp)
	require.NoError(t, tmp.Scan(nil))
	assert.Empty(t, tmp)
	require.Error(t, tmp.Scan("{"))
	val, err = StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", val)
}
