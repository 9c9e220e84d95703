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

package metadatum

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// Governance metadata labels
const (
	LabelManage uint64 = 5752
	LabelVote   uint64 = 5753
)

// Decode converts a metadatum into a JSON-like tree made of *big.Int,
// string, []any and map[string]any values. Bytes become hex strings.
// Map keys that decode to a list of strings are joined back together,
// since long keys are split across several text chunks on chain.
func Decode(md lcommon.TransactionMetadatum) any {
	switch m := md.(type) {
	case lcommon.MetaInt:
		if m.Value == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(m.Value)
	case lcommon.MetaText:
		return m.Value
	case lcommon.MetaBytes:
		return hex.EncodeToString(m.Value)
	case lcommon.MetaList:
		ret := make([]any, 0, len(m.Items))
		for _, item := range m.Items {
			ret = append(ret, Decode(item))
		}
		return ret
	case lcommon.MetaMap:
		ret := make(map[string]any, len(m.Pairs))
		for _, pair := range m.Pairs {
			ret[keyString(Decode(pair.Key))] = Decode(pair.Value)
		}
		return ret
	default:
		panic(fmt.Sprintf("unsupported metadatum type: %T", md))
	}
}

// JoinString returns the string represented by a plain string value or a
// list of string chunks
func JoinString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []any:
		var sb strings.Builder
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	default:
		return "", false
	}
}

// keyString renders a decoded map key. Lists starting with a string are
// chunked text and are concatenated; other values use script-style string
// conversion, so [1,2] becomes "1,2" and nested maps become
// "[object Object]".
func keyString(v any) string {
	if list, ok := v.([]any); ok && len(list) > 0 {
		if _, isText := list[0].(string); isText {
			var sb strings.Builder
			for _, item := range list {
				sb.WriteString(scriptString(item))
			}
			return sb.String()
		}
	}
	return scriptString(v)
}

func scriptString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *big.Int:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scriptString(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(val)
	}
}
