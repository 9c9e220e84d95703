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
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

var ErrInvalidMetadatum = errors.New("invalid metadatum")

// Byte lengths of hex encoded fields
const (
	TxHashLength      = 32
	BaseAddressLength = 57
)

// ValidationError describes where a decoded metadatum diverges from the
// expected schema
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidMetadatum, e.Path, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMetadatum
}

func invalid(path string, format string, args ...any) error {
	return &ValidationError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

func joinPath(path string, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, idx int) string {
	return fmt.Sprintf("%s[%d]", path, idx)
}

func asMap(v any, path string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalid(path, "expected map, got %T", v)
	}
	return m, nil
}

func asList(v any, path string) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, invalid(path, "expected list, got %T", v)
	}
	return l, nil
}

func asInt(v any, path string) (*big.Int, error) {
	i, ok := v.(*big.Int)
	if !ok {
		return nil, invalid(path, "expected integer, got %T", v)
	}
	return i, nil
}

func asInt64(v any, path string) (int64, error) {
	i, err := asInt(v, path)
	if err != nil {
		return 0, err
	}
	if !i.IsInt64() {
		return 0, invalid(path, "integer %s out of range", i.String())
	}
	return i.Int64(), nil
}

// asString accepts a plain string or a list of string chunks
func asString(v any, path string) (string, error) {
	s, ok := JoinString(v)
	if !ok {
		return "", invalid(path, "expected string or list of strings, got %T", v)
	}
	return s, nil
}

// asHex accepts a plain string of exactly byteLen hex encoded bytes and
// returns it lowercased
func asHex(v any, path string, byteLen int) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", invalid(path, "expected hex string, got %T", v)
	}
	if !isHex(s, byteLen) {
		return "", invalid(
			path,
			"expected %d hex characters, got %q",
			byteLen*2,
			s,
		)
	}
	return normalizeHex(s), nil
}

func normalizeHex(s string) string {
	return strings.ToLower(s)
}

func isHex(s string, byteLen int) bool {
	if len(s) != byteLen*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func requireField(m map[string]any, key string, path string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, invalid(joinPath(path, key), "missing field")
	}
	return v, nil
}

func stringField(m map[string]any, key string, path string) (string, error) {
	v, err := requireField(m, key, path)
	if err != nil {
		return "", err
	}
	return asString(v, joinPath(path, key))
}

func hexField(
	m map[string]any,
	key string,
	path string,
	byteLen int,
) (string, error) {
	v, err := requireField(m, key, path)
	if err != nil {
		return "", err
	}
	return asHex(v, joinPath(path, key), byteLen)
}

func intField(m map[string]any, key string, path string) (*big.Int, error) {
	v, err := requireField(m, key, path)
	if err != nil {
		return nil, err
	}
	return asInt(v, joinPath(path, key))
}

func stringListField(
	m map[string]any,
	key string,
	path string,
) ([]string, error) {
	v, err := requireField(m, key, path)
	if err != nil {
		return nil, err
	}
	fieldPath := joinPath(path, key)
	items, err := asList(v, fieldPath)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(items))
	for idx, item := range items {
		s, err := asString(item, indexPath(fieldPath, idx))
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func sortedKeys(m map[string]any) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func asUint32(v any, path string) (uint32, error) {
	i, err := asInt(v, path)
	if err != nil {
		return 0, err
	}
	if i.Sign() < 0 || !i.IsUint64() || i.Uint64() > math.MaxUint32 {
		return 0, invalid(path, "integer %s out of range", i.String())
	}
	return uint32(i.Uint64()), nil
}
