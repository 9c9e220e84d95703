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
	"fmt"
	"math/big"
)

// UTxORef identifies a transaction output
type UTxORef struct {
	TxHash string
	Index  uint32
}

func (r UTxORef) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.Index)
}

// VoteEntry is the vote cast for the proposals of a single poll
type VoteEntry struct {
	PollTxHash string
	Owner      string // hex encoded address bytes
	Power      *big.Int
	UTxOs      []UTxORef
	// Proposal tx hash to choice index. Negative indexes abstain.
	Choices map[string]int64
}

// Vote is a validated vote metadatum. Entries are ordered by poll hash.
type Vote struct {
	Entries []VoteEntry
}

// ParseVote validates a decoded metadatum found under LabelVote
func ParseVote(v any) (*Vote, error) {
	m, err := asMap(v, "$")
	if err != nil {
		return nil, err
	}
	ret := &Vote{
		Entries: make([]VoteEntry, 0, len(m)),
	}
	for _, pollHash := range sortedKeys(m) {
		path := joinPath("$", pollHash)
		if !isHex(pollHash, TxHashLength) {
			return nil, invalid(path, "poll key is not a transaction hash")
		}
		entry, err := parseVoteEntry(m[pollHash], path)
		if err != nil {
			return nil, err
		}
		entry.PollTxHash = normalizeHex(pollHash)
		ret.Entries = append(ret.Entries, entry)
	}
	return ret, nil
}

func parseVoteEntry(v any, path string) (VoteEntry, error) {
	var ret VoteEntry
	m, err := asMap(v, path)
	if err != nil {
		return ret, err
	}
	if ret.Owner, err = hexField(m, "owner", path, BaseAddressLength); err != nil {
		return ret, err
	}
	if ret.Power, err = intField(m, "power", path); err != nil {
		return ret, err
	}
	utxosVal, err := requireField(m, "utxos", path)
	if err != nil {
		return ret, err
	}
	utxosPath := joinPath(path, "utxos")
	utxos, err := asList(utxosVal, utxosPath)
	if err != nil {
		return ret, err
	}
	ret.UTxOs = make([]UTxORef, 0, len(utxos))
	for idx, item := range utxos {
		ref, err := parseUTxORef(item, indexPath(utxosPath, idx))
		if err != nil {
			return ret, err
		}
		ret.UTxOs = append(ret.UTxOs, ref)
	}
	choicesVal, err := requireField(m, "choices", path)
	if err != nil {
		return ret, err
	}
	choicesPath := joinPath(path, "choices")
	choices, err := asMap(choicesVal, choicesPath)
	if err != nil {
		return ret, err
	}
	ret.Choices = make(map[string]int64, len(choices))
	for _, proposalHash := range sortedKeys(choices) {
		choicePath := joinPath(choicesPath, proposalHash)
		if !isHex(proposalHash, TxHashLength) {
			return ret, invalid(choicePath, "proposal key is not a transaction hash")
		}
		choice, err := asInt64(choices[proposalHash], choicePath)
		if err != nil {
			return ret, err
		}
		ret.Choices[normalizeHex(proposalHash)] = choice
	}
	return ret, nil
}

func parseUTxORef(v any, path string) (UTxORef, error) {
	var ret UTxORef
	items, err := asList(v, path)
	if err != nil {
		return ret, err
	}
	if len(items) != 2 {
		return ret, invalid(path, "expected [txHash, index], got %d items", len(items))
	}
	if ret.TxHash, err = asHex(items[0], indexPath(path, 0), TxHashLength); err != nil {
		return ret, err
	}
	if ret.Index, err = asUint32(items[1], indexPath(path, 1)); err != nil {
		return ret, err
	}
	return ret, nil
}
