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
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner    = "01" + strings.Repeat("ab", 28) + strings.Repeat("cd", 28)
	testPollHash = strings.Repeat("11", 32)
	testPropHash = strings.Repeat("22", 32)
)

func testAddProposal() map[string]any {
	return map[string]any{
		"op": "addProposal",
		"proposal": map[string]any{
			"name":          "Treasury",
			"description":   []any{"Spend the ", "treasury"},
			"owner":         testOwner,
			"uri":           "https://example.com",
			"communityUri":  "https://forum.example.com",
			"acceptChoices": []any{"Yes", []any{"Yes, ", "but later"}},
			"rejectChoices": []any{"No"},
		},
		"poll": map[string]any{
			"op":       "create",
			"start":    big.NewInt(1_700_000_000_000),
			"end":      big.NewInt(1_700_100_000_000),
			"snapshot": big.NewInt(1_699_999_900_000),
		},
	}
}

func TestParseAddProposal(t *testing.T) {
	ret, err := ParseManage(testAddProposal())
	require.NoError(t, err)
	add, ok := ret.(*AddProposal)
	require.True(t, ok)
	assert.Equal(t, ManageOpAddProposal, add.Op())
	assert.Equal(t, "Spend the treasury", add.Proposal.Description)
	assert.Equal(t, []string{"Yes", "Yes, but later"}, add.Proposal.AcceptChoices)
	assert.Equal(t, []string{"No"}, add.Proposal.RejectChoices)
	assert.Equal(t, PollOpCreateNew, add.Poll.Op)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).UTC(), add.Poll.Start)
	require.NotNil(t, add.Poll.Snapshot)
	assert.Equal(t, time.UnixMilli(1_699_999_900_000).UTC(), add.Poll.SnapshotTime())
}

func TestParseAddProposalSnapshotDefault(t *testing.T) {
	md := testAddProposal()
	delete(md["poll"].(map[string]any), "snapshot")
	ret, err := ParseManage(md)
	require.NoError(t, err)
	add := ret.(*AddProposal)
	assert.Nil(t, add.Poll.Snapshot)
	assert.Equal(t, add.Poll.Start, add.Poll.SnapshotTime())
}

func TestParseAssignExistingPoll(t *testing.T) {
	md := testAddProposal()
	md["poll"] = map[string]any{
		"op": "assign",
		"id": strings.ToUpper(testPollHash),
	}
	ret, err := ParseManage(md)
	require.NoError(t, err)
	add := ret.(*AddProposal)
	assert.Equal(t, PollOpAssignExisting, add.Poll.Op)
	assert.Equal(t, testPollHash, add.Poll.Id)
}

func TestParseManageOtherOps(t *testing.T) {
	ret, err := ParseManage(map[string]any{
		"op":     "cancelProposal",
		"id":     testPropHash,
		"reason": []any{"dup", "licate"},
	})
	require.NoError(t, err)
	cancel, ok := ret.(*CancelProposal)
	require.True(t, ok)
	assert.Equal(t, "duplicate", cancel.Reason)

	ret, err = ParseManage(map[string]any{
		"op":        "concludeProposal",
		"id":        testPropHash,
		"result":    "PASSED",
		"choices":   map[string]any{"Yes": big.NewInt(10), "No": big.NewInt(2)},
		"total":     big.NewInt(12),
		"abstained": big.NewInt(1),
		"note":      "done",
	})
	require.NoError(t, err)
	conclude, ok := ret.(*ConcludeProposal)
	require.True(t, ok)
	assert.Equal(t, ProposalResultPassed, conclude.Result)
	assert.Equal(t, big.NewInt(10), conclude.Choices["Yes"])
}

func TestParseManageInvalid(t *testing.T) {
	testDefs := []struct {
		name   string
		mutate func(map[string]any)
		path   string
	}{
		{
			name:   "unknown op",
			mutate: func(m map[string]any) { m["op"] = "deleteEverything" },
			path:   "$.op",
		},
		{
			name: "short owner",
			mutate: func(m map[string]any) {
				m["proposal"].(map[string]any)["owner"] = "abcd"
			},
			path: "$.proposal.owner",
		},
		{
			name: "missing start",
			mutate: func(m map[string]any) {
				delete(m["poll"].(map[string]any), "start")
			},
			path: "$.poll.start",
		},
		{
			name: "numeric name",
			mutate: func(m map[string]any) {
				m["proposal"].(map[string]any)["name"] = big.NewInt(1)
			},
			path: "$.proposal.name",
		},
		{
			name: "mixed choice chunks",
			mutate: func(m map[string]any) {
				m["proposal"].(map[string]any)["rejectChoices"] = []any{
					[]any{"a", big.NewInt(1)},
				}
			},
			path: "$.proposal.rejectChoices[0]",
		},
		{
			name: "unknown poll op",
			mutate: func(m map[string]any) {
				m["poll"].(map[string]any)["op"] = "merge"
			},
			path: "$.poll.op",
		},
	}
	for _, testDef := range testDefs {
		md := testAddProposal()
		testDef.mutate(md)
		_, err := ParseManage(md)
		require.Error(t, err, testDef.name)
		assert.True(t, errors.Is(err, ErrInvalidMetadatum), testDef.name)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), testDef.name)
		assert.Equal(t, testDef.path, validationErr.Path, testDef.name)
	}
	_, err := ParseManage("not a map")
	require.ErrorIs(t, err, ErrInvalidMetadatum)
}

func testVote() map[string]any {
	return map[string]any{
		testPollHash: map[string]any{
			"owner": testOwner,
			"power": big.NewInt(1_000_000),
			"utxos": []any{
				[]any{strings.Repeat("33", 32), big.NewInt(0)},
				[]any{strings.Repeat("44", 32), big.NewInt(3)},
			},
			"choices": map[string]any{
				testPropHash:              big.NewInt(1),
				strings.Repeat("55", 32): big.NewInt(-1),
			},
		},
	}
}

func TestParseVote(t *testing.T) {
	vote, err := ParseVote(testVote())
	require.NoError(t, err)
	require.Len(t, vote.Entries, 1)
	entry := vote.Entries[0]
	assert.Equal(t, testPollHash, entry.PollTxHash)
	assert.Equal(t, big.NewInt(1_000_000), entry.Power)
	require.Len(t, entry.UTxOs, 2)
	assert.Equal(t, strings.Repeat("44", 32)+"#3", entry.UTxOs[1].String())
	assert.Equal(t, int64(1), entry.Choices[testPropHash])
	assert.Equal(t, int64(-1), entry.Choices[strings.Repeat("55", 32)])
}

func TestParseVoteInvalid(t *testing.T) {
	testDefs := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{
			name: "bad poll key",
			mutate: func(m map[string]any) {
				m["nothex"] = m[testPollHash]
			},
		},
		{
			name: "utxo tuple too short",
			mutate: func(m map[string]any) {
				m[testPollHash].(map[string]any)["utxos"] = []any{
					[]any{strings.Repeat("33", 32)},
				}
			},
		},
		{
			name: "negative output index",
			mutate: func(m map[string]any) {
				m[testPollHash].(map[string]any)["utxos"] = []any{
					[]any{strings.Repeat("33", 32), big.NewInt(-1)},
				}
			},
		},
		{
			name: "power as string",
			mutate: func(m map[string]any) {
				m[testPollHash].(map[string]any)["power"] = "100"
			},
		},
		{
			name: "bad proposal key",
			mutate: func(m map[string]any) {
				m[testPollHash].(map[string]any)["choices"] = map[string]any{
					"zz": big.NewInt(0),
				}
			},
		},
	}
	for _, testDef := range testDefs {
		md := testVote()
		testDef.mutate(md)
		_, err := ParseVote(md)
		require.ErrorIs(t, err, ErrInvalidMetadatum, testDef.name)
	}
}
