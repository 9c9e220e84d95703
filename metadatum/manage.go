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
	"math/big"
	"time"
)

type ManageOp string

const (
	ManageOpAddProposal      ManageOp = "addProposal"
	ManageOpCancelProposal   ManageOp = "cancelProposal"
	ManageOpConcludeProposal ManageOp = "concludeProposal"
)

type PollOp string

const (
	PollOpCreateNew      PollOp = "create"
	PollOpAssignExisting PollOp = "assign"
)

type ProposalResult string

const (
	ProposalResultPassed ProposalResult = "PASSED"
	ProposalResultFailed ProposalResult = "FAILED"
)

// Manage is a validated governance management metadatum. It is one of
// *AddProposal, *CancelProposal or *ConcludeProposal.
type Manage interface {
	Op() ManageOp
}

type ProposalProperties struct {
	Name         string
	Description  string
	Owner        string // hex encoded address bytes
	URI          string
	CommunityURI string
	// Choice values in input order
	AcceptChoices []string
	RejectChoices []string
}

// PollProperties either creates a new poll or references an existing one
// by the hash of the transaction which created it
type PollProperties struct {
	Op          PollOp
	Start       time.Time
	End         time.Time
	Snapshot    *time.Time
	Description string
	Id          string
}

// SnapshotTime returns the snapshot time, defaulting to the poll start
func (p PollProperties) SnapshotTime() time.Time {
	if p.Snapshot != nil {
		return *p.Snapshot
	}
	return p.Start
}

type AddProposal struct {
	Proposal ProposalProperties
	Poll     PollProperties
}

func (*AddProposal) Op() ManageOp {
	return ManageOpAddProposal
}

type CancelProposal struct {
	Id     string
	Reason string
}

func (*CancelProposal) Op() ManageOp {
	return ManageOpCancelProposal
}

type ConcludeProposal struct {
	Id        string
	Result    ProposalResult
	Choices   map[string]*big.Int
	Total     *big.Int
	Abstained *big.Int
	Note      string
}

func (*ConcludeProposal) Op() ManageOp {
	return ManageOpConcludeProposal
}

// ParseManage validates a decoded metadatum found under LabelManage
func ParseManage(v any) (Manage, error) {
	m, err := asMap(v, "$")
	if err != nil {
		return nil, err
	}
	op, err := stringField(m, "op", "$")
	if err != nil {
		return nil, err
	}
	switch ManageOp(op) {
	case ManageOpAddProposal:
		return parseAddProposal(m)
	case ManageOpCancelProposal:
		return parseCancelProposal(m)
	case ManageOpConcludeProposal:
		return parseConcludeProposal(m)
	default:
		return nil, invalid("$.op", "unknown operation %q", op)
	}
}

func parseAddProposal(m map[string]any) (*AddProposal, error) {
	ret := &AddProposal{}
	proposalVal, err := requireField(m, "proposal", "$")
	if err != nil {
		return nil, err
	}
	proposal, err := asMap(proposalVal, "$.proposal")
	if err != nil {
		return nil, err
	}
	if ret.Proposal, err = parseProposalProperties(proposal); err != nil {
		return nil, err
	}
	pollVal, err := requireField(m, "poll", "$")
	if err != nil {
		return nil, err
	}
	poll, err := asMap(pollVal, "$.poll")
	if err != nil {
		return nil, err
	}
	if ret.Poll, err = parsePollProperties(poll); err != nil {
		return nil, err
	}
	return ret, nil
}

func parseProposalProperties(m map[string]any) (ProposalProperties, error) {
	const path = "$.proposal"
	var ret ProposalProperties
	var err error
	if ret.Name, err = stringField(m, "name", path); err != nil {
		return ret, err
	}
	if ret.Owner, err = hexField(m, "owner", path, BaseAddressLength); err != nil {
		return ret, err
	}
	if ret.Description, err = stringField(m, "description", path); err != nil {
		return ret, err
	}
	if ret.AcceptChoices, err = stringListField(m, "acceptChoices", path); err != nil {
		return ret, err
	}
	if ret.RejectChoices, err = stringListField(m, "rejectChoices", path); err != nil {
		return ret, err
	}
	if ret.URI, err = stringField(m, "uri", path); err != nil {
		return ret, err
	}
	if ret.CommunityURI, err = stringField(m, "communityUri", path); err != nil {
		return ret, err
	}
	return ret, nil
}

func parsePollProperties(m map[string]any) (PollProperties, error) {
	const path = "$.poll"
	var ret PollProperties
	op, err := stringField(m, "op", path)
	if err != nil {
		return ret, err
	}
	ret.Op = PollOp(op)
	switch ret.Op {
	case PollOpCreateNew:
		start, err := timeField(m, "start", path)
		if err != nil {
			return ret, err
		}
		ret.Start = start
		end, err := timeField(m, "end", path)
		if err != nil {
			return ret, err
		}
		ret.End = end
		if _, ok := m["snapshot"]; ok {
			snapshot, err := timeField(m, "snapshot", path)
			if err != nil {
				return ret, err
			}
			ret.Snapshot = &snapshot
		}
		if _, ok := m["description"]; ok {
			if ret.Description, err = stringField(m, "description", path); err != nil {
				return ret, err
			}
		}
	case PollOpAssignExisting:
		if ret.Id, err = hexField(m, "id", path, TxHashLength); err != nil {
			return ret, err
		}
	default:
		return ret, invalid(joinPath(path, "op"), "unknown poll operation %q", op)
	}
	return ret, nil
}

// timeField reads an integer Unix timestamp in milliseconds
func timeField(m map[string]any, key string, path string) (time.Time, error) {
	v, err := requireField(m, key, path)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := asInt64(v, joinPath(path, key))
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseCancelProposal(m map[string]any) (*CancelProposal, error) {
	ret := &CancelProposal{}
	var err error
	if ret.Id, err = hexField(m, "id", "$", TxHashLength); err != nil {
		return nil, err
	}
	if ret.Reason, err = stringField(m, "reason", "$"); err != nil {
		return nil, err
	}
	return ret, nil
}

func parseConcludeProposal(m map[string]any) (*ConcludeProposal, error) {
	ret := &ConcludeProposal{}
	var err error
	if ret.Id, err = hexField(m, "id", "$", TxHashLength); err != nil {
		return nil, err
	}
	result, err := stringField(m, "result", "$")
	if err != nil {
		return nil, err
	}
	ret.Result = ProposalResult(result)
	if ret.Result != ProposalResultPassed && ret.Result != ProposalResultFailed {
		return nil, invalid("$.result", "unknown result %q", result)
	}
	choicesVal, err := requireField(m, "choices", "$")
	if err != nil {
		return nil, err
	}
	choices, err := asMap(choicesVal, "$.choices")
	if err != nil {
		return nil, err
	}
	ret.Choices = make(map[string]*big.Int, len(choices))
	for _, k := range sortedKeys(choices) {
		count, err := asInt(choices[k], joinPath("$.choices", k))
		if err != nil {
			return nil, err
		}
		ret.Choices[k] = count
	}
	if ret.Total, err = intField(m, "total", "$"); err != nil {
		return nil, err
	}
	if ret.Abstained, err = intField(m, "abstained", "$"); err != nil {
		return nil, err
	}
	if ret.Note, err = stringField(m, "note", "$"); err != nil {
		return nil, err
	}
	return ret, nil
}
