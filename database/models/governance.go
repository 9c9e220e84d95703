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

package models

import (
	"time"

	"github.com/blinklabs-io/govaudit/database/types"
)

const (
	ChoiceTypeAccept = "ACCEPT"
	ChoiceTypeReject = "REJECT"
	// Only reported when tallying, never stored
	ChoiceTypeAbstain = "ABSTAIN"

	ProposalStatusAvailable = "AVAILABLE"

	VerificationStateUnverified = "UNVERIFIED"
	VerificationStateVerified   = "VERIFIED"
	VerificationStateInvalid    = "INVALID"
)

// AbstainChoiceIndex is the index of the virtual abstain choice reported
// alongside the stored choices of a proposal
const AbstainChoiceIndex = -1

type Poll struct {
	Start       time.Time
	End         time.Time
	Snapshot    time.Time
	Description string
	TxHash      []byte     `gorm:"index;size:32"`
	Proposals   []Proposal `gorm:"foreignKey:PollID;references:ID;constraint:OnDelete:CASCADE"`
	ID          uint       `gorm:"primarykey"`
	BlockID     uint       `gorm:"index"`
}

func (Poll) TableName() string {
	return "polls"
}

type Proposal struct {
	Poll              *Poll `gorm:"foreignKey:PollID"`
	OwnerAddress      string
	Uri               string
	CommunityUri      string
	Name              string
	Description       string
	OwnerPubKeyHash   []byte           `gorm:"size:28"`
	OwnerStakeKeyHash []byte           `gorm:"size:28"`
	TxHash            []byte           `gorm:"index;size:32"`
	Choices           []ProposalChoice `gorm:"foreignKey:ProposalID;references:ID;constraint:OnDelete:CASCADE"`
	States            []ProposalState  `gorm:"foreignKey:ProposalID;references:ID;constraint:OnDelete:CASCADE"`
	ID                uint             `gorm:"primarykey"`
	TxOutputID        uint             `gorm:"index"`
	BlockID           uint             `gorm:"index"`
	PollID            uint             `gorm:"index"`
}

func (Proposal) TableName() string {
	return "proposals"
}

// Status returns the most recently recorded proposal status
func (p *Proposal) Status() string {
	var ret string
	var lastID uint
	for _, state := range p.States {
		if state.ID >= lastID {
			lastID = state.ID
			ret = state.Status
		}
	}
	return ret
}

type ProposalChoice struct {
	Type       string
	Value      string
	ID         uint  `gorm:"primarykey"`
	ProposalID uint  `gorm:"index"`
	BlockID    uint  `gorm:"index"`
	Index      int32 `gorm:"column:choice_index"`
}

func (ProposalChoice) TableName() string {
	return "proposal_choices"
}

type ProposalState struct {
	Status     string
	TxHash     []byte `gorm:"size:32"`
	ID         uint   `gorm:"primarykey"`
	ProposalID uint   `gorm:"index"`
	BlockID    uint   `gorm:"index"`
}

func (ProposalState) TableName() string {
	return "proposal_states"
}

// Vote is one voting transaction's choice for a single proposal. A nil
// ChoiceID records an abstention.
type Vote struct {
	ChoiceID          *uint `gorm:"index"`
	VotingPower       types.BigInt
	OwnerAddress      string
	VerificationState string `gorm:"index"`
	VotingUTxOs       types.StringList
	OwnerPubKeyHash   []byte `gorm:"size:28"`
	OwnerStakeKeyHash []byte `gorm:"index;size:28"`
	TxHash            []byte `gorm:"index;size:32"`
	ID                uint   `gorm:"primarykey"`
	ProposalID        uint   `gorm:"index"`
	PollID            uint   `gorm:"index"`
	BlockID           uint   `gorm:"index"`
}

func (Vote) TableName() string {
	return "votes"
}
