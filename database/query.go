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

package database

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/govaudit/database/models"
	"gorm.io/gorm"
)

// Tip returns the most recently projected block, or nil when no blocks
// have been projected
func (d *Database) Tip(ctx context.Context) (*models.Block, error) {
	return d.LastStableBlock(ctx, 0)
}

// LastStableBlock returns the block depth blocks behind the most recently
// projected one, or nil when fewer blocks exist
func (d *Database) LastStableBlock(ctx context.Context, depth int) (*models.Block, error) {
	var ret models.Block
	result := d.db.WithContext(ctx).
		Order("id DESC").
		Offset(depth).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return nil, fmt.Errorf("query blocks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &ret, nil
}

func preloadProposal(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Poll").
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choice_index")
		}).
		Preload("States", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		})
}

// ListProposals returns every proposal with its poll, choices and status
// history
func (d *Database) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	var ret []models.Proposal
	result := preloadProposal(d.db.WithContext(ctx)).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, fmt.Errorf("query proposals: %w", result.Error)
	}
	return ret, nil
}

// ProposalByTxHash returns the proposal created by the given transaction,
// or nil when there is none
func (d *Database) ProposalByTxHash(ctx context.Context, txHash []byte) (*models.Proposal, error) {
	var ret models.Proposal
	result := preloadProposal(d.db.WithContext(ctx)).
		Where("tx_hash = ?", txHash).
		Order("id").
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query proposal: %w", result.Error)
	}
	return &ret, nil
}

// PowerTally is the voting power counted for a choice, split by the
// verification outcome of the votes
type PowerTally struct {
	Verified   *big.Int
	Unverified *big.Int
	Voters     int
}

func newPowerTally() PowerTally {
	return PowerTally{
		Verified:   new(big.Int),
		Unverified: new(big.Int),
	}
}

func (p PowerTally) Total() *big.Int {
	return new(big.Int).Add(p.Verified, p.Unverified)
}

func (p *PowerTally) add(vote *models.Vote) {
	switch vote.VerificationState {
	case models.VerificationStateVerified:
		p.Verified.Add(p.Verified, vote.VotingPower.Big())
	case models.VerificationStateUnverified:
		p.Unverified.Add(p.Unverified, vote.VotingPower.Big())
	default:
		return
	}
	p.Voters++
}

type ChoiceResult struct {
	Choice models.ProposalChoice
	Tally  PowerTally
}

type ProposalResults struct {
	Choices []ChoiceResult
	Total   PowerTally
}

// ProposalResults tallies the votes for a proposal. Only the latest
// non-invalid vote of each stake key counts. Abstentions are reported as
// a trailing choice with index -1.
func (d *Database) ProposalResults(ctx context.Context, proposal *models.Proposal) (*ProposalResults, error) {
	var votes []models.Vote
	result := d.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("votes.*").
		Joins("LEFT JOIN blocks ON blocks.id = votes.block_id").
		Where(
			"votes.proposal_id = ? AND votes.verification_state <> ?",
			proposal.ID,
			models.VerificationStateInvalid,
		).
		Order("blocks.height DESC, votes.id DESC").
		Find(&votes)
	if result.Error != nil {
		return nil, fmt.Errorf("query votes: %w", result.Error)
	}
	byChoice := make(map[uint]*PowerTally)
	abstain := newPowerTally()
	total := newPowerTally()
	seen := make(map[string]struct{})
	for i := range votes {
		vote := &votes[i]
		owner := hex.EncodeToString(vote.OwnerStakeKeyHash)
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		total.add(vote)
		if vote.ChoiceID == nil {
			abstain.add(vote)
			continue
		}
		tally, ok := byChoice[*vote.ChoiceID]
		if !ok {
			tmpTally := newPowerTally()
			tally = &tmpTally
			byChoice[*vote.ChoiceID] = tally
		}
		tally.add(vote)
	}
	ret := &ProposalResults{Total: total}
	for _, choice := range proposal.Choices {
		tally := newPowerTally()
		if tmpTally, ok := byChoice[choice.ID]; ok {
			tally = *tmpTally
		}
		ret.Choices = append(ret.Choices, ChoiceResult{Choice: choice, Tally: tally})
	}
	ret.Choices = append(ret.Choices, ChoiceResult{
		Choice: models.ProposalChoice{
			ProposalID: proposal.ID,
			Index:      models.AbstainChoiceIndex,
			Type:       models.ChoiceTypeAbstain,
			Value:      "abstain",
		},
		Tally: abstain,
	})
	return ret, nil
}
