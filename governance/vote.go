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

package governance

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/blinklabs-io/govaudit/database/types"
	"github.com/blinklabs-io/govaudit/metadatum"
	"github.com/blinklabs-io/govaudit/project"
	"github.com/blinklabs-io/govaudit/slotclock"
)

type VoteIngestor struct {
	logger   *slog.Logger
	clock    slotclock.SlotTimeProvider
	verifier project.VotingPowerVerifier
}

func NewVoteIngestor(cfg Config) (*VoteIngestor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &VoteIngestor{
		logger:   cfg.Logger.With("component", "votes"),
		clock:    cfg.Clock,
		verifier: cfg.Project,
	}, nil
}

// ScrapeVotes stores the votes cast by the transaction. Every poll entry
// is handled on its own: a rejected or failed entry does not affect the
// others. An error is only returned when the context is cancelled, since
// voting power computed during cancellation cannot be trusted.
func (v *VoteIngestor) ScrapeVotes(
	ctx context.Context,
	txn *database.Txn,
	tx *chain.Tx,
	block *models.Block,
) ([]models.Vote, error) {
	value := labelValue(tx, metadatum.LabelVote)
	if value == nil {
		return nil, nil
	}
	vote, err := metadatum.ParseVote(value)
	if err != nil {
		v.logger.Warn(
			"ignoring invalid vote metadatum",
			"tx_hash", tx.Hash,
			"error", err,
		)
		return nil, nil
	}
	var ret []models.Vote
	for _, entry := range vote.Entries {
		logger := v.logger.With("tx_hash", tx.Hash, "poll", entry.PollTxHash)
		votes, err := v.scrapeEntry(ctx, txn, tx, block, entry)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			if errors.Is(err, errSkipped) {
				logger.Info("vote not recorded", "reason", err)
			} else {
				logger.Error("failed to store vote", "error", err)
			}
			continue
		}
		if len(votes) > 0 {
			logger.Info(
				"vote recorded",
				"proposals", len(votes),
				"verification_state", votes[0].VerificationState,
			)
		}
		ret = append(ret, votes...)
	}
	return ret, nil
}

func (v *VoteIngestor) scrapeEntry(
	ctx context.Context,
	txn *database.Txn,
	tx *chain.Tx,
	block *models.Block,
	entry metadatum.VoteEntry,
) ([]models.Vote, error) {
	txHash, err := decodeTxHash(tx.Hash)
	if err != nil {
		return nil, err
	}
	pollTxHash, err := decodeTxHash(entry.PollTxHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSkipped, err)
	}
	poll, err := txn.FindPollByTxHash(pollTxHash)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, fmt.Errorf("%w: poll not found", errSkipped)
	}
	txTime := v.clock.SlotToTime(block.Slot)
	if txTime.Before(poll.Start) || txTime.After(poll.End) {
		return nil, fmt.Errorf(
			"%w: cast at %s outside of the poll window",
			errSkipped,
			txTime,
		)
	}
	owner, err := chain.NewAddressFromHex(entry.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", errSkipped, err)
	}
	ownerStakeKeyHash, ok := owner.StakeKeyHash()
	if !ok {
		return nil, fmt.Errorf("%w: owner address has no stake key", errSkipped)
	}
	if !tx.HasRequiredSigner(ownerStakeKeyHash) {
		return nil, fmt.Errorf("%w: vote is not signed by the owner stake key", errSkipped)
	}
	ownerPubKeyHash, _ := owner.PaymentHash()
	snapshotSlot := v.clock.TimeToSlot(poll.Snapshot)
	checkedPower := v.verifier.VerifyVotingPower(
		ctx,
		snapshotSlot,
		ownerStakeKeyHash,
		entry.UTxOs,
	)
	verificationState := models.VerificationStateVerified
	if entry.Power.Cmp(checkedPower) > 0 {
		verificationState = models.VerificationStateInvalid
	}
	proposalTxHashes := make([][]byte, 0, len(entry.Choices))
	for proposalTxHash := range entry.Choices {
		tmpHash, err := decodeTxHash(proposalTxHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errSkipped, err)
		}
		proposalTxHashes = append(proposalTxHashes, tmpHash)
	}
	utxos := make(types.StringList, 0, len(entry.UTxOs))
	for _, utxo := range entry.UTxOs {
		utxos = append(utxos, utxo.String())
	}
	var votes []models.Vote
	err = txn.Atomic(func(txn *database.Txn) error {
		proposals, err := txn.FindProposals(poll.ID, proposalTxHashes)
		if err != nil {
			return err
		}
		for _, proposal := range proposals {
			votes = append(votes, models.Vote{
				OwnerAddress:      owner.String(),
				OwnerPubKeyHash:   ownerPubKeyHash,
				OwnerStakeKeyHash: ownerStakeKeyHash,
				ProposalID:        proposal.ID,
				ChoiceID:          choiceID(&proposal, entry.Choices[hex.EncodeToString(proposal.TxHash)]),
				PollID:            poll.ID,
				VotingPower:       types.NewBigInt(entry.Power),
				VotingUTxOs:       utxos,
				VerificationState: verificationState,
				BlockID:           block.ID,
				TxHash:            txHash,
			})
		}
		return txn.CreateVotes(votes)
	})
	if err != nil {
		return nil, err
	}
	v.logger.Debug(
		"verified voting power",
		"tx_hash", tx.Hash,
		"snapshot_slot", snapshotSlot,
		"claimed", entry.Power.String(),
		"checked", checkedPower.String(),
	)
	return votes, nil
}

// choiceID maps a choice index to the stored choice. Negative and unknown
// indexes abstain.
func choiceID(proposal *models.Proposal, index int64) *uint {
	if index < 0 {
		return nil
	}
	for _, choice := range proposal.Choices {
		if int64(choice.Index) == index {
			id := choice.ID
			return &id
		}
	}
	return nil
}
