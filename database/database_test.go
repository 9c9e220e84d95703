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
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/blinklabs-io/govaudit/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testHash(b byte, size int) []byte {
	return bytes.Repeat([]byte{b}, size)
}

func countRows(t *testing.T, db *Database, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.DB().Model(model).Count(&count).Error)
	return count
}

func insertTestBlock(t *testing.T, txn *Txn, slot uint64) *models.Block {
	t.Helper()
	block := &models.Block{
		Hash:   testHash(byte(slot), 32),
		Height: slot / 10,
		Slot:   slot,
	}
	require.NoError(t, txn.InsertBlock(block))
	return block
}

// insertTestProposal stores a poll, its collateral output and a proposal
// with two choices in the given block
func insertTestProposal(t *testing.T, txn *Txn, block *models.Block) *models.Proposal {
	t.Helper()
	assets, err := txn.UpsertAssets([]models.Asset{
		{PolicyId: testHash(0x0a, 28), AssetName: []byte("WRT")},
	})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	var assetID uint
	for _, asset := range assets {
		assetID = asset.ID
	}
	output := &models.TxOutput{
		TxHash:       testHash(0x01, 32),
		OutputIndex:  0,
		Address:      "addr_test1",
		PubKeyHash:   testHash(0x02, 28),
		Coins:        types.NewBigInt(big.NewInt(2_000_000)),
		CreationTime: time.Unix(1_700_000_000, 0).UTC(),
		BlockID:      block.ID,
		TokenBundle: []models.TxOutputAsset{
			{AssetID: assetID, Quantity: types.NewBigInt(big.NewInt(7_000_000_000))},
		},
	}
	require.NoError(t, txn.CreateTxOutput(output))
	poll := &models.Poll{
		TxHash:   testHash(0x01, 32),
		Start:    time.Unix(1_700_000_000, 0).UTC(),
		End:      time.Unix(1_700_100_000, 0).UTC(),
		Snapshot: time.Unix(1_699_999_000, 0).UTC(),
		BlockID:  block.ID,
	}
	require.NoError(t, txn.CreatePoll(poll))
	proposal := &models.Proposal{
		TxHash:          testHash(0x01, 32),
		OwnerAddress:    "addr_test1",
		OwnerPubKeyHash: testHash(0x02, 28),
		Name:            "Treasury",
		TxOutputID:      output.ID,
		PollID:          poll.ID,
		BlockID:         block.ID,
		Choices: []models.ProposalChoice{
			{Index: 0, Type: models.ChoiceTypeAccept, Value: "Yes", BlockID: block.ID},
			{Index: 1, Type: models.ChoiceTypeReject, Value: "No", BlockID: block.ID},
		},
		States: []models.ProposalState{
			{Status: models.ProposalStatusAvailable, BlockID: block.ID},
		},
	}
	require.NoError(t, txn.CreateProposal(proposal))
	return proposal
}

func TestRollbackCascade(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	var proposal *models.Proposal
	err := db.Transaction(ctx, func(txn *Txn) error {
		insertTestBlock(t, txn, 10)
		block := insertTestBlock(t, txn, 20)
		proposal = insertTestProposal(t, txn, block)
		return nil
	})
	require.NoError(t, err)
	err = db.Transaction(ctx, func(txn *Txn) error {
		block := insertTestBlock(t, txn, 30)
		count, err := txn.MarkSpent(
			block.ID,
			[]chain.Input{
				{TxHash: "0101010101010101010101010101010101010101010101010101010101010101", Index: 0},
				{TxHash: "0909090909090909090909090909090909090909090909090909090909090909", Index: 0},
			},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		return txn.CreateVotes([]models.Vote{
			{
				ProposalID:        proposal.ID,
				PollID:            proposal.PollID,
				ChoiceID:          &proposal.Choices[0].ID,
				OwnerStakeKeyHash: testHash(0x03, 28),
				VotingPower:       types.NewBigInt(big.NewInt(100)),
				VotingUTxOs:       types.StringList{"aa#0"},
				VerificationState: models.VerificationStateVerified,
				BlockID:           block.ID,
			},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &models.Vote{}))

	// Roll back the spending block
	err = db.Transaction(ctx, func(txn *Txn) error {
		count, err := txn.RollbackTo(chain.NewPoint(20, testHash(20, 32)))
		assert.Equal(t, int64(1), count)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), countRows(t, db, &models.Vote{}))
	var output models.TxOutput
	require.NoError(t, db.DB().First(&output).Error)
	assert.Nil(t, output.SpendBlockID)

	// Rolling back to the same point again changes nothing
	err = db.Transaction(ctx, func(txn *Txn) error {
		count, err := txn.RollbackTo(chain.NewPoint(20, testHash(20, 32)))
		assert.Equal(t, int64(0), count)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &models.Proposal{}))

	// Roll back past the proposal block
	err = db.Transaction(ctx, func(txn *Txn) error {
		_, err := txn.RollbackTo(chain.NewPoint(10, testHash(10, 32)))
		return err
	})
	require.NoError(t, err)
	for _, model := range []any{
		&models.TxOutput{},
		&models.TxOutputAsset{},
		&models.Poll{},
		&models.Proposal{},
		&models.ProposalChoice{},
		&models.ProposalState{},
	} {
		assert.Equal(t, int64(0), countRows(t, db, model), "%T", model)
	}
	assert.Equal(t, int64(1), countRows(t, db, &models.Block{}))
	// Assets are never rolled back
	assert.Equal(t, int64(1), countRows(t, db, &models.Asset{}))

	err = db.Transaction(ctx, func(txn *Txn) error {
		_, err := txn.RollbackTo(chain.Point{})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), countRows(t, db, &models.Block{}))
}

func TestTransactionAtomicity(t *testing.T) {
	db := newTestDatabase(t)
	errInjected := errors.New("injected")
	err := db.Transaction(context.Background(), func(txn *Txn) error {
		block := insertTestBlock(t, txn, 10)
		insertTestProposal(t, txn, block)
		return errInjected
	})
	require.ErrorIs(t, err, errInjected)
	for _, model := range []any{
		&models.Block{},
		&models.TxOutput{},
		&models.Poll{},
		&models.Proposal{},
		&models.ProposalChoice{},
	} {
		assert.Equal(t, int64(0), countRows(t, db, model), "%T", model)
	}
}

func TestAtomicSavepoint(t *testing.T) {
	db := newTestDatabase(t)
	errInjected := errors.New("injected")
	err := db.Transaction(context.Background(), func(txn *Txn) error {
		block := insertTestBlock(t, txn, 10)
		err := txn.Atomic(func(inner *Txn) error {
			require.NoError(t, inner.CreatePoll(&models.Poll{
				TxHash:  testHash(0x05, 32),
				BlockID: block.ID,
			}))
			return errInjected
		})
		require.ErrorIs(t, err, errInjected)
		poll, err := txn.FindPollByTxHash(testHash(0x05, 32))
		require.NoError(t, err)
		assert.Nil(t, poll)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &models.Block{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.Poll{}))
}

func TestUpsertAssets(t *testing.T) {
	db := newTestDatabase(t)
	err := db.Transaction(context.Background(), func(txn *Txn) error {
		first, err := txn.UpsertAssets([]models.Asset{
			{PolicyId: testHash(0x0a, 28), AssetName: []byte{0x4c}},
			{PolicyId: testHash(0x0b, 28)},
		})
		require.NoError(t, err)
		second, err := txn.UpsertAssets([]models.Asset{
			{PolicyId: testHash(0x0a, 28), AssetName: []byte{0x4c}},
		})
		require.NoError(t, err)
		require.Len(t, first, 2)
		require.Len(t, second, 1)
		for unit, asset := range second {
			assert.Equal(t, first[unit].ID, asset.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), countRows(t, db, &models.Asset{}))
}

func TestLastStableBlock(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	block, err := db.Tip(ctx)
	require.NoError(t, err)
	assert.Nil(t, block)
	err = db.Transaction(ctx, func(txn *Txn) error {
		for slot := uint64(10); slot <= 50; slot += 10 {
			insertTestBlock(t, txn, slot)
		}
		return nil
	})
	require.NoError(t, err)
	block, err = db.Tip(ctx)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(50), block.Slot)
	block, err = db.LastStableBlock(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(20), block.Slot)
	block, err = db.LastStableBlock(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestProposalResults(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	var proposal *models.Proposal
	err := db.Transaction(ctx, func(txn *Txn) error {
		block := insertTestBlock(t, txn, 10)
		proposal = insertTestProposal(t, txn, block)
		return nil
	})
	require.NoError(t, err)
	newVote := func(owner byte, choiceID *uint, power int64, state string, blockID uint) models.Vote {
		return models.Vote{
			ProposalID:        proposal.ID,
			PollID:            proposal.PollID,
			ChoiceID:          choiceID,
			OwnerStakeKeyHash: testHash(owner, 28),
			VotingPower:       types.NewBigInt(big.NewInt(power)),
			VerificationState: state,
			BlockID:           blockID,
		}
	}
	acceptID := proposal.Choices[0].ID
	rejectID := proposal.Choices[1].ID
	err = db.Transaction(ctx, func(txn *Txn) error {
		block := insertTestBlock(t, txn, 20)
		return txn.CreateVotes([]models.Vote{
			newVote(0x01, &acceptID, 100, models.VerificationStateVerified, block.ID),
			newVote(0x02, &rejectID, 40, models.VerificationStateUnverified, block.ID),
			newVote(0x03, nil, 7, models.VerificationStateVerified, block.ID),
		})
	})
	require.NoError(t, err)
	err = db.Transaction(ctx, func(txn *Txn) error {
		block := insertTestBlock(t, txn, 30)
		return txn.CreateVotes([]models.Vote{
			// Owner 1 changes their mind
			newVote(0x01, &rejectID, 90, models.VerificationStateVerified, block.ID),
			// Invalid votes never replace a counted vote
			newVote(0x02, &acceptID, 1_000, models.VerificationStateInvalid, block.ID),
		})
	})
	require.NoError(t, err)

	stored, err := db.ProposalByTxHash(ctx, proposal.TxHash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Choices, 2)
	assert.Equal(t, models.ProposalStatusAvailable, stored.Status())
	require.NotNil(t, stored.Poll)

	results, err := db.ProposalResults(ctx, stored)
	require.NoError(t, err)
	require.Len(t, results.Choices, 3)
	accept := results.Choices[0].Tally
	reject := results.Choices[1].Tally
	abstain := results.Choices[2]
	assert.Equal(t, 0, accept.Total().Sign())
	assert.Equal(t, 0, reject.Verified.Cmp(big.NewInt(90)))
	assert.Equal(t, 0, reject.Unverified.Cmp(big.NewInt(40)))
	assert.Equal(t, 2, reject.Voters)
	assert.Equal(t, int32(models.AbstainChoiceIndex), abstain.Choice.Index)
	assert.Equal(t, 0, abstain.Tally.Verified.Cmp(big.NewInt(7)))
	assert.Equal(t, 0, results.Total.Total().Cmp(big.NewInt(137)))

	missing, err := db.ProposalByTxHash(ctx, testHash(0xff, 32))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
