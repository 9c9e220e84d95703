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

// Index of the output locking the proposal collateral
const collateralOutputIndex = 0

type ProposalIngestor struct {
	logger  *slog.Logger
	clock   slotclock.SlotTimeProvider
	rules   project.GovernanceRules
}

func NewProposalIngestor(cfg Config) (*ProposalIngestor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ProposalIngestor{
		logger:  cfg.Logger.With("component", "proposals"),
		clock:   cfg.Clock,
		rules:   cfg.Project,
	}, nil
}

// ScrapeProposal stores the proposal announced by the transaction, if any.
// Malformed metadata, rule violations and storage failures while saving
// the proposal are logged and leave no rows behind. The stored proposal
// is returned, or nil when nothing was stored.
func (p *ProposalIngestor) ScrapeProposal(
	ctx context.Context,
	txn *database.Txn,
	tx *chain.Tx,
	block *models.Block,
	blockIndex uint32,
) (*models.Proposal, error) {
	value := labelValue(tx, metadatum.LabelManage)
	if value == nil {
		return nil, nil
	}
	logger := p.logger.With("tx_hash", tx.Hash)
	manage, err := metadatum.ParseManage(value)
	if err != nil {
		logger.Warn("ignoring invalid manage metadatum", "error", err)
		return nil, nil
	}
	addProposal, ok := manage.(*metadatum.AddProposal)
	if !ok {
		logger.Debug("ignoring unhandled manage operation", "op", manage.Op())
		return nil, nil
	}
	if !p.rules.IsValidProposal(ctx, addProposal, tx) {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var proposal *models.Proposal
	err = txn.Atomic(func(txn *database.Txn) error {
		var err error
		proposal, err = p.storeProposal(txn, addProposal, tx, block, blockIndex)
		return err
	})
	if err != nil {
		if errors.Is(err, errSkipped) {
			logger.Info("proposal not created", "reason", err)
		} else {
			logger.Error("failed to store proposal", "error", err)
		}
		return nil, nil
	}
	logger.Info(
		"proposal created",
		"name", proposal.Name,
		"poll_id", proposal.PollID,
		"proposal_id", proposal.ID,
	)
	return proposal, nil
}

func (p *ProposalIngestor) storeProposal(
	txn *database.Txn,
	addProposal *metadatum.AddProposal,
	tx *chain.Tx,
	block *models.Block,
	blockIndex uint32,
) (*models.Proposal, error) {
	txHash, err := decodeTxHash(tx.Hash)
	if err != nil {
		return nil, err
	}
	poll, err := p.resolvePoll(txn, addProposal.Poll, txHash, block)
	if err != nil {
		return nil, err
	}
	owner, err := chain.NewAddressFromHex(addProposal.Proposal.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", errSkipped, err)
	}
	ownerPubKeyHash, ok := owner.PaymentHash()
	if !ok {
		return nil, fmt.Errorf("%w: owner address has no payment credential", errSkipped)
	}
	ownerStakeKeyHash, _ := owner.StakeHash()
	if len(tx.Outputs) <= collateralOutputIndex {
		return nil, fmt.Errorf("%w: missing collateral output", errSkipped)
	}
	collateral, err := p.storeOutput(
		txn,
		txHash,
		&tx.Outputs[collateralOutputIndex],
		block,
		blockIndex,
	)
	if err != nil {
		return nil, err
	}
	ret := &models.Proposal{
		OwnerAddress:      owner.String(),
		OwnerPubKeyHash:   ownerPubKeyHash,
		OwnerStakeKeyHash: ownerStakeKeyHash,
		TxHash:            txHash,
		TxOutputID:        collateral.ID,
		BlockID:           block.ID,
		PollID:            poll.ID,
		Uri:               addProposal.Proposal.URI,
		CommunityUri:      addProposal.Proposal.CommunityURI,
		Name:              addProposal.Proposal.Name,
		Description:       addProposal.Proposal.Description,
		States: []models.ProposalState{
			{
				Status:  models.ProposalStatusAvailable,
				TxHash:  txHash,
				BlockID: block.ID,
			},
		},
	}
	choices := make(
		[]models.ProposalChoice,
		0,
		len(addProposal.Proposal.AcceptChoices)+len(addProposal.Proposal.RejectChoices),
	)
	addChoices := func(choiceType string, values []string) {
		for _, value := range values {
			choices = append(choices, models.ProposalChoice{
				// nolint:gosec
				// Choice lists are bounded by the metadata size limit
				Index:   int32(len(choices)),
				Type:    choiceType,
				Value:   value,
				BlockID: block.ID,
			})
		}
	}
	addChoices(models.ChoiceTypeAccept, addProposal.Proposal.AcceptChoices)
	addChoices(models.ChoiceTypeReject, addProposal.Proposal.RejectChoices)
	ret.Choices = choices
	if err := txn.CreateProposal(ret); err != nil {
		return nil, err
	}
	ret.Poll = poll
	return ret, nil
}

// resolvePoll looks up an existing poll, or creates the poll announced
// alongside the proposal
func (p *ProposalIngestor) resolvePoll(
	txn *database.Txn,
	props metadatum.PollProperties,
	txHash []byte,
	block *models.Block,
) (*models.Poll, error) {
	switch props.Op {
	case metadatum.PollOpAssignExisting:
		pollTxHash, err := decodeTxHash(props.Id)
		if err != nil {
			return nil, fmt.Errorf("%w: poll id: %w", errSkipped, err)
		}
		poll, err := txn.FindPollByTxHash(pollTxHash)
		if err != nil {
			return nil, err
		}
		if poll == nil {
			return nil, fmt.Errorf("%w: poll %s not found", errSkipped, props.Id)
		}
		return poll, nil
	case metadatum.PollOpCreateNew:
		poll := &models.Poll{
			TxHash:      txHash,
			Start:       props.Start,
			End:         props.End,
			Snapshot:    props.SnapshotTime(),
			Description: props.Description,
			BlockID:     block.ID,
		}
		if err := txn.CreatePoll(poll); err != nil {
			return nil, err
		}
		return poll, nil
	}
	return nil, fmt.Errorf("%w: unknown poll operation %q", errSkipped, props.Op)
}

// storeOutput persists a transaction output with its token bundle
func (p *ProposalIngestor) storeOutput(
	txn *database.Txn,
	txHash []byte,
	output *chain.Output,
	block *models.Block,
	blockIndex uint32,
) (*models.TxOutput, error) {
	assets := make([]models.Asset, 0, len(output.Assets))
	for _, asset := range output.Assets {
		policyId, err := hex.DecodeString(asset.PolicyId)
		if err != nil {
			return nil, fmt.Errorf("decode policy id: %w", err)
		}
		assetName, err := hex.DecodeString(asset.AssetName)
		if err != nil {
			return nil, fmt.Errorf("decode asset name: %w", err)
		}
		assets = append(assets, models.Asset{
			PolicyId:  policyId,
			AssetName: assetName,
		})
	}
	storedAssets, err := txn.UpsertAssets(assets)
	if err != nil {
		return nil, err
	}
	ret := &models.TxOutput{
		TxHash:       txHash,
		OutputIndex:  output.Index,
		Address:      output.Address.String(),
		Coins:        types.NewBigInt(output.Coins),
		RawDatum:     output.Datum,
		CreationTime: p.clock.SlotToTime(block.Slot),
		BlockID:      block.ID,
		BlockIndex:   blockIndex,
	}
	ret.PubKeyHash, _ = output.Address.PaymentHash()
	ret.StakeKeyHash, _ = output.Address.StakeKeyHash()
	if output.DatumHash != "" {
		if ret.DatumHash, err = hex.DecodeString(output.DatumHash); err != nil {
			return nil, fmt.Errorf("decode datum hash: %w", err)
		}
	}
	for i, asset := range output.Assets {
		stored, ok := storedAssets[assets[i].Unit()]
		if !ok {
			return nil, fmt.Errorf("asset %s was not stored", asset.Unit())
		}
		ret.TokenBundle = append(ret.TokenBundle, models.TxOutputAsset{
			AssetID:  stored.ID,
			Quantity: types.NewBigInt(asset.Quantity),
		})
	}
	if err := txn.CreateTxOutput(ret); err != nil {
		return nil, err
	}
	return ret, nil
}
