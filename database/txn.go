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
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Txn is a handle to an open database transaction. Its methods may be
// called from multiple goroutines; statements are serialized on the
// transaction's connection.
type Txn struct {
	db   *gorm.DB
	lock *sync.Mutex
}

// Atomic runs fn inside a savepoint. An error from fn rolls back only the
// statements issued through the nested Txn and is returned to the caller.
func (t *Txn) Atomic(fn func(*Txn) error) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.db.Transaction(func(tx *gorm.DB) error {
		return fn(newTxn(tx))
	})
}

func (t *Txn) do(fn func(*gorm.DB) error) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return fn(t.db)
}

// InsertBlock stores a block, populating its ID
func (t *Txn) InsertBlock(block *models.Block) error {
	return t.do(func(db *gorm.DB) error {
		if result := db.Create(block); result.Error != nil {
			return fmt.Errorf("insert block: %w", result.Error)
		}
		return nil
	})
}

// RollbackTo removes every block after the given point, or every block
// when the point is the origin. Dependent rows are removed by the cascading
// foreign keys. The number of removed blocks is returned.
func (t *Txn) RollbackTo(point chain.Point) (int64, error) {
	var count int64
	err := t.do(func(db *gorm.DB) error {
		query := db.Session(&gorm.Session{AllowGlobalUpdate: true})
		if !point.IsOrigin() {
			query = query.Where("slot > ?", point.Slot)
		}
		result := query.Delete(&models.Block{})
		if result.Error != nil {
			return fmt.Errorf("delete blocks: %w", result.Error)
		}
		count = result.RowsAffected
		return nil
	})
	return count, err
}

// UpsertAssets makes sure a row exists for each asset and returns the
// stored rows keyed by asset unit. Existing rows are left untouched.
func (t *Txn) UpsertAssets(assets []models.Asset) (map[string]models.Asset, error) {
	ret := make(map[string]models.Asset, len(assets))
	if len(assets) == 0 {
		return ret, nil
	}
	err := t.do(func(db *gorm.DB) error {
		for _, asset := range assets {
			tmpAsset := models.Asset{
				PolicyId:  nonNil(asset.PolicyId),
				AssetName: nonNil(asset.AssetName),
			}
			result := db.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&tmpAsset)
			if result.Error != nil {
				return fmt.Errorf("insert asset: %w", result.Error)
			}
			var stored models.Asset
			result = db.Where(
				"policy_id = ? AND asset_name = ?",
				tmpAsset.PolicyId,
				tmpAsset.AssetName,
			).First(&stored)
			if result.Error != nil {
				return fmt.Errorf("read asset: %w", result.Error)
			}
			ret[stored.Unit()] = stored
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CreateTxOutput stores an output along with its token bundle
func (t *Txn) CreateTxOutput(output *models.TxOutput) error {
	return t.do(func(db *gorm.DB) error {
		if result := db.Create(output); result.Error != nil {
			return fmt.Errorf("insert tx output: %w", result.Error)
		}
		return nil
	})
}

// MarkSpent records the block spending each referenced output. Inputs which
// do not reference a stored output are ignored.
func (t *Txn) MarkSpent(blockID uint, inputs []chain.Input) (int64, error) {
	byTx := make(map[string][]uint32)
	var order []string
	for _, input := range inputs {
		if _, ok := byTx[input.TxHash]; !ok {
			order = append(order, input.TxHash)
		}
		byTx[input.TxHash] = append(byTx[input.TxHash], input.Index)
	}
	var count int64
	err := t.do(func(db *gorm.DB) error {
		for _, txHash := range order {
			txHashBytes, err := hex.DecodeString(txHash)
			if err != nil {
				return fmt.Errorf("decode input tx hash: %w", err)
			}
			result := db.Model(&models.TxOutput{}).
				Where(
					"tx_hash = ? AND output_index IN ? AND spend_block_id IS NULL",
					txHashBytes,
					byTx[txHash],
				).
				Update("spend_block_id", blockID)
			if result.Error != nil {
				return fmt.Errorf("mark outputs spent: %w", result.Error)
			}
			count += result.RowsAffected
		}
		return nil
	})
	return count, err
}

// FindPollByTxHash returns the poll created by the given transaction, or
// nil when there is none
func (t *Txn) FindPollByTxHash(txHash []byte) (*models.Poll, error) {
	var ret models.Poll
	err := t.do(func(db *gorm.DB) error {
		return db.Where("tx_hash = ?", txHash).Order("id").First(&ret).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find poll: %w", err)
	}
	return &ret, nil
}

func (t *Txn) CreatePoll(poll *models.Poll) error {
	return t.do(func(db *gorm.DB) error {
		if result := db.Create(poll); result.Error != nil {
			return fmt.Errorf("insert poll: %w", result.Error)
		}
		return nil
	})
}

// CreateProposal stores a proposal together with its choices and states
func (t *Txn) CreateProposal(proposal *models.Proposal) error {
	return t.do(func(db *gorm.DB) error {
		if result := db.Omit("Poll").Create(proposal); result.Error != nil {
			return fmt.Errorf("insert proposal: %w", result.Error)
		}
		return nil
	})
}

// FindProposals returns the proposals of a poll created by any of the
// given transactions, with their choices in index order
func (t *Txn) FindProposals(pollID uint, txHashes [][]byte) ([]models.Proposal, error) {
	var ret []models.Proposal
	if len(txHashes) == 0 {
		return ret, nil
	}
	err := t.do(func(db *gorm.DB) error {
		return db.
			Preload("Choices", func(db *gorm.DB) *gorm.DB {
				return db.Order("choice_index")
			}).
			Where("poll_id = ? AND tx_hash IN ?", pollID, txHashes).
			Order("id").
			Find(&ret).Error
	})
	if err != nil {
		return nil, fmt.Errorf("find proposals: %w", err)
	}
	return ret, nil
}

func (t *Txn) CreateVotes(votes []models.Vote) error {
	if len(votes) == 0 {
		return nil
	}
	return t.do(func(db *gorm.DB) error {
		if result := db.Create(&votes); result.Error != nil {
			return fmt.Errorf("insert votes: %w", result.Error)
		}
		return nil
	})
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
