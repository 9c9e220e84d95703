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

type TxOutput struct {
	CreationTime time.Time
	SpendBlockID *uint `gorm:"index"`
	Coins        types.BigInt
	Address      string
	TxHash       []byte          `gorm:"uniqueIndex:uniq_tx_output;size:32"`
	PubKeyHash   []byte          `gorm:"index;size:28"`
	StakeKeyHash []byte          `gorm:"index;size:28"`
	DatumHash    []byte          `gorm:"size:32"`
	RawDatum     []byte
	TokenBundle  []TxOutputAsset `gorm:"foreignKey:TxOutputID;references:ID;constraint:OnDelete:CASCADE"`
	ID           uint            `gorm:"primarykey"`
	BlockID      uint            `gorm:"index"`
	OutputIndex  uint32          `gorm:"uniqueIndex:uniq_tx_output"`
	BlockIndex   uint32
}

func (TxOutput) TableName() string {
	return "tx_outputs"
}
