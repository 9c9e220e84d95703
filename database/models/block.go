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

// Block is a projected block. Every other projected row references the
// block which introduced it and is removed along with it on rollback.
type Block struct {
	Hash            []byte           `gorm:"uniqueIndex;size:32"`
	TxOutputs       []TxOutput       `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	SpentTxOutputs  []TxOutput       `gorm:"foreignKey:SpendBlockID;references:ID;constraint:OnDelete:SET NULL"`
	Polls           []Poll           `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	Proposals       []Proposal       `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	ProposalChoices []ProposalChoice `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	ProposalStates  []ProposalState  `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	Votes           []Vote           `gorm:"foreignKey:BlockID;references:ID;constraint:OnDelete:CASCADE"`
	ID              uint             `gorm:"primarykey"`
	Height          uint64           `gorm:"index"`
	Slot            uint64           `gorm:"index"`
}

func (Block) TableName() string {
	return "blocks"
}
