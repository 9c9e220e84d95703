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
	"encoding/hex"

	"github.com/blinklabs-io/govaudit/database/types"
)

// Asset is a native token identity. Rows are shared by every output that
// holds the token and are never removed.
type Asset struct {
	PolicyId  []byte `gorm:"uniqueIndex:uniq_asset;size:28;not null"`
	AssetName []byte `gorm:"uniqueIndex:uniq_asset;size:32;not null"`
	ID        uint   `gorm:"primarykey"`
}

func (Asset) TableName() string {
	return "assets"
}

// Unit returns the asset identifier in "policy.name" hex form
func (a Asset) Unit() string {
	return hex.EncodeToString(a.PolicyId) + "." + hex.EncodeToString(a.AssetName)
}

type TxOutputAsset struct {
	Quantity   types.BigInt
	Asset      *Asset `gorm:"foreignKey:AssetID"`
	ID         uint   `gorm:"primarykey"`
	TxOutputID uint   `gorm:"index"`
	AssetID    uint   `gorm:"index"`
}

func (TxOutputAsset) TableName() string {
	return "tx_output_assets"
}
