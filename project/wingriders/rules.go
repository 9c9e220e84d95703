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

package wingriders

import (
	"context"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/metadatum"
)

// IsValidProposal checks that the proposal locks enough governance tokens
// at the governance address in its first output. Proposals creating a new
// poll must also be unable to land on chain after the poll starts, and
// their snapshot must not follow the start.
func (w *WingRiders) IsValidProposal(
	_ context.Context,
	proposal *metadatum.AddProposal,
	tx *chain.Tx,
) bool {
	if len(tx.Outputs) == 0 {
		w.logger.Info("proposal transaction has no outputs", "tx_hash", tx.Hash)
		return false
	}
	collateral := tx.Outputs[0]
	if !collateral.Address.Equal(w.governanceAddress) {
		w.logger.Info(
			"the proposal address does not belong to this project",
			"tx_hash", tx.Hash,
			"target_address", collateral.Address.String(),
		)
		return false
	}
	amount := collateral.AssetQuantity(
		w.consts.GovernanceToken.PolicyId,
		w.consts.GovernanceToken.AssetName,
	)
	if amount.Cmp(proposalCollateral) < 0 {
		w.logger.Warn(
			"the proposal does not have enough collateral",
			"tx_hash", tx.Hash,
			"amount", amount.String(),
		)
		return false
	}
	if proposal.Poll.Op != metadatum.PollOpCreateNew {
		return true
	}
	start := proposal.Poll.Start
	if tx.ValidityStart == nil ||
		w.network.SlotToTime(*tx.ValidityStart).After(start) ||
		proposal.Poll.SnapshotTime().After(start) {
		w.logger.Warn(
			"proposal has invalid dates",
			"tx_hash", tx.Hash,
			"poll_start", start,
			"poll_snapshot", proposal.Poll.SnapshotTime(),
		)
		return false
	}
	return true
}
