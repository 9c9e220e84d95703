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

package ouroboros

import (
	"fmt"

	"github.com/blinklabs-io/govaudit/chain"
	gledger "github.com/blinklabs-io/gouroboros/ledger"
	ochainsync "github.com/blinklabs-io/gouroboros/protocol/chainsync"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
)

func (c *ChainSyncClient) chainSyncClientConnOpts() []ochainsync.ChainSyncOptionFunc {
	return []ochainsync.ChainSyncOptionFunc{
		ochainsync.WithRollForwardFunc(c.chainSyncClientRollForward),
		ochainsync.WithRollBackwardFunc(c.chainSyncClientRollBackward),
		// Enable pipelining of RequestNext messages to speed up chainsync
		ochainsync.WithPipelineLimit(c.config.PipelineLimit),
		// Set the recv queue size to 2x our pipeline limit
		ochainsync.WithRecvQueueSize(2 * c.config.PipelineLimit),
	}
}

// chainSyncClientRollBackward handles a RollBackward message from the
// upstream node. The next message is requested once the handler returns.
func (c *ChainSyncClient) chainSyncClientRollBackward(
	_ ochainsync.CallbackContext,
	point ocommon.Point,
	tip ochainsync.Tip,
) error {
	c.logger.Debug(
		"roll backward",
		"slot", point.Slot,
		"tip_slot", tip.Point.Slot,
	)
	err := c.config.Handler.RollBackward(
		c.handlerContext(),
		chain.NewPoint(point.Slot, point.Hash),
	)
	if err != nil {
		c.fail(fmt.Errorf("roll backward: %w", err))
		return err
	}
	return nil
}

// chainSyncClientRollForward handles a RollForward message from the
// upstream node. Node-to-client chain-sync delivers full blocks.
func (c *ChainSyncClient) chainSyncClientRollForward(
	_ ochainsync.CallbackContext,
	_ uint,
	blockData any,
	tip ochainsync.Tip,
) error {
	v, ok := blockData.(gledger.Block)
	if !ok {
		err := fmt.Errorf("unexpected block data type: %T", blockData)
		c.fail(err)
		return err
	}
	block, err := chain.NewBlock(v)
	if err != nil {
		err = fmt.Errorf("convert block %d: %w", v.SlotNumber(), err)
		c.fail(err)
		return err
	}
	c.logger.Debug(
		"roll forward",
		"slot", block.Slot,
		"height", block.Height,
		"tip_slot", tip.Point.Slot,
	)
	if err := c.config.Handler.RollForward(c.handlerContext(), block); err != nil {
		err = fmt.Errorf("roll forward: %w", err)
		c.fail(err)
		return err
	}
	return nil
}
