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

// Package governance turns governance metadata found in transactions into
// polls, proposals and verified votes.
package governance

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/metadatum"
	"github.com/blinklabs-io/govaudit/project"
	"github.com/blinklabs-io/govaudit/slotclock"
)

// errSkipped marks an entry which was rejected rather than failed
var errSkipped = errors.New("skipped")

type Config struct {
	Logger  *slog.Logger
	Network *slotclock.Network
	// Clock overrides the slot conversions of Network when set
	Clock   slotclock.SlotTimeProvider
	Project project.Project
}

func (c *Config) validate() error {
	if c.Clock == nil {
		if c.Network == nil {
			return errors.New("network is required")
		}
		c.Clock = c.Network
	}
	if c.Project == nil {
		return errors.New("project is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return nil
}

// labelValue returns the decoded metadata under the label, or nil when the
// transaction carries none
func labelValue(tx *chain.Tx, label uint64) any {
	md, ok := tx.Metadata[label]
	if !ok || md == nil {
		return nil
	}
	return metadatum.Decode(md)
}

func decodeTxHash(txHash string) ([]byte, error) {
	ret, err := hex.DecodeString(txHash)
	if err != nil {
		return nil, fmt.Errorf("decode transaction hash: %w", err)
	}
	return ret, nil
}
