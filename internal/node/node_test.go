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

package node

import (
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/govaudit/internal/config"
	"github.com/stretchr/testify/require"
)

func TestAuditorOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	opts, err := auditorOptions(cfg, logger)
	require.NoError(t, err)
	require.NotEmpty(t, opts)

	cfg.Sync.EarliestHash = "nothex"
	cfg.Sync.EarliestSlot = 10
	_, err = auditorOptions(cfg, logger)
	require.Error(t, err)
}
