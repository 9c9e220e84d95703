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
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	ochainsync "github.com/blinklabs-io/gouroboros/protocol/chainsync"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	err       error
	blocks    []*chain.Block
	rollbacks []chain.Point
}

func (f *fakeHandler) RollForward(_ context.Context, block *chain.Block) error {
	f.blocks = append(f.blocks, block)
	return f.err
}

func (f *fakeHandler) RollBackward(_ context.Context, point chain.Point) error {
	f.rollbacks = append(f.rollbacks, point)
	return f.err
}

func newTestClient(t *testing.T, handler BlockHandler) *ChainSyncClient {
	t.Helper()
	c, err := NewChainSyncClient(ChainSyncClientConfig{
		Handler:       handler,
		SocketPath:    filepath.Join(t.TempDir(), "node.socket"),
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewChainSyncClient(t *testing.T) {
	_, err := NewChainSyncClient(ChainSyncClientConfig{Address: "localhost:3001"})
	require.Error(t, err)
	_, err = NewChainSyncClient(ChainSyncClientConfig{Handler: &fakeHandler{}})
	require.ErrorIs(t, err, ErrNoAddress)
	c, err := NewChainSyncClient(ChainSyncClientConfig{
		Handler: &fakeHandler{},
		Address: "localhost:3001",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, c.config.MaxRetries)
	assert.Equal(t, DefaultRetryInterval, c.config.RetryInterval)
	assert.Equal(t, DefaultPipelineLimit, c.config.PipelineLimit)
}

func TestDialTarget(t *testing.T) {
	testDefs := []struct {
		cfg     ChainSyncClientConfig
		network string
		address string
	}{
		{
			cfg:     ChainSyncClientConfig{SocketPath: "/ipc/node.socket"},
			network: "unix",
			address: "/ipc/node.socket",
		},
		{
			cfg:     ChainSyncClientConfig{Address: "node:3001"},
			network: "tcp",
			address: "node:3001",
		},
		{
			cfg:     ChainSyncClientConfig{Address: "node:3001", SocketPath: "/ipc/node.socket"},
			network: "unix",
			address: "/ipc/node.socket",
		},
	}
	for _, testDef := range testDefs {
		network, address, err := testDef.cfg.dialTarget()
		require.NoError(t, err)
		assert.Equal(t, testDef.network, network)
		assert.Equal(t, testDef.address, address)
	}
}

func TestSyncRetriesExhausted(t *testing.T) {
	c := newTestClient(t, &fakeHandler{})
	err := c.Sync(context.Background(), chain.Point{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	require.NoError(t, c.Stop())
}

func TestSyncCancelled(t *testing.T) {
	c := newTestClient(t, &fakeHandler{})
	c.config.RetryInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sync(ctx, chain.Point{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRollBackwardCallback(t *testing.T) {
	handler := &fakeHandler{}
	c := newTestClient(t, handler)
	err := c.chainSyncClientRollBackward(
		ochainsync.CallbackContext{},
		ocommon.NewPoint(42, []byte{0x01, 0x02}),
		ochainsync.Tip{},
	)
	require.NoError(t, err)
	require.Len(t, handler.rollbacks, 1)
	assert.Equal(t, chain.NewPoint(42, []byte{0x01, 0x02}), handler.rollbacks[0])
	assert.Empty(t, c.ErrorChan())
}

func TestCallbackErrorIsFatal(t *testing.T) {
	handler := &fakeHandler{err: errors.New("storage failure")}
	c := newTestClient(t, handler)
	err := c.chainSyncClientRollBackward(ochainsync.CallbackContext{}, ocommon.NewPointOrigin(), ochainsync.Tip{})
	require.Error(t, err)
	assert.True(t, handler.rollbacks[0].IsOrigin())
	// Only the first failure is reported
	err = c.chainSyncClientRollForward(ochainsync.CallbackContext{}, 0, "not a block", ochainsync.Tip{})
	require.Error(t, err)
	assert.Empty(t, handler.blocks)
	select {
	case fatal := <-c.ErrorChan():
		assert.Contains(t, fatal.Error(), "storage failure")
	default:
		t.Fatal("expected a fatal error")
	}
	assert.Empty(t, c.ErrorChan())
}

func TestStopSuppressesErrors(t *testing.T) {
	c := newTestClient(t, &fakeHandler{})
	require.NoError(t, c.Stop())
	err := c.chainSyncClientRollForward(ochainsync.CallbackContext{}, 0, nil, ochainsync.Tip{})
	require.Error(t, err)
	assert.Empty(t, c.ErrorChan())
}
