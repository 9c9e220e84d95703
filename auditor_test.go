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

package govaudit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/chainsync"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, opts ...ConfigOptionFunc) Config {
	t.Helper()
	baseOpts := []ConfigOptionFunc{
		WithNetwork("preprod"),
		WithProject("wingriders"),
		WithUpstreamSocketPath(filepath.Join(t.TempDir(), "missing.socket")),
		WithUpstreamRetries(1, time.Millisecond),
		WithChainIndex("http://127.0.0.1:1", 1, time.Millisecond),
		WithChainIndexHealthCheck(false),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	}
	return NewConfig(append(baseOpts, opts...)...)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, database.DriverSqlite, cfg.databaseDriver)
	assert.Equal(t, chainsync.DefaultStableDepth, cfg.stableDepth)
	assert.Equal(t, chainsync.DefaultWorkers, cfg.workers)
	assert.True(t, cfg.waitChainIndexHealth)
	assert.True(t, cfg.earliestPoint.IsOrigin())
}

func TestConfigOptions(t *testing.T) {
	point := chain.NewPoint(1234, []byte{0xab, 0xcd})
	cfg := NewConfig(
		WithDatabase(database.DriverPostgres, "", "host=localhost"),
		WithEarliestPoint(point),
		WithStableDepth(10),
		WithRedisCache("redis://localhost:6379/0", time.Minute),
		WithApiListenAddress(":3001"),
		WithWorkers(2),
		WithTracing(true),
		WithTracingStdout(true),
		WithShutdownTimeout(time.Second),
	)
	assert.Equal(t, database.DriverPostgres, cfg.databaseDriver)
	assert.Equal(t, "host=localhost", cfg.databaseDsn)
	assert.Equal(t, point, cfg.earliestPoint)
	assert.Equal(t, 10, cfg.stableDepth)
	assert.Equal(t, "redis://localhost:6379/0", cfg.redisUrl)
	assert.Equal(t, time.Minute, cfg.cacheTTL)
	assert.Equal(t, ":3001", cfg.apiListenAddress)
	assert.Equal(t, 2, cfg.workers)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
	assert.Equal(t, time.Second, cfg.shutdownTimeout)
}

func TestNewInvalidConfig(t *testing.T) {
	testDefs := []struct {
		name string
		opt  ConfigOptionFunc
	}{
		{name: "unknown network", opt: WithNetwork("nonet")},
		{name: "no project", opt: WithProject("")},
		{name: "no upstream", opt: WithUpstreamSocketPath("")},
		{name: "no chain index", opt: WithChainIndex("", 1, time.Second)},
		{name: "negative stable depth", opt: WithStableDepth(-1)},
	}
	for _, testDef := range testDefs {
		_, err := New(testConfig(t, testDef.opt))
		require.Error(t, err, testDef.name)
	}
	_, err := New(testConfig(t))
	require.NoError(t, err)
}

func TestRunUpstreamUnavailable(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable after 1 attempts")
	require.NoError(t, a.Stop())
	// Stop is idempotent
	require.NoError(t, a.Stop())
}

func TestRunUnknownProject(t *testing.T) {
	a, err := New(testConfig(t, WithProject("sundae")))
	require.NoError(t, err)
	require.Error(t, a.Run(context.Background()))
	require.NoError(t, a.Stop())
}
