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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/chainsync"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/slotclock"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	promRegistry         prometheus.Registerer
	logger               *slog.Logger
	network              string
	project              string
	databaseDriver       string
	dataDir              string
	databaseDsn          string
	upstreamAddress      string
	upstreamSocketPath   string
	chainIndexUrl        string
	redisUrl             string
	apiListenAddress     string
	earliestPoint        chain.Point
	upstreamRetries      int
	upstreamInterval     time.Duration
	chainIndexRetries    int
	chainIndexInterval   time.Duration
	cacheTTL             time.Duration
	stableDepth          int
	workers              int
	tracing              bool
	tracingStdout        bool
	shutdownTimeout      time.Duration
	waitChainIndexHealth bool
}

func (c *Config) validate() error {
	if _, err := slotclock.NetworkByName(c.network); err != nil {
		return err
	}
	if c.project == "" {
		return errors.New("no project specified")
	}
	if c.upstreamAddress == "" && c.upstreamSocketPath == "" {
		return errors.New("no upstream address or socket path specified")
	}
	if c.chainIndexUrl == "" {
		return errors.New("no chain index URL specified")
	}
	if c.stableDepth < 0 {
		return fmt.Errorf("invalid stable depth: %d", c.stableDepth)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the auditor config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new auditor config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:               slog.New(slog.NewJSONHandler(io.Discard, nil)),
		databaseDriver:       database.DriverSqlite,
		stableDepth:          chainsync.DefaultStableDepth,
		workers:              chainsync.DefaultWorkers,
		waitChainIndexHealth: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithNetwork specifies the named network the auditor follows
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithProject specifies the registered project whose rules are applied
func WithProject(project string) ConfigOptionFunc {
	return func(c *Config) {
		c.project = project
	}
}

// WithDatabase specifies the storage driver. The data directory is used by
// sqlite and the DSN by postgres.
func WithDatabase(driver string, dataDir string, dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.databaseDriver = driver
		c.dataDir = dataDir
		c.databaseDsn = dsn
	}
}

// WithUpstreamAddress specifies the TCP address of the upstream node
func WithUpstreamAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.upstreamAddress = address
	}
}

// WithUpstreamSocketPath specifies the UNIX socket of the upstream node
func WithUpstreamSocketPath(socketPath string) ConfigOptionFunc {
	return func(c *Config) {
		c.upstreamSocketPath = socketPath
	}
}

// WithUpstreamRetries specifies how many times and how often the upstream
// connection is attempted
func WithUpstreamRetries(retries int, interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.upstreamRetries = retries
		c.upstreamInterval = interval
	}
}

// WithEarliestPoint specifies where chain-sync starts on an empty database
func WithEarliestPoint(point chain.Point) ConfigOptionFunc {
	return func(c *Config) {
		c.earliestPoint = point
	}
}

// WithStableDepth specifies how many blocks are projected again on startup
func WithStableDepth(depth int) ConfigOptionFunc {
	return func(c *Config) {
		c.stableDepth = depth
	}
}

// WithChainIndex specifies the chain index URL and how long to wait for it
// to become healthy
func WithChainIndex(url string, retries int, interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.chainIndexUrl = url
		c.chainIndexRetries = retries
		c.chainIndexInterval = interval
	}
}

// WithChainIndexHealthCheck enables or disables waiting for the chain index
// on startup
func WithChainIndexHealthCheck(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.waitChainIndexHealth = enabled
	}
}

// WithRedisCache specifies a Redis URL for the shared pool snapshot cache
func WithRedisCache(url string, ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.redisUrl = url
		c.cacheTTL = ttl
	}
}

// WithApiListenAddress specifies the listen address of the read API. An
// empty value disables it.
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithWorkers specifies the number of concurrent transaction scrapes and
// chain index lookups
func WithWorkers(workers int) ConfigOptionFunc {
	return func(c *Config) {
		c.workers = workers
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
