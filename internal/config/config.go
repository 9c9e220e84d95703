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

package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/slotclock"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "govaudit.config"

const (
	envPrefix = "govaudit"

	DefaultShutdownTimeout = 30 * time.Second
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Dsn    string `yaml:"dsn"`
}

type UpstreamConfig struct {
	Address       string        `yaml:"address"`
	SocketPath    string        `yaml:"socketPath"    split_words:"true"`
	MaxRetries    int           `yaml:"maxRetries"    split_words:"true"`
	RetryInterval time.Duration `yaml:"retryInterval" split_words:"true"`
}

type SyncConfig struct {
	EarliestHash string `yaml:"earliestHash" split_words:"true"`
	EarliestSlot uint64 `yaml:"earliestSlot" split_words:"true"`
	StableDepth  int    `yaml:"stableDepth"  split_words:"true"`
}

type ChainIndexConfig struct {
	Url            string        `yaml:"url"`
	HealthRetries  int           `yaml:"healthRetries"  split_words:"true"`
	HealthInterval time.Duration `yaml:"healthInterval" split_words:"true"`
}

type CacheConfig struct {
	RedisUrl string        `yaml:"redisUrl" split_words:"true"`
	Ttl      time.Duration `yaml:"ttl"`
}

type ApiConfig struct {
	BindAddr string `yaml:"bindAddr" split_words:"true"`
	Port     uint   `yaml:"port"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	Stdout  bool `yaml:"stdout"`
}

type Config struct {
	Network         string           `yaml:"network"`
	Project         string           `yaml:"project"`
	Database        DatabaseConfig   `yaml:"database"`
	Upstream        UpstreamConfig   `yaml:"upstream"`
	Sync            SyncConfig       `yaml:"sync"`
	ChainIndex      ChainIndexConfig `yaml:"chainIndex"      split_words:"true"`
	Cache           CacheConfig      `yaml:"cache"`
	Api             ApiConfig        `yaml:"api"`
	Tracing         TracingConfig    `yaml:"tracing"`
	MetricsBindAddr string           `yaml:"metricsBindAddr" split_words:"true"`
	MetricsPort     uint             `yaml:"metricsPort"     split_words:"true"`
	Workers         int              `yaml:"workers"`
	ShutdownTimeout time.Duration    `yaml:"shutdownTimeout" split_words:"true"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor the environment override a value
func DefaultConfig() *Config {
	return &Config{
		Network: slotclock.NetworkMainnet.Name,
		Project: "wingriders",
		Database: DatabaseConfig{
			Driver: database.DriverSqlite,
			Path:   ".govaudit",
		},
		Upstream: UpstreamConfig{
			SocketPath:    "/ipc/node.socket",
			MaxRetries:    10,
			RetryInterval: 15 * time.Second,
		},
		Sync: SyncConfig{
			StableDepth: 50,
		},
		ChainIndex: ChainIndexConfig{
			Url:            "http://localhost:1442",
			HealthRetries:  60,
			HealthInterval: 30 * time.Second,
		},
		Cache: CacheConfig{
			Ttl: time.Hour,
		},
		Api: ApiConfig{
			BindAddr: "0.0.0.0",
			Port:     3000,
		},
		MetricsBindAddr: "0.0.0.0",
		MetricsPort:     12799,
		Workers:         8,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadConfig reads the YAML config file, when one is given or found in the
// default locations, over the defaults and then applies the GOVAUDIT_*
// environment variables
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	var candidates []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(
			candidates,
			filepath.Join(homeDir, ".govaudit", "govaudit.yaml"),
		)
	}
	candidates = append(candidates, "/etc/govaudit/govaudit.yaml")
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if _, err := slotclock.NetworkByName(c.Network); err != nil {
		return err
	}
	if c.Project == "" {
		return errors.New("no project configured")
	}
	switch c.Database.Driver {
	case database.DriverSqlite:
	case database.DriverPostgres:
		if c.Database.Dsn == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("%w: %s", database.ErrUnsupportedDriver, c.Database.Driver)
	}
	if c.Upstream.Address == "" && c.Upstream.SocketPath == "" {
		return errors.New("one of upstream.address or upstream.socketPath is required")
	}
	if c.ChainIndex.Url == "" {
		return errors.New("chainIndex.url is required")
	}
	if _, err := c.EarliestPoint(); err != nil {
		return err
	}
	if c.Sync.StableDepth < 0 {
		return fmt.Errorf("invalid sync.stableDepth: %d", c.Sync.StableDepth)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	return nil
}

// EarliestPoint returns the point chain-sync starts from on an empty
// database
func (c *Config) EarliestPoint() (chain.Point, error) {
	if c.Sync.EarliestHash == "" {
		if c.Sync.EarliestSlot != 0 {
			return chain.Point{}, errors.New("sync.earliestHash is required with sync.earliestSlot")
		}
		return chain.Point{}, nil
	}
	hash, err := hex.DecodeString(c.Sync.EarliestHash)
	if err != nil || len(hash) != 32 {
		return chain.Point{}, fmt.Errorf("invalid sync.earliestHash: %q", c.Sync.EarliestHash)
	}
	return chain.NewPoint(c.Sync.EarliestSlot, hash), nil
}
