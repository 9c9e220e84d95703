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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/govaudit"
	"github.com/blinklabs-io/govaudit/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// auditorOptions maps the loaded configuration onto auditor options
func auditorOptions(
	cfg *config.Config,
	logger *slog.Logger,
) ([]govaudit.ConfigOptionFunc, error) {
	earliestPoint, err := cfg.EarliestPoint()
	if err != nil {
		return nil, err
	}
	opts := []govaudit.ConfigOptionFunc{
		govaudit.WithLogger(logger),
		govaudit.WithNetwork(cfg.Network),
		govaudit.WithProject(cfg.Project),
		govaudit.WithDatabase(
			cfg.Database.Driver,
			cfg.Database.Path,
			cfg.Database.Dsn,
		),
		govaudit.WithUpstreamAddress(cfg.Upstream.Address),
		govaudit.WithUpstreamSocketPath(cfg.Upstream.SocketPath),
		govaudit.WithUpstreamRetries(
			cfg.Upstream.MaxRetries,
			cfg.Upstream.RetryInterval,
		),
		govaudit.WithEarliestPoint(earliestPoint),
		govaudit.WithStableDepth(cfg.Sync.StableDepth),
		govaudit.WithChainIndex(
			cfg.ChainIndex.Url,
			cfg.ChainIndex.HealthRetries,
			cfg.ChainIndex.HealthInterval,
		),
		govaudit.WithWorkers(cfg.Workers),
		govaudit.WithTracing(cfg.Tracing.Enabled),
		govaudit.WithTracingStdout(cfg.Tracing.Stdout),
		govaudit.WithShutdownTimeout(cfg.ShutdownTimeout),
		// Enable metrics with default prometheus registry
		govaudit.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	if cfg.Cache.RedisUrl != "" {
		opts = append(
			opts,
			govaudit.WithRedisCache(cfg.Cache.RedisUrl, cfg.Cache.Ttl),
		)
	}
	if cfg.Api.Port > 0 {
		opts = append(
			opts,
			govaudit.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.Api.BindAddr, cfg.Api.Port),
			),
		)
	}
	return opts, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := auditorOptions(cfg, logger)
	if err != nil {
		return err
	}
	shutdownTimeout := config.DefaultShutdownTimeout
	if cfg.ShutdownTimeout > 0 {
		shutdownTimeout = cfg.ShutdownTimeout
	}
	a, err := govaudit.New(govaudit.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsBindAddr, cfg.MetricsPort)
		http.Handle("/metrics", promhttp.Handler())
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component",
			"node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
				os.Exit(1)
			}
		}()
	}
	stopMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run auditor in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		err := a.Run(signalCtx)
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		stopMetrics()
		if err := a.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("auditor stopped")
			stopMetrics()
			if err := a.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("auditor error", "error", err)
		signalCtxStop()
		if stopErr := a.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		stopMetrics()
		return err
	}
}
