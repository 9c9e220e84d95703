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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blinklabs-io/govaudit/internal/config"
	"github.com/blinklabs-io/govaudit/internal/version"
	"github.com/blinklabs-io/govaudit/project"
	_ "github.com/blinklabs-io/govaudit/project/wingriders"
	"github.com/blinklabs-io/govaudit/slotclock"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "govaudit"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		network string
		project string
		debug   bool
	}{}
	configFile string
)

const rootLongDescription = `govaudit follows a Cardano node over node-to-client chain-sync and
projects governance polls, proposals and votes into a relational database.
Each vote's claimed voting power is verified against the chain index at the
poll snapshot.

Configuration is read from --config, ~/.govaudit/govaudit.yaml or
/etc/govaudit/govaudit.yaml (first found), then overridden by GOVAUDIT_*
environment variables and finally by command line flags.`

const rootExample = `  # Audit WingRiders governance on preprod through a local node socket
  GOVAUDIT_UPSTREAM_SOCKET_PATH=/ipc/node.socket govaudit serve --network preprod

  # Print the tally of one proposal from the local database
  govaudit results 3f2a...c9`

// applyFlagOverrides applies command line overrides on top of the loaded
// configuration and revalidates it
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.Network = globalFlags.network
	}
	if flags.Changed("project") {
		cfg.Project = globalFlags.project
	}
	return cfg.Validate()
}

func commonRun() *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if globalFlags.debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Info(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Cardano governance auditor",
		Long:    rootLongDescription,
		Example: rootExample,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file (default ~/.govaudit/govaudit.yaml)")
	rootCmd.PersistentFlags().
		StringVarP(&globalFlags.network, "network", "n", config.DefaultConfig().Network, "cardano network: "+strings.Join(slotclock.NetworkNames(), ", "))
	rootCmd.PersistentFlags().
		StringVarP(&globalFlags.project, "project", "p", config.DefaultConfig().Project, "governance project: "+strings.Join(project.Names(), ", "))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := applyFlagOverrides(cmd, cfg); err != nil {
			return fmt.Errorf("invalid command line: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(resultsCommand())
	rootCmd.AddCommand(versionCommand())

	// Execute cobra command
	if err := rootCmd.Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
