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
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/blinklabs-io/govaudit/api"
	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/internal/config"
	"github.com/spf13/cobra"
)

// resultsRun prints the tallies of the given proposals, or of every known
// proposal when none are named
func resultsRun(ctx context.Context, args []string, cfg *config.Config) error {
	db, err := database.New(
		database.WithDriver(cfg.Database.Driver),
		database.WithDataDir(cfg.Database.Path),
		database.WithDSN(cfg.Database.Dsn),
	)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var ret []api.ResultsResponse
	if len(args) == 0 {
		proposals, err := db.ListProposals(ctx)
		if err != nil {
			return err
		}
		for i := range proposals {
			results, err := db.ProposalResults(ctx, &proposals[i])
			if err != nil {
				return err
			}
			ret = append(ret, api.NewResultsResponse(&proposals[i], results))
		}
	}
	for _, arg := range args {
		txHash, err := hex.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("invalid proposal hash %q: %w", arg, err)
		}
		proposal, err := db.ProposalByTxHash(ctx, txHash)
		if err != nil {
			return err
		}
		if proposal == nil {
			return errors.New("proposal not found: " + arg)
		}
		results, err := db.ProposalResults(ctx, proposal)
		if err != nil {
			return err
		}
		ret = append(ret, api.NewResultsResponse(proposal, results))
	}
	out, err := json.MarshalIndent(ret, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func resultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results [proposal-tx-hash...]",
		Short: "Print vote tallies from the local database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			if err := resultsRun(cmd.Context(), args, cfg); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	return cmd
}
