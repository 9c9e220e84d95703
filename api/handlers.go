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

package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

const txHashLength = 32

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      message,
	})
}

// handleHealth reports healthy when the database answers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Healthy: false})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Healthy: true})
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.config.Store.ListProposals(r.Context())
	if err != nil {
		s.logger.Error("failed to list proposals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve proposals")
		return
	}
	ret := make([]ProposalResponse, 0, len(proposals))
	for i := range proposals {
		ret = append(ret, newProposalResponse(&proposals[i]))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleResults tallies the votes for the proposal created by the
// transaction in the path
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	txHash, err := hex.DecodeString(mux.Vars(r)["hash"])
	if err != nil || len(txHash) != txHashLength {
		writeError(w, http.StatusBadRequest, "invalid proposal transaction hash")
		return
	}
	proposal, err := s.config.Store.ProposalByTxHash(r.Context(), txHash)
	if err != nil {
		s.logger.Error("failed to get proposal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve proposal")
		return
	}
	if proposal == nil {
		writeError(w, http.StatusNotFound, "proposal not found")
		return
	}
	results, err := s.config.Store.ProposalResults(r.Context(), proposal)
	if err != nil {
		s.logger.Error("failed to tally votes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to tally votes")
		return
	}
	writeJSON(w, http.StatusOK, NewResultsResponse(proposal, results))
}
