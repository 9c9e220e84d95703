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
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTxHash = strings.Repeat("ab", 32)

type mockStore struct {
	pingErr   error
	listErr   error
	proposals []models.Proposal
	results   *database.ProposalResults
}

func (m *mockStore) Ping(context.Context) error {
	return m.pingErr
}

func (m *mockStore) ListProposals(context.Context) ([]models.Proposal, error) {
	return m.proposals, m.listErr
}

func (m *mockStore) ProposalByTxHash(_ context.Context, txHash []byte) (*models.Proposal, error) {
	for i := range m.proposals {
		if string(m.proposals[i].TxHash) == string(txHash) {
			return &m.proposals[i], nil
		}
	}
	return nil, nil
}

func (m *mockStore) ProposalResults(context.Context, *models.Proposal) (*database.ProposalResults, error) {
	return m.results, nil
}

func testProposal() models.Proposal {
	txHash := make([]byte, 32)
	for i := range txHash {
		txHash[i] = 0xab
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Proposal{
		ID:     1,
		TxHash: txHash,
		Name:   "Treasury",
		Poll: &models.Poll{
			TxHash:   txHash,
			Start:    start,
			End:      start.Add(24 * time.Hour),
			Snapshot: start,
		},
		Choices: []models.ProposalChoice{
			{ID: 1, Index: 0, Type: models.ChoiceTypeAccept, Value: "Yes"},
			{ID: 2, Index: 1, Type: models.ChoiceTypeReject, Value: "No"},
		},
		States: []models.ProposalState{
			{ID: 1, Status: models.ProposalStatusAvailable},
		},
	}
}

func tally(verified, unverified int64, voters int) database.PowerTally {
	return database.PowerTally{
		Verified:   big.NewInt(verified),
		Unverified: big.NewInt(unverified),
		Voters:     voters,
	}
}

func newTestServer(t *testing.T, store Store) *Server {
	t.Helper()
	s, err := New(Config{Store: store, ListenAddress: "127.0.0.1:0"})
	require.NoError(t, err)
	return s
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	store := &mockStore{}
	s := newTestServer(t, store)
	rec := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"healthy":true}`, rec.Body.String())
	store.pingErr = errors.New("database is locked")
	rec = doRequest(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"healthy":false}`, rec.Body.String())
}

func TestProposals(t *testing.T) {
	s := newTestServer(t, &mockStore{proposals: []models.Proposal{testProposal()}})
	rec := doRequest(t, s, "/proposals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp []ProposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, testTxHash, resp[0].TxHash)
	assert.Equal(t, models.ProposalStatusAvailable, resp[0].Status)
	require.NotNil(t, resp[0].Poll)
	assert.Equal(t, 24*time.Hour, resp[0].Poll.End.Sub(resp[0].Poll.Start))
	require.Len(t, resp[0].Choices, 2)
	assert.Equal(t, "No", resp[0].Choices[1].Value)
}

func TestProposalsEmpty(t *testing.T) {
	s := newTestServer(t, &mockStore{})
	rec := doRequest(t, s, "/proposals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestProposalsError(t *testing.T) {
	s := newTestServer(t, &mockStore{listErr: errors.New("boom")})
	rec := doRequest(t, s, "/proposals")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResults(t *testing.T) {
	proposal := testProposal()
	store := &mockStore{
		proposals: []models.Proposal{proposal},
		results: &database.ProposalResults{
			Choices: []database.ChoiceResult{
				{Choice: proposal.Choices[0], Tally: tally(100, 5, 2)},
				{Choice: proposal.Choices[1], Tally: tally(0, 0, 0)},
				{
					Choice: models.ProposalChoice{
						Index: models.AbstainChoiceIndex,
						Type:  models.ChoiceTypeAbstain,
						Value: "abstain",
					},
					Tally: tally(7, 0, 1),
				},
			},
			Total: tally(107, 5, 3),
		},
	}
	s := newTestServer(t, store)
	rec := doRequest(t, s, "/results/"+testTxHash)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testTxHash, resp.TxHash)
	require.Len(t, resp.Choices, 3)
	assert.Equal(t, "105", resp.Choices[0].Total)
	assert.Equal(t, 2, resp.Choices[0].Voters)
	assert.Equal(t, int32(-1), resp.Choices[2].Index)
	assert.Equal(t, models.ChoiceTypeAbstain, resp.Choices[2].Type)
	assert.Equal(t, "112", resp.Total.Total)
}

func TestResultsErrors(t *testing.T) {
	s := newTestServer(t, &mockStore{proposals: []models.Proposal{testProposal()}})
	testDefs := []struct {
		path   string
		status int
	}{
		{path: "/results/xyz", status: http.StatusBadRequest},
		{path: "/results/abcd", status: http.StatusBadRequest},
		{path: "/results/" + strings.Repeat("cd", 32), status: http.StatusNotFound},
		{path: "/unknown", status: http.StatusNotFound},
	}
	for _, testDef := range testDefs {
		rec := doRequest(t, s, testDef.path)
		assert.Equal(t, testDef.status, rec.Code, testDef.path)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), testDef.path)
		assert.Equal(t, testDef.status, resp.StatusCode, testDef.path)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, &mockStore{})
	require.NoError(t, s.Start())
	require.Error(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
