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
	"time"

	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/database/models"
)

type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

type PollResponse struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Snapshot    time.Time `json:"snapshot"`
	TxHash      string    `json:"tx_hash"`
	Description string    `json:"description,omitempty"`
}

type ChoiceResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Index int32  `json:"index"`
}

type ProposalResponse struct {
	Poll              *PollResponse    `json:"poll,omitempty"`
	TxHash            string           `json:"tx_hash"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Uri               string           `json:"uri"`
	CommunityUri      string           `json:"community_uri"`
	OwnerAddress      string           `json:"owner_address"`
	OwnerStakeKeyHash string           `json:"owner_stake_key_hash,omitempty"`
	Status            string           `json:"status"`
	Choices           []ChoiceResponse `json:"choices"`
}

// TallyResponse carries voting power as decimal strings
type TallyResponse struct {
	Verified   string `json:"verified"`
	Unverified string `json:"unverified"`
	Total      string `json:"total"`
	Voters     int    `json:"voters"`
}

type ChoiceResultResponse struct {
	ChoiceResponse
	TallyResponse
}

type ResultsResponse struct {
	TxHash  string                 `json:"tx_hash"`
	Status  string                 `json:"status"`
	Choices []ChoiceResultResponse `json:"choices"`
	Total   TallyResponse          `json:"total"`
}

func newProposalResponse(proposal *models.Proposal) ProposalResponse {
	ret := ProposalResponse{
		TxHash:            hex.EncodeToString(proposal.TxHash),
		Name:              proposal.Name,
		Description:       proposal.Description,
		Uri:               proposal.Uri,
		CommunityUri:      proposal.CommunityUri,
		OwnerAddress:      proposal.OwnerAddress,
		OwnerStakeKeyHash: hex.EncodeToString(proposal.OwnerStakeKeyHash),
		Status:            proposal.Status(),
		Choices:           make([]ChoiceResponse, 0, len(proposal.Choices)),
	}
	if proposal.Poll != nil {
		ret.Poll = &PollResponse{
			TxHash:      hex.EncodeToString(proposal.Poll.TxHash),
			Start:       proposal.Poll.Start.UTC(),
			End:         proposal.Poll.End.UTC(),
			Snapshot:    proposal.Poll.Snapshot.UTC(),
			Description: proposal.Poll.Description,
		}
	}
	for _, choice := range proposal.Choices {
		ret.Choices = append(ret.Choices, newChoiceResponse(choice))
	}
	return ret
}

func newChoiceResponse(choice models.ProposalChoice) ChoiceResponse {
	return ChoiceResponse{
		Index: choice.Index,
		Type:  choice.Type,
		Value: choice.Value,
	}
}

func newTallyResponse(tally database.PowerTally) TallyResponse {
	return TallyResponse{
		Verified:   tally.Verified.String(),
		Unverified: tally.Unverified.String(),
		Total:      tally.Total().String(),
		Voters:     tally.Voters,
	}
}

// NewResultsResponse converts a proposal tally for output
func NewResultsResponse(proposal *models.Proposal, results *database.ProposalResults) ResultsResponse {
	ret := ResultsResponse{
		TxHash:  hex.EncodeToString(proposal.TxHash),
		Status:  proposal.Status(),
		Total:   newTallyResponse(results.Total),
		Choices: make([]ChoiceResultResponse, 0, len(results.Choices)),
	}
	for _, result := range results.Choices {
		ret.Choices = append(ret.Choices, ChoiceResultResponse{
			ChoiceResponse: newChoiceResponse(result.Choice),
			TallyResponse:  newTallyResponse(result.Tally),
		})
	}
	return ret
}
