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

// Package project defines the per-project governance capabilities and the
// registry used to select one at start-up.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/govaudit/chain"
	"github.com/blinklabs-io/govaudit/chainindex"
	"github.com/blinklabs-io/govaudit/metadatum"
	"github.com/blinklabs-io/govaudit/slotclock"
	"github.com/redis/go-redis/v9"
)

var ErrUnknownProject = errors.New("unknown governance project")

// GovernanceRules decides whether a proposal creation transaction meets
// the project's collateral, address and date requirements
type GovernanceRules interface {
	IsValidProposal(ctx context.Context, proposal *metadatum.AddProposal, tx *chain.Tx) bool
}

// VotingPowerVerifier computes the voting power a stake key controlled
// through the given outputs at the snapshot slot. Lookup failures reduce
// the affected output's contribution to zero and are never returned.
type VotingPowerVerifier interface {
	VerifyVotingPower(ctx context.Context, snapshotSlot uint64, ownerStakeKeyHash []byte, utxos []metadatum.UTxORef) *big.Int
}

type Project interface {
	Name() string
	GovernanceRules
	VotingPowerVerifier
}

// Deps holds the shared collaborators handed to a project factory
type Deps struct {
	Logger     *slog.Logger
	Network    *slotclock.Network
	ChainIndex chainindex.Lookup
	// Optional shared cache backend
	Redis    redis.UniversalClient
	CacheTTL time.Duration
	// Maximum concurrent chain index lookups per verification
	Workers int
}

type Factory func(Deps) (Project, error)

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]Factory)
)

// Register makes a project available by name. It is intended to be called
// from init functions and panics on a duplicate name.
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, ok := registry[name]; ok {
		panic("project already registered: " + name)
	}
	registry[name] = factory
}

// New builds the named project
func New(name string, deps Deps) (Project, error) {
	registryMutex.RLock()
	factory, ok := registry[name]
	registryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	if deps.Network == nil {
		return nil, errors.New("project requires a network")
	}
	return factory(deps)
}

// Names returns the registered project names in sorted order
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	ret := make([]string, 0, len(registry))
	for name := range registry {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}
