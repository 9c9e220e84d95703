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

package slotclock

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownNetwork = errors.New("unknown network")

// Network holds the per-network constants used for slot/time conversion
// and address handling
type Network struct {
	Name string
	// Epoch0 is the network start time in Unix seconds
	Epoch0             uint64
	ByronSlotSeconds   uint64
	ShelleySlotSeconds uint64
	ShelleyInitialSlot uint64
	NetworkMagic       uint32
	NetworkId          uint8
}

var (
	NetworkMainnet = Network{
		Name:               "mainnet",
		Epoch0:             1506203091,
		ByronSlotSeconds:   20,
		ShelleySlotSeconds: 1,
		ShelleyInitialSlot: 4492800,
		NetworkMagic:       764824073,
		NetworkId:          1,
	}
	NetworkPreprod = Network{
		Name:               "preprod",
		Epoch0:             1654041600,
		ByronSlotSeconds:   20,
		ShelleySlotSeconds: 1,
		ShelleyInitialSlot: 86400,
		NetworkMagic:       1,
		NetworkId:          0,
	}
	NetworkPreview = Network{
		Name:               "preview",
		Epoch0:             1666656000,
		ByronSlotSeconds:   1,
		ShelleySlotSeconds: 1,
		ShelleyInitialSlot: 0,
		NetworkMagic:       2,
		NetworkId:          0,
	}
)

var networks = map[string]*Network{
	NetworkMainnet.Name: &NetworkMainnet,
	NetworkPreprod.Name: &NetworkPreprod,
	NetworkPreview.Name: &NetworkPreview,
}

// NetworkByName returns the named network
func NetworkByName(name string) (*Network, error) {
	n, ok := networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return n, nil
}

// NetworkNames returns the names of all known networks in sorted order
func NetworkNames() []string {
	ret := make([]string, 0, len(networks))
	for name := range networks {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// IsMainnet reports whether the network uses mainnet address prefixes
func (n *Network) IsMainnet() bool {
	return n.NetworkId == 1
}
