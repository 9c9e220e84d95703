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

package wingriders

import (
	"fmt"
	"math"
	"math/big"

	"github.com/blinklabs-io/govaudit/chainindex"
)

const (
	// Name is the project identifier used in configuration
	Name = "WingRiders"

	// Asset name of the NFT marking a genuine liquidity pool output
	poolValidityAssetName = "4c"
)

var (
	// Governance tokens locked in the first output of a proposal
	proposalCollateral = big.NewInt(7_000_000_000)
	// LP tokens are issued by releasing them from a fixed supply held by
	// the pool output
	maxInt64 = big.NewInt(math.MaxInt64)
)

type AssetClass struct {
	PolicyId  string
	AssetName string
}

// Unit returns the asset identifier used by the chain index
func (a AssetClass) Unit() string {
	return chainindex.AssetUnit(a.PolicyId, a.AssetName)
}

// Constants holds the on-chain identifiers of the project for one network
type Constants struct {
	GovernanceToken   AssetClass
	GovernanceAddress string
	LpPolicyId        string
	// Asset name of the WRT/ADA LP token, which is also the pool id
	WrtAdaPoolId      string
	LpScriptHash      string
	FarmScriptHash    string
	VestingScriptHash string
}

var networkConstants = map[string]Constants{
	"mainnet": {
		GovernanceToken: AssetClass{
			PolicyId:  "c0ee29a85b13209423b10447d3c2e6a50641a15c57770e27cb9d5073",
			AssetName: "57696e67526964657273",
		},
		GovernanceAddress: "addr1qx8rhe77m9jdj6ghrf0cnkx2l7x8rq7xw08v4qesd72xsmpeju49prd7tpf3q3m34mehnuzakuhv57sqxjpy83vhdgrqlu92zd",
		LpPolicyId:        "026a18d04a0c642759bb3d83b12e3344894e5c1c7b2aeb1a2113a570",
		WrtAdaPoolId:      "dec347c549f618e80d97682b5b4c6985256503bbb3f3955831f5679cdb8de72f",
		LpScriptHash:      "e6c90a5923713af5786963dee0fdffd830ca7e0c86a041d9e5833e91",
		FarmScriptHash:    "0237cc313756ebb5bcfc2728f7bdc6a8047b471220a305aa373b278a",
		VestingScriptHash: "0a27b0fb1daeb27ff58a79adcefc784fe5cfb5399750d3552e8c54f9",
	},
	"preprod": {
		GovernanceToken: AssetClass{
			PolicyId:  "35b3c3572ee71ec7d0ba8c006eab0fa70fc76d09b15488650106730a",
			AssetName: "74575254",
		},
		GovernanceAddress: "addr_test1qz8rhe77m9jdj6ghrf0cnkx2l7x8rq7xw08v4qesd72xsmpeju49prd7tpf3q3m34mehnuzakuhv57sqxjpy83vhdgrqu2c2wj",
		LpPolicyId:        "a0748ce7f2e9a1848d75adf2be0c09c6b5a0e6c08d39a10f91adb430",
		WrtAdaPoolId:      "2ad8dbb404bebddbd59bfea53a974ddd7b59470c94c7d45461983a6ac4bdf0d2",
		LpScriptHash:      "f67b42117e6e0defe0c80fe90b15ec49c6d8c03db416c83dc008786e",
		FarmScriptHash:    "b8cfa1f0820aba0c0a24dea17638ab646dc03b5d980d5334c1f53643",
		VestingScriptHash: "265bd03f4a9424cef9e81a6eb85c26bd9267280d0176f3748dd464c5",
	},
}

// ConstantsForNetwork returns the project identifiers for the named network
func ConstantsForNetwork(network string) (Constants, error) {
	ret, ok := networkConstants[network]
	if !ok {
		return Constants{}, fmt.Errorf("%s is not deployed on network %s", Name, network)
	}
	return ret, nil
}

func (c Constants) poolValidityUnit() string {
	return chainindex.AssetUnit(c.LpPolicyId, poolValidityAssetName)
}

func (c Constants) lpUnit(poolId string) string {
	return chainindex.AssetUnit(c.LpPolicyId, poolId)
}
