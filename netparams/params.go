// Package netparams collects the per-network parameters the engine needs to
// encode addresses and bind signatures to the right chain.
package netparams

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params bundles the Bitcoin network parameters with the EVM chain id the
// engine signs against when both ecosystems run in the same deployment
// profile (mainnet with mainnet, testnet with testnet).
type Params struct {
	*chaincfg.Params

	// EVMChainID is the EIP-155 chain id for the paired EVM network.
	EVMChainID *big.Int
}

var MainNetParams = Params{
	Params:     &chaincfg.MainNetParams,
	EVMChainID: big.NewInt(1),
}

var TestNetParams = Params{
	Params:     &chaincfg.TestNet3Params,
	EVMChainID: big.NewInt(11155111),
}

var SimNetParams = Params{
	Params:     &chaincfg.SimNetParams,
	EVMChainID: big.NewInt(1337),
}
