package signer

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EvmTx is a chain-agnostic description of an EVM transaction. Exactly
// one fee scheme must be populated: GasPrice for a legacy transaction,
// or GasTipCap and GasFeeCap for a dynamic fee transaction.
type EvmTx struct {
	ChainID *big.Int
	Nonce   uint64
	To      *common.Address
	Value   *big.Int
	Gas     uint64
	Data    []byte

	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// SignedEvmTx carries the RLP encoding of a signed transaction along
// with its hash and sender for callers that persist or display them.
type SignedEvmTx struct {
	Raw  []byte
	Hash common.Hash
	From common.Address
}

func (tx *EvmTx) validate() error {
	if tx.ChainID == nil || tx.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: missing chain id", ErrBadTx)
	}
	if tx.Gas == 0 {
		return fmt.Errorf("%w: zero gas limit", ErrBadTx)
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrBadTx)
	}

	legacy := tx.GasPrice != nil
	dynamic := tx.GasTipCap != nil || tx.GasFeeCap != nil
	switch {
	case legacy && dynamic:
		return fmt.Errorf("%w: both legacy and dynamic fees set",
			ErrBadTx)
	case !legacy && !dynamic:
		return fmt.Errorf("%w: no fee fields set", ErrBadTx)
	case dynamic && (tx.GasTipCap == nil || tx.GasFeeCap == nil):
		return fmt.Errorf("%w: dynamic fee tx needs both tip and "+
			"fee cap", ErrBadTx)
	case dynamic && tx.GasFeeCap.Cmp(tx.GasTipCap) < 0:
		return fmt.Errorf("%w: fee cap below tip cap", ErrBadTx)
	}

	return nil
}

// SignEvm validates the request, assembles the matching go-ethereum
// transaction type and signs it with the EIP-155 replay protected
// signer for the request's chain.
func SignEvm(tx *EvmTx, privKey *btcec.PrivateKey) (*SignedEvmTx, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}

	var inner types.TxData
	if tx.GasPrice != nil {
		inner = &types.LegacyTx{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			Gas:      tx.Gas,
			To:       tx.To,
			Value:    tx.Value,
			Data:     tx.Data,
		}
	} else {
		inner = &types.DynamicFeeTx{
			ChainID:   tx.ChainID,
			Nonce:     tx.Nonce,
			GasTipCap: tx.GasTipCap,
			GasFeeCap: tx.GasFeeCap,
			Gas:       tx.Gas,
			To:        tx.To,
			Value:     tx.Value,
			Data:      tx.Data,
		}
	}

	ethSigner := types.LatestSignerForChainID(tx.ChainID)
	ecdsaKey := privKey.ToECDSA()
	// go-ethereum's non-cgo crypto.Sign rejects keys whose Curve is not
	// its own S256() instance, even though btcec's curve is the same
	// secp256k1 curve.
	ecdsaKey.Curve = crypto.S256()
	signed, err := types.SignTx(types.NewTx(inner), ethSigner, ecdsaKey)
	if err != nil {
		return nil, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	from, err := types.Sender(ethSigner, signed)
	if err != nil {
		return nil, err
	}

	return &SignedEvmTx{
		Raw:  raw,
		Hash: signed.Hash(),
		From: from,
	}, nil
}
