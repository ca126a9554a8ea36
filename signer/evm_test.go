package signer

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testEvmTx() *EvmTx {
	to := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	return &EvmTx{
		ChainID:   big.NewInt(1),
		Nonce:     7,
		To:        &to,
		Value:     big.NewInt(1_000_000_000),
		Gas:       21000,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
	}
}

// TestSignEvmDynamicFee signs an EIP-1559 transaction and checks the
// recovered sender matches the signing key.
func TestSignEvmDynamicFee(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	signed, err := SignEvm(testEvmTx(), privKey)
	require.NoError(t, err)

	wantFrom := crypto.PubkeyToAddress(*privKey.PubKey().ToECDSA())
	require.Equal(t, wantFrom, signed.From)

	// The raw encoding must decode back to a valid dynamic fee tx
	// with an intact signature.
	var decoded types.Transaction
	require.NoError(t, decoded.UnmarshalBinary(signed.Raw))
	require.Equal(t, uint8(types.DynamicFeeTxType), decoded.Type())
	require.Equal(t, signed.Hash, decoded.Hash())

	from, err := types.Sender(
		types.LatestSignerForChainID(big.NewInt(1)), &decoded,
	)
	require.NoError(t, err)
	require.Equal(t, wantFrom, from)
}

// TestSignEvmLegacy signs a gas price transaction and verifies EIP-155
// replay protection binds it to the requested chain.
func TestSignEvmLegacy(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tx := testEvmTx()
	tx.GasTipCap, tx.GasFeeCap = nil, nil
	tx.GasPrice = big.NewInt(20_000_000_000)
	tx.ChainID = big.NewInt(11155111)

	signed, err := SignEvm(tx, privKey)
	require.NoError(t, err)

	var decoded types.Transaction
	require.NoError(t, decoded.UnmarshalBinary(signed.Raw))
	require.Equal(t, uint8(types.LegacyTxType), decoded.Type())
	require.Equal(t, big.NewInt(11155111), decoded.ChainId())

	from, err := types.Sender(
		types.LatestSignerForChainID(big.NewInt(11155111)), &decoded,
	)
	require.NoError(t, err)
	require.Equal(t,
		crypto.PubkeyToAddress(*privKey.PubKey().ToECDSA()), from)
}

// TestSignEvmRejectsBadTx exercises the validation cases that must fail
// before any signing happens.
func TestSignEvmRejectsBadTx(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(tx *EvmTx)
	}{
		{
			name:   "missing chain id",
			mutate: func(tx *EvmTx) { tx.ChainID = nil },
		},
		{
			name:   "zero chain id",
			mutate: func(tx *EvmTx) { tx.ChainID = big.NewInt(0) },
		},
		{
			name:   "zero gas",
			mutate: func(tx *EvmTx) { tx.Gas = 0 },
		},
		{
			name: "negative value",
			mutate: func(tx *EvmTx) {
				tx.Value = big.NewInt(-1)
			},
		},
		{
			name: "both fee schemes",
			mutate: func(tx *EvmTx) {
				tx.GasPrice = big.NewInt(1)
			},
		},
		{
			name: "no fee scheme",
			mutate: func(tx *EvmTx) {
				tx.GasTipCap, tx.GasFeeCap = nil, nil
			},
		},
		{
			name: "tip without cap",
			mutate: func(tx *EvmTx) {
				tx.GasFeeCap = nil
			},
		},
		{
			name: "fee cap below tip",
			mutate: func(tx *EvmTx) {
				tx.GasFeeCap = big.NewInt(1)
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			tx := testEvmTx()
			test.mutate(tx)

			_, err := SignEvm(tx, privKey)
			require.ErrorIs(t, err, ErrBadTx)
		})
	}
}
