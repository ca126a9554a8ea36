package signer

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const testInputValue = int64(100_000)

// p2wpkhScript builds the witness program paying to the given key on
// the regression test network.
func p2wpkhScript(t *testing.T, pubKey *btcec.PublicKey) []byte {
	t.Helper()

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()),
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(witnessAddr)
	require.NoError(t, err)
	return pkScript
}

func p2pkhScript(t *testing.T, pubKey *btcec.PublicKey) []byte {
	t.Helper()

	pkhAddr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()),
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(pkhAddr)
	require.NoError(t, err)
	return pkScript
}

// runScript executes the final transaction's input against the script
// it spends, proving the signature is valid consensus-wise.
func runScript(t *testing.T, tx *wire.MsgTx, idx int, pkScript []byte) {
	t.Helper()

	fetcher := txscript.NewCannedPrevOutputFetcher(
		pkScript, testInputValue,
	)
	vm, err := txscript.NewEngine(
		pkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), testInputValue, fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

// TestSignPsbtP2WPKH signs a native segwit spend and validates the
// witness with the script engine.
func TestSignPsbtP2WPKH(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkScript := p2wpkhScript(t, privKey.PubKey())

	unsigned := wire.NewMsgTx(2)
	prevOut := wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}
	unsigned.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	unsigned.AddTxOut(wire.NewTxOut(testInputValue-1000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(unsigned)
	require.NoError(t, err)
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    testInputValue,
		PkScript: pkScript,
	}

	signed, err := SignPsbt(packet,
		func(i int, in *psbt.PInput) (*btcec.PrivateKey, error) {
			return privKey, nil
		},
	)
	require.NoError(t, err)
	require.Len(t, signed.Tx.TxIn[0].Witness, 2)
	require.Equal(t, signed.Tx.TxHash(), signed.TxID)

	runScript(t, signed.Tx, 0, pkScript)
}

// TestSignPsbtP2PKH signs a legacy spend that supplies the previous
// transaction in full.
func TestSignPsbtP2PKH(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkScript := p2pkhScript(t, privKey.PubKey())

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Hash: chainhash.Hash{0x02}, Index: 0}, nil, nil,
	))
	prevTx.AddTxOut(wire.NewTxOut(testInputValue, pkScript))

	unsigned := wire.NewMsgTx(2)
	prevOut := wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}
	unsigned.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	unsigned.AddTxOut(wire.NewTxOut(testInputValue-1000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(unsigned)
	require.NoError(t, err)
	packet.Inputs[0].NonWitnessUtxo = prevTx

	signed, err := SignPsbt(packet,
		func(i int, in *psbt.PInput) (*btcec.PrivateKey, error) {
			return privKey, nil
		},
	)
	require.NoError(t, err)

	runScript(t, signed.Tx, 0, pkScript)
}

// TestSignPsbtRejectsBadPackets checks that malformed packets never
// reach the signing step.
func TestSignPsbtRejectsBadPackets(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	fetchKey := func(i int, in *psbt.PInput) (*btcec.PrivateKey, error) {
		return privKey, nil
	}

	_, err = SignPsbt(nil, fetchKey)
	require.ErrorIs(t, err, ErrBadTx)

	// No outputs.
	unsigned := wire.NewMsgTx(2)
	unsigned.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Hash: chainhash.Hash{0x03}}, nil, nil,
	))
	_, err = SignPsbt(&psbt.Packet{UnsignedTx: unsigned}, fetchKey)
	require.ErrorIs(t, err, ErrBadTx)

	// Input without utxo information.
	pkScript := p2wpkhScript(t, privKey.PubKey())
	unsigned.AddTxOut(wire.NewTxOut(testInputValue-1000, pkScript))
	packet, err := psbt.NewFromUnsignedTx(unsigned)
	require.NoError(t, err)

	_, err = SignPsbt(packet, fetchKey)
	require.ErrorIs(t, err, ErrBadTx)
}
