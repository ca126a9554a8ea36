package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// KeyFetcher returns the private key that controls input i of a packet.
// It lets the caller map inputs to derivation paths without the signer
// knowing about HD wallets.
type KeyFetcher func(i int, in *psbt.PInput) (*btcec.PrivateKey, error)

// SignedBtcTx is the fully signed transaction extracted from a
// finalized packet.
type SignedBtcTx struct {
	Tx   *wire.MsgTx
	TxID chainhash.Hash
}

// SignPsbt signs every input of the packet with keys supplied by
// fetchKey, finalizes it and extracts the network-ready transaction.
// P2WPKH inputs are signed with BIP-143 witness signatures, P2PKH
// inputs with legacy signatures. Each input must carry a witness or
// non-witness UTXO so the spent amount and script are known.
func SignPsbt(packet *psbt.Packet, fetchKey KeyFetcher) (*SignedBtcTx, error) {
	if packet == nil || packet.UnsignedTx == nil {
		return nil, fmt.Errorf("%w: empty packet", ErrBadTx)
	}
	tx := packet.UnsignedTx
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return nil, fmt.Errorf("%w: transaction needs at least one "+
			"input and output", ErrBadTx)
	}
	if len(packet.Inputs) != len(tx.TxIn) {
		return nil, fmt.Errorf("%w: input metadata count mismatch",
			ErrBadTx)
	}

	fetcher, err := prevOutFetcher(packet)
	if err != nil {
		return nil, err
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i := range packet.Inputs {
		pIn := &packet.Inputs[i]
		privKey, err := fetchKey(i, pIn)
		if err != nil {
			return nil, err
		}

		prevOut := fetcher.FetchPrevOutput(
			tx.TxIn[i].PreviousOutPoint,
		)

		var sig []byte
		switch {
		case txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript):
			sig, err = txscript.RawTxInWitnessSignature(
				tx, sigHashes, i, prevOut.Value,
				prevOut.PkScript, txscript.SigHashAll, privKey,
			)

		case txscript.IsPayToPubKeyHash(prevOut.PkScript):
			sig, err = txscript.RawTxInSignature(
				tx, i, prevOut.PkScript,
				txscript.SigHashAll, privKey,
			)

		default:
			return nil, fmt.Errorf("%w: input %d spends an "+
				"unsupported script", ErrBadTx, i)
		}
		if err != nil {
			return nil, err
		}

		pIn.SighashType = txscript.SigHashAll
		pIn.PartialSigs = append(pIn.PartialSigs, &psbt.PartialSig{
			PubKey:    privKey.PubKey().SerializeCompressed(),
			Signature: sig,
		})
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, err
	}
	finalTx, err := psbt.Extract(packet)
	if err != nil {
		return nil, err
	}

	return &SignedBtcTx{
		Tx:   finalTx,
		TxID: finalTx.TxHash(),
	}, nil
}

// prevOutFetcher collects the spent outputs recorded in the packet so
// sighash computation can resolve every input.
func prevOutFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, pIn := range packet.Inputs {
		op := packet.UnsignedTx.TxIn[i].PreviousOutPoint

		switch {
		case pIn.WitnessUtxo != nil:
			fetcher.AddPrevOut(op, pIn.WitnessUtxo)

		case pIn.NonWitnessUtxo != nil:
			prevTx := pIn.NonWitnessUtxo
			if op.Index >= uint32(len(prevTx.TxOut)) {
				return nil, fmt.Errorf("%w: input %d points "+
					"past its previous outputs", ErrBadTx, i)
			}
			fetcher.AddPrevOut(op, prevTx.TxOut[op.Index])

		default:
			return nil, fmt.Errorf("%w: input %d has no utxo "+
				"information", ErrBadTx, i)
		}
	}

	return fetcher, nil
}
