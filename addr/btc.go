package addr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// NewP2PKH derives a Base58Check pay-to-pubkey-hash address from the
// HASH160 of the compressed public key.
func NewP2PKH(pub *btcec.PublicKey, params *chaincfg.Params) (
	Address, error) {

	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	a, err := btcutil.NewAddressPubKeyHash(pkHash, params)
	if err != nil {
		return Address{}, err
	}

	return Address{
		Chain:   BitcoinP2PKH,
		Encoded: a.EncodeAddress(),
		Raw:     pkHash,
	}, nil
}

// NewP2WPKH derives a native SegWit v0 Bech32 address from the HASH160 of
// the compressed public key.
func NewP2WPKH(pub *btcec.PublicKey, params *chaincfg.Params) (
	Address, error) {

	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	a, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
	if err != nil {
		return Address{}, err
	}

	return Address{
		Chain:   BitcoinP2WPKH,
		Encoded: a.EncodeAddress(),
		Raw:     pkHash,
	}, nil
}

// DecodeBitcoin parses a Bitcoin address for the given network and returns
// its raw pubkey hash. Only P2PKH and P2WPKH forms are accepted; anything
// else fails with ErrBadAddress.
func DecodeBitcoin(s string, params *chaincfg.Params) (Address, error) {
	decoded, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if !decoded.IsForNet(params) {
		return Address{}, fmt.Errorf("%w: wrong network",
			ErrBadAddress)
	}

	switch a := decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		return Address{
			Chain:   BitcoinP2PKH,
			Encoded: a.EncodeAddress(),
			Raw:     a.ScriptAddress(),
		}, nil

	case *btcutil.AddressWitnessPubKeyHash:
		return Address{
			Chain:   BitcoinP2WPKH,
			Encoded: a.EncodeAddress(),
			Raw:     a.ScriptAddress(),
		}, nil
	}

	return Address{}, fmt.Errorf("%w: unsupported script type %T",
		ErrBadAddress, decoded)
}
