// Package addr implements the per-chain address encodings exposed by the
// wallet engine: EVM (Keccak + EIP-55), Bitcoin P2PKH and P2WPKH, and
// Solana Ed25519 public keys.
package addr

import (
	"errors"
	"fmt"
)

// Chain identifies an address encoding scheme.
type Chain uint8

const (
	// EVM is a 20-byte Keccak-derived account address with EIP-55
	// checksum casing.
	EVM Chain = iota

	// BitcoinP2PKH is a Base58Check pay-to-pubkey-hash address.
	BitcoinP2PKH

	// BitcoinP2WPKH is a Bech32 pay-to-witness-pubkey-hash address.
	BitcoinP2WPKH

	// SolanaEd25519 is a Base58 encoded Ed25519 public key.
	SolanaEd25519
)

// ErrBadAddress describes an address string that does not parse exactly
// under its claimed encoding.
var ErrBadAddress = errors.New("malformed address")

// Address carries an encoded address together with its raw payload: the
// 20-byte account hash for EVM, the 20-byte pubkey hash for Bitcoin, or the
// 32-byte public key for Solana.
type Address struct {
	Chain   Chain
	Encoded string
	Raw     []byte
}

// String returns the canonical encoded form.
func (a Address) String() string {
	return a.Encoded
}

func (c Chain) String() string {
	switch c {
	case EVM:
		return "evm"
	case BitcoinP2PKH:
		return "btc-p2pkh"
	case BitcoinP2WPKH:
		return "btc-p2wpkh"
	case SolanaEd25519:
		return "sol"
	}
	return fmt.Sprintf("chain(%d)", uint8(c))
}
