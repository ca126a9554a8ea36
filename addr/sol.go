package addr

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// SolanaAddressSize is the raw size of a Solana account address, which is
// the Ed25519 public key itself.
const SolanaAddressSize = ed25519.PublicKeySize

// NewSolana encodes an Ed25519 public key as a Base58 Solana address.
func NewSolana(pub ed25519.PublicKey) (Address, error) {
	if len(pub) != SolanaAddressSize {
		return Address{}, fmt.Errorf("%w: want %d byte key, got %d",
			ErrBadAddress, SolanaAddressSize, len(pub))
	}

	raw := make([]byte, SolanaAddressSize)
	copy(raw, pub)

	return Address{
		Chain:   SolanaEd25519,
		Encoded: base58.Encode(raw),
		Raw:     raw,
	}, nil
}

// DecodeSolana parses a Base58 Solana address back into its 32-byte public
// key form.
func DecodeSolana(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(raw) != SolanaAddressSize {
		return Address{}, fmt.Errorf("%w: want %d bytes, got %d",
			ErrBadAddress, SolanaAddressSize, len(raw))
	}

	return Address{
		Chain:   SolanaEd25519,
		Encoded: base58.Encode(raw),
		Raw:     raw,
	}, nil
}
