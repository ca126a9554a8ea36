package addr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// EVMAddressSize is the raw size of an EVM account address.
const EVMAddressSize = 20

// NewEVM derives the account address for a secp256k1 public key: the low 20
// bytes of Keccak-256 over the uncompressed point without the 0x04 prefix,
// rendered with the EIP-55 mixed-case checksum.
func NewEVM(pub *btcec.PublicKey) Address {
	raw := crypto.PubkeyToAddress(*pub.ToECDSA())
	return Address{
		Chain:   EVM,
		Encoded: checksumEVM(raw[:]),
		Raw:     raw[:],
	}
}

// DecodeEVM parses a 0x-prefixed hex address. Mixed-case input must carry a
// valid EIP-55 checksum; all-lowercase and all-uppercase forms are accepted
// without one. The returned address is always in checksum casing.
func DecodeEVM(s string) (Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, fmt.Errorf("%w: missing 0x prefix",
			ErrBadAddress)
	}
	body := s[2:]
	if len(body) != EVMAddressSize*2 {
		return Address{}, fmt.Errorf("%w: want %d hex chars, got %d",
			ErrBadAddress, EVMAddressSize*2, len(body))
	}

	raw, err := hex.DecodeString(body)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if "0x"+body != checksumEVM(raw) {
			return Address{}, fmt.Errorf("%w: EIP-55 checksum "+
				"mismatch", ErrBadAddress)
		}
	}

	return Address{Chain: EVM, Encoded: checksumEVM(raw), Raw: raw}, nil
}

// checksumEVM applies the EIP-55 casing rule: hex digit i is uppercased when
// bit 4*i of Keccak-256(lowercase-hex-address) is set.
func checksumEVM(raw []byte) string {
	lower := hex.EncodeToString(raw)
	digest := crypto.Keccak256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2] >> 4
		if i%2 == 1 {
			nibble = digest[i/2] & 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out)
}
