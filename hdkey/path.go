package hdkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// MaxDepth bounds the number of derivation steps accepted in a single path.
const MaxDepth = 8

// BIP-44 purpose and registered coin types used by the engine.
const (
	PurposeBIP44 = 44
	PurposeBIP49 = 49
	PurposeBIP84 = 84

	CoinTypeBitcoin  = 0
	CoinTypeTestnet  = 1
	CoinTypeEthereum = 60
	CoinTypeSolana   = 501
)

// ErrBadPath describes a derivation path that does not parse or exceeds
// MaxDepth.
var ErrBadPath = errors.New("malformed derivation path")

// Step is one child derivation: a 31-bit index plus a hardened flag.
type Step struct {
	Index    uint32
	Hardened bool
}

// Path is an ordered sequence of derivation steps starting at the master
// key.
type Path []Step

// ParsePath parses the canonical textual form
// m/44'/60'/0'/0/0 into a Path. Both ' and h mark hardened steps. The
// leading m element is required.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: missing leading m", ErrBadPath)
	}
	parts = parts[1:]
	if len(parts) > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d",
			ErrBadPath, len(parts), MaxDepth)
	}

	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty element", ErrBadPath)
		}

		hardened := false
		if last := part[len(part)-1]; last == '\'' || last == 'h' ||
			last == 'H' {

			hardened = true
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil || index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad index %q",
				ErrBadPath, part)
		}

		path = append(path, Step{
			Index:    uint32(index),
			Hardened: hardened,
		})
	}

	return path, nil
}

// BIP44 builds the conventional five-level path
// m / purpose' / coin_type' / account' / change / address_index.
func BIP44(purpose, coinType, account, change, index uint32) Path {
	return Path{
		{Index: purpose, Hardened: true},
		{Index: coinType, Hardened: true},
		{Index: account, Hardened: true},
		{Index: change},
		{Index: index},
	}
}

// String renders the path in its canonical textual form.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, step := range p {
		sb.WriteString("/")
		sb.WriteString(strconv.FormatUint(uint64(step.Index), 10))
		if step.Hardened {
			sb.WriteString("'")
		}
	}
	return sb.String()
}
