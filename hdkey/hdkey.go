// Package hdkey implements BIP-32 hierarchical deterministic key derivation
// and BIP-44 path resolution on top of btcutil's hdkeychain.
package hdkey

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrDerivationRefused is returned when a hardened child is requested
	// from a public-only extended key.
	ErrDerivationRefused = errors.New(
		"hardened derivation requires the private key")

	// ErrWeakKey is returned when the derived scalar is zero or not less
	// than the curve order. Per BIP-32 the caller retries with the next
	// index.
	ErrWeakKey = errors.New("derived key is outside the valid range")

	// ErrBadSeed is returned for seeds outside the BIP-32 accepted range
	// of 16 to 64 bytes.
	ErrBadSeed = errors.New("seed must be between 16 and 64 bytes")
)

// MasterFromSeed builds the BIP-32 master extended private key from a seed:
// HMAC-SHA512 keyed with "Bitcoin seed", left half private key, right half
// chain code. The network parameters only select the serialization version
// bytes and do not affect derived key material.
func MasterFromSeed(seed []byte, params *chaincfg.Params) (
	*hdkeychain.ExtendedKey, error) {

	if params == nil {
		params = &chaincfg.MainNetParams
	}

	key, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, convertErr(err)
	}
	return key, nil
}

// DeriveChild derives the child at index from the extended key, applying
// the hardened offset when requested. Hardened derivation from a neutered
// key fails with ErrDerivationRefused; an out-of-range scalar fails with
// ErrWeakKey and the caller should retry with the next index.
func DeriveChild(key *hdkeychain.ExtendedKey, index uint32,
	hardened bool) (*hdkeychain.ExtendedKey, error) {

	if index >= hdkeychain.HardenedKeyStart {
		return nil, ErrBadPath
	}
	if hardened {
		if !key.IsPrivate() {
			return nil, ErrDerivationRefused
		}
		index += hdkeychain.HardenedKeyStart
	}

	child, err := key.Derive(index)
	if err != nil {
		return nil, convertErr(err)
	}
	return child, nil
}

// DerivePath applies every step of the path in order, starting at key.
// The key is normally the master key; deriving from a deeper ancestor is
// the caller's responsibility to line up.
func DerivePath(key *hdkeychain.ExtendedKey, path Path) (
	*hdkeychain.ExtendedKey, error) {

	current := key
	for _, step := range path {
		child, err := DeriveChild(current, step.Index, step.Hardened)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// Neuter strips the private material from the extended key, leaving a
// public-only key that can derive non-hardened children.
func Neuter(key *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	return key.Neuter()
}

func convertErr(err error) error {
	switch {
	case errors.Is(err, hdkeychain.ErrDeriveHardFromPublic):
		return ErrDerivationRefused
	case errors.Is(err, hdkeychain.ErrInvalidChild):
		return ErrWeakKey
	case errors.Is(err, hdkeychain.ErrInvalidSeedLen):
		return ErrBadSeed
	}
	return err
}
