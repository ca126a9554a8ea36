// Package mnemonic implements BIP-39 mnemonic generation and seed
// derivation for the wallet engine.
package mnemonic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"github.com/kestrelwallet/kestrel/internal/zero"
)

const (
	// StrengthStandard produces a 12 word mnemonic (128 bits of entropy).
	StrengthStandard = 128

	// StrengthHigh produces a 24 word mnemonic (256 bits of entropy).
	StrengthHigh = 256

	// SeedSize is the size of the seed derived from a mnemonic.
	SeedSize = 64

	// MaxWords bounds the accepted phrase length.
	MaxWords = 24
)

var (
	// ErrBadMnemonic describes a phrase that fails word list membership
	// or checksum validation.
	ErrBadMnemonic = errors.New("invalid mnemonic")

	// ErrBadStrength describes an unsupported entropy strength.
	ErrBadStrength = errors.New("strength must be 128 or 256 bits")
)

// wordSet indexes the BIP-39 English word list for membership checks.
var wordSet = func() map[string]struct{} {
	list := bip39.GetWordList()
	set := make(map[string]struct{}, len(list))
	for _, w := range list {
		set[w] = struct{}{}
	}
	return set
}()

// Generate creates a new mnemonic from cryptographically secure entropy.
// strength must be StrengthStandard or StrengthHigh.
func Generate(strength int) (string, error) {
	if strength != StrengthStandard && strength != StrengthHigh {
		return "", ErrBadStrength
	}

	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", err
	}
	defer zero.Bytes(entropy)

	return bip39.NewMnemonic(entropy)
}

// Validate reports whether the phrase is a well formed BIP-39 mnemonic with
// a valid checksum. It never returns an error.
func Validate(phrase string) bool {
	return bip39.IsMnemonicValid(normalize(phrase))
}

// CheckWords returns the zero-based position of the first word that is not
// in the BIP-39 English word list, or -1 if every word is known. Callers may
// report the position to a user without echoing the phrase itself.
func CheckWords(phrase string) int {
	words := strings.Fields(normalize(phrase))
	for i, w := range words {
		if _, ok := wordSet[w]; !ok {
			return i
		}
	}
	return -1
}

// ToSeed validates the phrase and stretches it into a 64-byte seed using
// PBKDF2-HMAC-SHA512 per BIP-39. The same phrase and passphrase always
// produce the same seed. The caller owns the returned bytes and should wipe
// them when done.
func ToSeed(phrase, passphrase string) ([]byte, error) {
	phrase = normalize(phrase)
	if n := len(strings.Fields(phrase)); n > MaxWords {
		return nil, fmt.Errorf("%w: %d words", ErrBadMnemonic, n)
	}

	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return nil, ErrBadMnemonic
	}
	return seed, nil
}

func normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
