// Package vault implements password-based authenticated encryption for
// seed and private key material. Blobs use a versioned binary envelope
// whose associated data binds the ciphertext to an account identifier, so
// a blob copied between accounts fails to open.
package vault

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kestrelwallet/kestrel/internal/zero"
)

const (
	// Version is the current envelope version written by Seal.
	Version = 1

	// KDFArgon2id identifies the only key derivation function accepted
	// by version 1 envelopes.
	KDFArgon2id = 1

	// KeySize is the size of the derived AEAD key.
	KeySize = chacha20poly1305.KeySize

	// SaltSize is the size of the random KDF salt.
	SaltSize = 16

	// NonceSize is the XChaCha20-Poly1305 nonce size.
	NonceSize = chacha20poly1305.NonceSizeX

	// TagSize is the Poly1305 authentication tag size.
	TagSize = chacha20poly1305.Overhead

	// MinPasswordLen and MaxPasswordLen bound accepted passwords.
	MinPasswordLen = 8
	MaxPasswordLen = 1024
)

var (
	// ErrInvalidPassword is returned when the AEAD tag does not verify.
	// A wrong password and a wrong account identifier are deliberately
	// indistinguishable.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrMalformed is returned for blobs that do not parse exactly under
	// the version 1 layout.
	ErrMalformed = errors.New("malformed vault blob")

	// ErrPasswordSize is returned for passwords outside the accepted
	// length bounds.
	ErrPasswordSize = errors.New("password length out of bounds")
)

var prng io.Reader = rand.Reader

// Params are the memory-hard KDF parameters stored inside the blob header
// and bound into the associated data.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams targets roughly a quarter second of derivation work on
// commodity hardware.
var DefaultParams = Params{
	MemoryKiB:   64 * 1024,
	Iterations:  3,
	Parallelism: 1,
}

// FastParams weakens the KDF far below production strength so tests run
// quickly.
var FastParams = Params{
	MemoryKiB:   64,
	Iterations:  1,
	Parallelism: 1,
}

// Seal encrypts plaintext under a password for the given account. A fresh
// salt and nonce are drawn for every call, so sealing the same plaintext
// twice yields different blobs.
func Seal(plaintext, password, accountID []byte, params Params) (
	*Blob, error) {

	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return nil, ErrPasswordSize
	}

	blob := &Blob{
		Version: Version,
		KDFID:   KDFArgon2id,
		Params:  params,
	}
	if _, err := io.ReadFull(prng, blob.Salt[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(prng, blob.Nonce[:]); err != nil {
		return nil, err
	}

	key := deriveKey(password, blob.Salt[:], params)
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, blob.Nonce[:], plaintext,
		blob.associatedData(accountID))

	blob.Ciphertext = sealed[:len(sealed)-TagSize]
	copy(blob.Tag[:], sealed[len(sealed)-TagSize:])
	return blob, nil
}

// Open re-derives the AEAD key and decrypts the blob. Any tag mismatch,
// whether from a wrong password, a wrong account identifier, or a modified
// ciphertext, surfaces as ErrInvalidPassword. The returned plaintext is a
// fresh buffer the caller must wipe.
func Open(blob *Blob, password, accountID []byte) ([]byte, error) {
	if blob == nil || blob.Version != Version || blob.KDFID != KDFArgon2id {
		return nil, ErrMalformed
	}
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return nil, ErrInvalidPassword
	}

	key := deriveKey(password, blob.Salt[:], blob.Params)
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+TagSize)
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag[:]...)

	plaintext, err := aead.Open(nil, blob.Nonce[:], sealed,
		blob.associatedData(accountID))
	if err != nil {
		return nil, ErrInvalidPassword
	}
	return plaintext, nil
}

// Rewrap opens the blob under the old password and reseals it under the
// new one with a fresh salt and nonce. The intermediate plaintext is wiped
// before returning. Making the swap atomic in storage is the caller's
// responsibility.
func Rewrap(blob *Blob, oldPassword, newPassword, accountID []byte,
	params Params) (*Blob, error) {

	plaintext, err := Open(blob, oldPassword, accountID)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(plaintext)

	return Seal(plaintext, newPassword, accountID, params)
}

func deriveKey(password, salt []byte, params Params) []byte {
	return argon2.IDKey(password, salt, params.Iterations,
		params.MemoryKiB, params.Parallelism, KeySize)
}
