// Package cred implements password credential records: memory-hard
// hashing, constant-time verification, and transparent migration of
// records hashed under the legacy scrypt algorithm to the current
// argon2id default.
package cred

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"

	"github.com/kestrelwallet/kestrel/internal/zero"
)

const (
	// HashSize is the size of the stored password hash.
	HashSize = 32

	// SaltSize is the size of the per-record random salt.
	SaltSize = 16

	// MinPasswordLen and MaxPasswordLen bound accepted passwords.
	MinPasswordLen = 8
	MaxPasswordLen = 1024
)

// Algorithm tags stored with each record. The tag drives verification and
// the rehash-on-login policy.
const (
	// AlgScrypt marks records hashed by earlier releases.
	AlgScrypt uint8 = 1

	// AlgArgon2id is the current default.
	AlgArgon2id uint8 = 2
)

var (
	// ErrWeakPassword is returned when a password is outside the
	// accepted length bounds at registration.
	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrBadPassword is returned when verification fails. No further
	// detail is exposed.
	ErrBadPassword = errors.New("invalid password")

	// ErrUnknownAlgorithm is returned for records carrying a tag this
	// release cannot verify.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

var prng io.Reader = rand.Reader

// Params hold the three KDF cost parameters. Their meaning depends on the
// algorithm tag: memory KiB / iterations / parallelism for argon2id, and
// N / r / p for legacy scrypt.
type Params struct {
	P1 uint32
	P2 uint32
	P3 uint32
}

// DefaultParams is the current argon2id cost target, sized for roughly a
// quarter second on commodity hardware.
var DefaultParams = Params{P1: 64 * 1024, P2: 3, P3: 1}

// FastParams is for tests only.
var FastParams = Params{P1: 64, P2: 1, P3: 1}

// LegacyScryptParams mirrors the scrypt cost used by earlier releases.
var LegacyScryptParams = Params{P1: 262144, P2: 8, P3: 1}

// Record is one user's stored credential.
type Record struct {
	UserID         string
	Algorithm      uint8
	Params         Params
	Salt           [SaltSize]byte
	Hash           [HashSize]byte
	Disabled       bool
	CreatedAt      time.Time
	LastRehashedAt time.Time
}

// NewRecord hashes the password under the current default algorithm and
// returns a fresh record for the user.
func NewRecord(userID string, password []byte, params Params,
	now time.Time) (*Record, error) {

	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return nil, ErrWeakPassword
	}

	rec := &Record{
		UserID:         userID,
		Algorithm:      AlgArgon2id,
		Params:         params,
		CreatedAt:      now,
		LastRehashedAt: now,
	}
	if _, err := io.ReadFull(prng, rec.Salt[:]); err != nil {
		return nil, err
	}

	hash, err := hashPassword(rec.Algorithm, password, rec.Salt[:], params)
	if err != nil {
		return nil, err
	}
	copy(rec.Hash[:], hash)
	zero.Bytes(hash)
	return rec, nil
}

// Verify checks the password against the record in constant time. On
// success it also reports whether the record should be rehashed because it
// still carries a legacy algorithm tag. Verification failure reveals
// nothing beyond ErrBadPassword.
func (r *Record) Verify(password []byte) (rehashNeeded bool, err error) {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return false, ErrBadPassword
	}

	hash, err := hashPassword(r.Algorithm, password, r.Salt[:], r.Params)
	if err != nil {
		return false, err
	}
	defer zero.Bytes(hash)

	if subtle.ConstantTimeCompare(hash, r.Hash[:]) != 1 {
		return false, ErrBadPassword
	}
	return r.Algorithm != AlgArgon2id, nil
}

// Rehash verifies the password against the record and, if it matches,
// returns a replacement hashed under the current default algorithm.
func (r *Record) Rehash(password []byte, params Params, now time.Time) (
	*Record, error) {

	if _, err := r.Verify(password); err != nil {
		return nil, err
	}

	next, err := NewRecord(r.UserID, password, params, now)
	if err != nil {
		return nil, err
	}
	next.CreatedAt = r.CreatedAt
	next.Disabled = r.Disabled
	return next, nil
}

func hashPassword(alg uint8, password, salt []byte, params Params) (
	[]byte, error) {

	switch alg {
	case AlgArgon2id:
		return argon2.IDKey(password, salt, params.P2, params.P1,
			uint8(params.P3), HashSize), nil

	case AlgScrypt:
		return scrypt.Key(password, salt, int(params.P1),
			int(params.P2), int(params.P3), HashSize)
	}

	return nil, ErrUnknownAlgorithm
}
