package wallet

import (
	"errors"
	"fmt"

	"github.com/kestrelwallet/kestrel/addr"
	"github.com/kestrelwallet/kestrel/cred"
	"github.com/kestrelwallet/kestrel/hdkey"
	"github.com/kestrelwallet/kestrel/mnemonic"
	"github.com/kestrelwallet/kestrel/session"
	"github.com/kestrelwallet/kestrel/signer"
	"github.com/kestrelwallet/kestrel/stealth"
	"github.com/kestrelwallet/kestrel/vault"
)

// ErrorCode identifies a kind of engine error. The set is stable so
// callers can switch on it across releases.
type ErrorCode int

const (
	// ErrBadMnemonic means a mnemonic failed wordlist or checksum
	// validation.
	ErrBadMnemonic ErrorCode = iota

	// ErrBadPassword means authentication failed. Wrong passwords and
	// wrong account bindings both surface as this code so the engine
	// gives no oracle about which was at fault.
	ErrBadPassword

	// ErrWrongAccount is recorded for completeness but never returned
	// across the facade; account mismatches surface as ErrBadPassword.
	ErrWrongAccount

	// ErrWeakPassword means a password fell outside the accepted
	// length bounds.
	ErrWeakPassword

	// ErrWeakKey means a derived scalar was zero or out of range.
	ErrWeakKey

	// ErrDerivationRefused means a derivation step was structurally
	// impossible, such as a hardened child of a public key.
	ErrDerivationRefused

	// ErrBadAddress means an address string failed to decode.
	ErrBadAddress

	// ErrBadTx means a transaction request was missing or had
	// inconsistent fields.
	ErrBadTx

	// ErrInvalidToken means an access handle failed to parse or
	// verify.
	ErrInvalidToken

	// ErrTokenExpired means a well-formed access handle is past its
	// lifetime.
	ErrTokenExpired

	// ErrInvalidRefreshToken means a refresh handle failed to verify
	// or was already consumed by rotation.
	ErrInvalidRefreshToken

	// ErrUserNotFound means no credential record exists for the user.
	ErrUserNotFound

	// ErrUserExists means a credential record already exists.
	ErrUserExists

	// ErrAccountInactive means the account is disabled.
	ErrAccountInactive

	// ErrMetaFormat means a meta-address payload was malformed.
	ErrMetaFormat

	// ErrMetaPrefix means a meta-address had the wrong prefix.
	ErrMetaPrefix

	// ErrMetaLength means a meta-address had the wrong length.
	ErrMetaLength

	// ErrStorageConflict means a write lost a compare-and-swap race.
	// The caller may retry.
	ErrStorageConflict

	// ErrInternal means an invariant was violated. It is surfaced
	// opaquely and should be reported.
	ErrInternal
)

var errCodeStrings = map[ErrorCode]string{
	ErrBadMnemonic:         "ErrBadMnemonic",
	ErrBadPassword:         "ErrBadPassword",
	ErrWrongAccount:        "ErrWrongAccount",
	ErrWeakPassword:        "ErrWeakPassword",
	ErrWeakKey:             "ErrWeakKey",
	ErrDerivationRefused:   "ErrDerivationRefused",
	ErrBadAddress:          "ErrBadAddress",
	ErrBadTx:               "ErrBadTx",
	ErrInvalidToken:        "ErrInvalidToken",
	ErrTokenExpired:        "ErrTokenExpired",
	ErrInvalidRefreshToken: "ErrInvalidRefreshToken",
	ErrUserNotFound:        "ErrUserNotFound",
	ErrUserExists:          "ErrUserExists",
	ErrAccountInactive:     "ErrAccountInactive",
	ErrMetaFormat:          "ErrMetaFormat",
	ErrMetaPrefix:          "ErrMetaPrefix",
	ErrMetaLength:          "ErrMetaLength",
	ErrStorageConflict:     "ErrStorageConflict",
	ErrInternal:            "ErrInternal",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is the concrete error type returned by every facade operation.
// It wraps the underlying cause, when safe to expose, so errors.Is
// still matches subpackage sentinels.
type Error struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the wrapped error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func walletError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError reports whether err is an engine Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

// codeMappings routes subpackage sentinels to canonical codes. Order
// matters only in that the first match wins.
var codeMappings = []struct {
	sentinel error
	code     ErrorCode
}{
	{mnemonic.ErrBadMnemonic, ErrBadMnemonic},
	{mnemonic.ErrBadStrength, ErrBadMnemonic},
	{hdkey.ErrDerivationRefused, ErrDerivationRefused},
	{hdkey.ErrBadPath, ErrDerivationRefused},
	{hdkey.ErrWeakKey, ErrWeakKey},
	{addr.ErrBadAddress, ErrBadAddress},
	{vault.ErrInvalidPassword, ErrBadPassword},
	{vault.ErrPasswordSize, ErrWeakPassword},
	{cred.ErrWeakPassword, ErrWeakPassword},
	{cred.ErrBadPassword, ErrBadPassword},
	{cred.ErrUserExists, ErrUserExists},
	{cred.ErrUserNotFound, ErrUserNotFound},
	{session.ErrTokenExpired, ErrTokenExpired},
	{session.ErrInvalidRefreshToken, ErrInvalidRefreshToken},
	{session.ErrInvalidToken, ErrInvalidToken},
	{session.ErrUnknownSession, ErrInvalidToken},
	{signer.ErrBadTx, ErrBadTx},
	{stealth.ErrMetaPrefix, ErrMetaPrefix},
	{stealth.ErrMetaLength, ErrMetaLength},
	{stealth.ErrMetaFormat, ErrMetaFormat},
	{stealth.ErrWeakKey, ErrWeakKey},
}

// convertError maps a subpackage error onto the canonical code set.
// Anything unrecognized is an invariant violation and reported as
// ErrInternal with the cause kept for logs.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		return err
	}
	for _, m := range codeMappings {
		if errors.Is(err, m.sentinel) {
			return walletError(m.code, m.sentinel.Error(), err)
		}
	}
	return walletError(ErrInternal, "unexpected engine failure", err)
}
