// Package signer produces per-chain transaction signatures. Signing is
// pure computation: no network access, and every request is validated in
// full before any key material is touched.
package signer

import "errors"

// ErrBadTx describes a transaction request with missing or inconsistent
// fields. It is always raised before signing starts.
var ErrBadTx = errors.New("malformed transaction")
