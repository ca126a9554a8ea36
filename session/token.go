package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// Handle kinds. A refresh handle can only be spent on rotation; an access
// handle only authorises engine operations.
const (
	KindAccess  uint8 = 1
	KindRefresh uint8 = 2
)

const (
	handleVersion = 1

	// sessionIDSize is the size of the random session identifier.
	sessionIDSize = 16

	macSize = sha256.Size

	// maxUserIDLen bounds the user id carried inside a handle.
	maxUserIDLen = 255
)

var (
	// ErrInvalidToken is returned for handles that fail to parse or
	// whose MAC does not verify. No distinction is exposed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for authentic handles past their
	// expiry.
	ErrTokenExpired = errors.New("token expired")
)

// SessionID is the random identifier naming one session.
type SessionID [sessionIDSize]byte

// claims is the decoded payload of a handle.
//
// The version 1 wire layout, big-endian, MACed with HMAC-SHA256 over every
// preceding byte and rendered with unpadded base64url:
//
//	1B version | 1B kind | 16B session_id | 2B uid_len | uid |
//	8B issued_at_unix | 8B expires_at_unix | 32B mac
type claims struct {
	Kind      uint8
	SessionID SessionID
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// signHandle serializes and MACs the claims under the signing key.
func signHandle(key []byte, c *claims) (string, error) {
	if len(c.UserID) == 0 || len(c.UserID) > maxUserIDLen {
		return "", ErrInvalidToken
	}

	buf := make([]byte, 0, 2+sessionIDSize+2+len(c.UserID)+16+macSize)
	buf = append(buf, handleVersion, c.Kind)
	buf = append(buf, c.SessionID[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.UserID)))
	buf = append(buf, c.UserID...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(c.IssuedAt.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(c.ExpiresAt.Unix()))

	mac := hmac.New(sha256.New, key)
	mac.Write(buf)
	buf = mac.Sum(buf)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// parseHandle decodes a handle and verifies its MAC. Expiry is not checked
// here; the manager compares against its clock so tests can control time.
func parseHandle(key []byte, handle string) (*claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return nil, ErrInvalidToken
	}

	const fixed = 2 + sessionIDSize + 2 + 16 + macSize
	if len(raw) < fixed || raw[0] != handleVersion {
		return nil, ErrInvalidToken
	}
	if raw[1] != KindAccess && raw[1] != KindRefresh {
		return nil, ErrInvalidToken
	}

	uidLen := int(binary.BigEndian.Uint16(raw[2+sessionIDSize:]))
	if uidLen == 0 || uidLen > maxUserIDLen ||
		len(raw) != fixed+uidLen {

		return nil, ErrInvalidToken
	}

	body := raw[:len(raw)-macSize]
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), raw[len(raw)-macSize:]) {
		return nil, ErrInvalidToken
	}

	c := &claims{Kind: raw[1]}
	copy(c.SessionID[:], raw[2:2+sessionIDSize])

	rest := raw[2+sessionIDSize+2:]
	c.UserID = string(rest[:uidLen])
	rest = rest[uidLen:]
	c.IssuedAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[:8])), 0).UTC()
	c.ExpiresAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[8:16])), 0).UTC()
	return c, nil
}
