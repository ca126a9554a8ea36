// Package session issues and validates the bound session handles that
// gate access to the engine: short-lived access handles and long-lived,
// single-use refresh handles, both HMAC-signed compact tokens backed by a
// persisted session record.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/kestrelwallet/kestrel/walletdb"
)

const (
	// DefaultAccessTTL is the default access handle lifetime.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the default refresh handle lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// DefaultCacheSize bounds the in-memory session record cache.
	DefaultCacheSize = 1024
)

var (
	// ErrInvalidRefreshToken is returned for any refresh failure:
	// unknown, revoked, expired, or already-consumed handles all look
	// the same to the caller.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrUnknownSession is returned when revoking a session id that
	// does not exist.
	ErrUnknownSession = errors.New("unknown session")
)

var prng io.Reader = rand.Reader

// Config carries the manager's signing key and lifetimes.
type Config struct {
	// SigningKey authenticates every issued handle.
	SigningKey [32]byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CacheSize  int
}

// Session is the issued pair of handles returned to a caller.
type Session struct {
	ID               SessionID
	UserID           string
	AccessHandle     string
	RefreshHandle    string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is the result of a successful access validation.
type Identity struct {
	SessionID SessionID
	UserID    string
}

type cachedSession struct {
	rec *Record
}

func (c *cachedSession) Size() (uint64, error) {
	return 1, nil
}

// Manager owns the session bucket. Writes to a session record go through
// serialized database transactions, so concurrent refreshes of the same
// handle resolve to exactly one winner.
type Manager struct {
	cfg   Config
	db    walletdb.DB
	clock clock.Clock
	cache *lru.Cache[SessionID, *cachedSession]
}

// NewManager binds a session manager to a database and clock.
func NewManager(db walletdb.DB, clk clock.Clock, cfg Config) (
	*Manager, error) {

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL shorter than access TTL")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(sessionBucketName)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:   cfg,
		db:    db,
		clock: clk,
		cache: lru.NewCache[SessionID, *cachedSession](
			uint64(cfg.CacheSize)),
	}, nil
}

// Create allocates a new session for the user and issues its first
// access/refresh handle pair.
func (m *Manager) Create(userID, fingerprint string) (*Session, error) {
	var id SessionID
	if _, err := io.ReadFull(prng, id[:]); err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC().Truncate(time.Second)
	sess, refreshDigest, err := m.issueHandles(id, userID, now)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:               id,
		UserID:           userID,
		Fingerprint:      fingerprint,
		Version:          1,
		CreatedAt:        now,
		LastUsedAt:       now,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		RefreshDigest:    refreshDigest,
	}

	err = walletdb.Update(m.db, func(tx walletdb.ReadWriteTx) error {
		return putSession(tx, rec)
	})
	if err != nil {
		return nil, err
	}

	m.cache.Put(id, &cachedSession{rec: rec})
	return sess, nil
}

// ValidateAccess checks an access handle: signature, kind, liveness, and
// expiry. On success the session's last-used timestamp is advanced and the
// authenticated identity returned. Revoked and unknown sessions are
// indistinguishable from forged handles.
func (m *Manager) ValidateAccess(handle string) (*Identity, error) {
	c, err := parseHandle(m.cfg.SigningKey[:], handle)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindAccess {
		return nil, ErrInvalidToken
	}

	rec, err := m.lookup(c.SessionID)
	if err != nil || rec.Revoked || rec.UserID != c.UserID {
		return nil, ErrInvalidToken
	}

	now := m.clock.Now().UTC()
	if now.After(c.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	err = walletdb.Update(m.db, func(tx walletdb.ReadWriteTx) error {
		stored, err := fetchSession(tx, c.SessionID)
		if err != nil || stored.Revoked {
			return ErrInvalidToken
		}
		stored.LastUsedAt = now.Truncate(time.Second)
		rec = stored
		return putSession(tx, stored)
	})
	if err != nil {
		return nil, err
	}
	m.cache.Put(c.SessionID, &cachedSession{rec: rec})

	return &Identity{SessionID: c.SessionID, UserID: c.UserID}, nil
}

// Refresh spends a refresh handle and mints a new access/refresh pair.
// The consumed handle is invalidated in the same transaction that records
// the new one, so of any number of concurrent refreshes exactly one
// succeeds and the rest fail with ErrInvalidRefreshToken.
func (m *Manager) Refresh(handle string) (*Session, error) {
	c, err := parseHandle(m.cfg.SigningKey[:], handle)
	if err != nil || c.Kind != KindRefresh {
		return nil, ErrInvalidRefreshToken
	}

	now := m.clock.Now().UTC().Truncate(time.Second)
	if now.After(c.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	sess, refreshDigest, err := m.issueHandles(c.SessionID, c.UserID, now)
	if err != nil {
		return nil, err
	}
	presented := digestHandle(handle)

	var rec *Record
	err = walletdb.Update(m.db, func(tx walletdb.ReadWriteTx) error {
		stored, err := fetchSession(tx, c.SessionID)
		if err != nil {
			return ErrInvalidRefreshToken
		}
		if stored.Revoked || stored.UserID != c.UserID ||
			stored.RefreshDigest != presented {

			return ErrInvalidRefreshToken
		}

		stored.Version++
		stored.LastUsedAt = now
		stored.RefreshExpiresAt = sess.RefreshExpiresAt
		stored.RefreshDigest = refreshDigest
		rec = stored
		return putSession(tx, stored)
	})
	if err != nil {
		return nil, err
	}

	m.cache.Put(c.SessionID, &cachedSession{rec: rec})
	return sess, nil
}

// Revoke marks the session dead. Both of its handles fail validation from
// then on, and the session can never be reissued.
func (m *Manager) Revoke(id SessionID) error {
	var rec *Record
	err := walletdb.Update(m.db, func(tx walletdb.ReadWriteTx) error {
		stored, err := fetchSession(tx, id)
		if err != nil {
			return err
		}
		stored.Revoked = true
		rec = stored
		return putSession(tx, stored)
	})
	if err != nil {
		return err
	}

	m.cache.Put(id, &cachedSession{rec: rec})
	return nil
}

// CleanupExpired removes sessions whose refresh window has closed. The
// sweep is idempotent and safe to run concurrently; database transactions
// serialize the deletes.
func (m *Manager) CleanupExpired() (int, error) {
	now := m.clock.Now().UTC()

	var removed int
	err := walletdb.Update(m.db, func(tx walletdb.ReadWriteTx) error {
		bkt := tx.ReadWriteBucket(sessionBucketName)

		var stale []SessionID
		err := bkt.ForEach(func(k, v []byte) error {
			var id SessionID
			copy(id[:], k)
			rec, err := deserializeSession(id, v)
			if err != nil {
				return err
			}
			if now.After(rec.RefreshExpiresAt) {
				stale = append(stale, id)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range stale {
			if err := bkt.Delete(id[:]); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// issueHandles mints an access/refresh pair with aligned issue times.
func (m *Manager) issueHandles(id SessionID, userID string,
	now time.Time) (*Session, [32]byte, error) {

	accessExpiry := now.Add(m.cfg.AccessTTL)
	refreshExpiry := now.Add(m.cfg.RefreshTTL)

	access, err := signHandle(m.cfg.SigningKey[:], &claims{
		Kind:      KindAccess,
		SessionID: id,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: accessExpiry,
	})
	if err != nil {
		return nil, [32]byte{}, err
	}

	refresh, err := signHandle(m.cfg.SigningKey[:], &claims{
		Kind:      KindRefresh,
		SessionID: id,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: refreshExpiry,
	})
	if err != nil {
		return nil, [32]byte{}, err
	}

	return &Session{
		ID:               id,
		UserID:           userID,
		AccessHandle:     access,
		RefreshHandle:    refresh,
		IssuedAt:         now,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, digestHandle(refresh), nil
}

// lookup serves reads through the LRU cache, falling back to the
// database.
func (m *Manager) lookup(id SessionID) (*Record, error) {
	if cached, err := m.cache.Get(id); err == nil && cached != nil {
		return cached.rec, nil
	}

	var rec *Record
	err := walletdb.View(m.db, func(tx walletdb.ReadTx) error {
		var err error
		rec, err = fetchSession(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.cache.Put(id, &cachedSession{rec: rec})
	return rec, nil
}

// digestHandle pins a refresh handle into its stored digest form.
func digestHandle(handle string) [32]byte {
	raw, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		// Handles are produced locally; a decode failure here is a
		// programming error.
		panic(err)
	}
	return sha256.Sum256(raw)
}
