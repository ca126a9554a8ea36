package session

import (
	"encoding/base64"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelwallet/kestrel/walletdb"
	_ "github.com/kestrelwallet/kestrel/walletdb/bdb"
)

func testManager(t *testing.T) (*Manager, *clock.TestClock) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	db, err := walletdb.Create("bdb", dbPath, true, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	clk := clock.NewTestClock(time.Unix(1700000000, 0).UTC())

	var cfg Config
	copy(cfg.SigningKey[:], []byte("0123456789abcdef0123456789abcdef"))

	mgr, err := NewManager(db, clk, cfg)
	require.NoError(t, err)
	return mgr, clk
}

func TestCreateAndValidate(t *testing.T) {
	mgr, _ := testManager(t)

	sess, err := mgr.Create("alice", "cli@host")
	require.NoError(t, err)
	assert.NotEqual(t, sess.AccessHandle, sess.RefreshHandle)
	assert.True(t, sess.AccessExpiresAt.Before(sess.RefreshExpiresAt))

	id, err := mgr.ValidateAccess(sess.AccessHandle)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, sess.ID, id.SessionID)

	// The refresh handle is not an access handle.
	_, err = mgr.ValidateAccess(sess.RefreshHandle)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsTampering(t *testing.T) {
	mgr, _ := testManager(t)

	sess, err := mgr.Create("alice", "")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sess.AccessHandle)
	require.NoError(t, err)

	// Flipping any byte of the handle must break it.
	for _, pos := range []int{0, 1, 5, len(raw) - 40, len(raw) - 1} {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[pos] ^= 0x01

		_, err := mgr.ValidateAccess(
			base64.RawURLEncoding.EncodeToString(mutated))
		assert.Error(t, err, "byte %d", pos)
	}

	_, err = mgr.ValidateAccess("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessExpiry(t *testing.T) {
	mgr, clk := testManager(t)

	sess, err := mgr.Create("alice", "")
	require.NoError(t, err)

	clk.SetTime(sess.AccessExpiresAt.Add(time.Second))
	_, err = mgr.ValidateAccess(sess.AccessHandle)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshRotation(t *testing.T) {
	mgr, clk := testManager(t)

	sess, err := mgr.Create("alice", "")
	require.NoError(t, err)

	clk.SetTime(clk.Now().Add(time.Minute))
	next, err := mgr.Refresh(sess.RefreshHandle)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, next.ID)
	assert.NotEqual(t, sess.RefreshHandle, next.RefreshHandle)

	// The old access handle keeps working until its own expiry.
	_, err = mgr.ValidateAccess(sess.AccessHandle)
	assert.NoError(t, err)

	// The consumed refresh handle is dead.
	_, err = mgr.Refresh(sess.RefreshHandle)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The new pair works.
	_, err = mgr.ValidateAccess(next.AccessHandle)
	assert.NoError(t, err)
	_, err = mgr.Refresh(next.RefreshHandle)
	assert.NoError(t, err)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	mgr, _ := testManager(t)

	sess, err := mgr.Create("alice", "")
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Refresh(sess.RefreshHandle); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestRevoke(t *testing.T) {
	mgr, _ := testManager(t)

	sess, err := mgr.Create("alice", "")
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(sess.ID))

	_, err = mgr.ValidateAccess(sess.AccessHandle)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = mgr.Refresh(sess.RefreshHandle)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	assert.ErrorIs(t, mgr.Revoke(SessionID{0xff}), ErrUnknownSession)
}

func TestCleanupExpired(t *testing.T) {
	mgr, clk := testManager(t)

	old, err := mgr.Create("alice", "")
	require.NoError(t, err)

	clk.SetTime(old.RefreshExpiresAt.Add(-time.Hour))
	fresh, err := mgr.Create("bob", "")
	require.NoError(t, err)

	clk.SetTime(old.RefreshExpiresAt.Add(time.Second))

	removed, err := mgr.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Idempotent.
	removed, err = mgr.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// The fresh session survived; only validate its refresh path since
	// its access handle may have aged out.
	_, err = mgr.Refresh(fresh.RefreshHandle)
	assert.NoError(t, err)
}

func TestHandleRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	in := &claims{
		Kind:      KindRefresh,
		SessionID: SessionID{1, 2, 3},
		UserID:    "alice",
		IssuedAt:  time.Unix(1700000000, 0).UTC(),
		ExpiresAt: time.Unix(1700600000, 0).UTC(),
	}

	handle, err := signHandle(key, in)
	require.NoError(t, err)

	out, err := parseHandle(key, handle)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// A different key rejects the handle.
	_, err = parseHandle([]byte("ffffffffffffffffffffffffffffffff"),
		handle)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
