package cred

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/kestrelwallet/kestrel/walletdb"
)

var (
	// ErrUserExists is returned when registering a user id that already
	// has a credential record.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when no record exists for the user.
	ErrUserNotFound = errors.New("user not found")
)

var credBucketName = []byte("credentials")

const recordVersion = 1

// recordSize is the fixed serialized size of a credential record:
// version, algorithm, three params, salt, hash, disabled flag, and two
// unix timestamps.
const recordSize = 1 + 1 + 3*4 + SaltSize + HashSize + 1 + 2*8

// Store persists credential records in a walletdb bucket. Writes to a
// given user are serialized; reads may run concurrently.
type Store struct {
	mtx    sync.Mutex
	db     walletdb.DB
	params Params
}

// NewStore binds a credential store to a database. The argon2id cost
// parameters are applied to every new and rehashed record.
func NewStore(db walletdb.DB, params Params) (*Store, error) {
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(credBucketName)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db, params: params}, nil
}

// Register creates and persists a credential record for a new user.
func (s *Store) Register(userID string, password []byte,
	now time.Time) (*Record, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, err := NewRecord(userID, password, s.params, now)
	if err != nil {
		return nil, err
	}

	err = walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bkt := tx.ReadWriteBucket(credBucketName)
		if bkt.Get([]byte(userID)) != nil {
			return ErrUserExists
		}
		return bkt.Put([]byte(userID), serializeRecord(rec))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup fetches the record for a user.
func (s *Store) Lookup(userID string) (*Record, error) {
	var rec *Record
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		raw := tx.ReadBucket(credBucketName).Get([]byte(userID))
		if raw == nil {
			return ErrUserNotFound
		}

		var err error
		rec, err = deserializeRecord(userID, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Verify checks the password for the user. On success it reports whether
// the stored record still uses a legacy algorithm and should be rehashed;
// the login itself succeeds either way.
func (s *Store) Verify(userID string, password []byte) (
	rehashNeeded bool, err error) {

	rec, err := s.Lookup(userID)
	if err != nil {
		return false, err
	}
	return rec.Verify(password)
}

// Rehash re-verifies the password and replaces the stored record with one
// hashed under the current default algorithm.
func (s *Store) Rehash(userID string, password []byte,
	now time.Time) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, err := s.Lookup(userID)
	if err != nil {
		return err
	}

	next, err := rec.Rehash(password, s.params, now)
	if err != nil {
		return err
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(credBucketName).Put(
			[]byte(userID), serializeRecord(next))
	})
}

// SetDisabled flips the account's disabled flag. Disabled accounts fail
// session validation without revealing why.
func (s *Store) SetDisabled(userID string, disabled bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, err := s.Lookup(userID)
	if err != nil {
		return err
	}
	rec.Disabled = disabled

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(credBucketName).Put(
			[]byte(userID), serializeRecord(rec))
	})
}

// putLegacy stores a record verbatim, bypassing the current-algorithm
// policy. It exists so migrations and tests can seed legacy records.
func (s *Store) putLegacy(rec *Record) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(credBucketName).Put(
			[]byte(rec.UserID), serializeRecord(rec))
	})
}

func serializeRecord(rec *Record) []byte {
	out := make([]byte, 0, recordSize)
	out = append(out, recordVersion, rec.Algorithm)
	out = binary.BigEndian.AppendUint32(out, rec.Params.P1)
	out = binary.BigEndian.AppendUint32(out, rec.Params.P2)
	out = binary.BigEndian.AppendUint32(out, rec.Params.P3)
	out = append(out, rec.Salt[:]...)
	out = append(out, rec.Hash[:]...)
	if rec.Disabled {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint64(out, uint64(rec.CreatedAt.Unix()))
	out = binary.BigEndian.AppendUint64(out,
		uint64(rec.LastRehashedAt.Unix()))
	return out
}

func deserializeRecord(userID string, raw []byte) (*Record, error) {
	if len(raw) != recordSize || raw[0] != recordVersion {
		return nil, errors.New("malformed credential record")
	}

	rec := &Record{
		UserID:    userID,
		Algorithm: raw[1],
		Params: Params{
			P1: binary.BigEndian.Uint32(raw[2:6]),
			P2: binary.BigEndian.Uint32(raw[6:10]),
			P3: binary.BigEndian.Uint32(raw[10:14]),
		},
	}
	rest := raw[14:]
	copy(rec.Salt[:], rest[:SaltSize])
	rest = rest[SaltSize:]
	copy(rec.Hash[:], rest[:HashSize])
	rest = rest[HashSize:]
	rec.Disabled = rest[0] == 1
	rec.CreatedAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[1:9])), 0).UTC()
	rec.LastRehashedAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[9:17])), 0).UTC()
	return rec, nil
}
