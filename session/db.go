package session

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/kestrelwallet/kestrel/walletdb"
)

var sessionBucketName = []byte("sessions")

const dbRecordVersion = 1

// Record is the persisted state of one session. The refresh digest pins
// the single currently-spendable refresh handle; rotation replaces it
// atomically, which is what makes a consumed refresh handle dead.
type Record struct {
	ID               SessionID
	UserID           string
	Fingerprint      string
	Version          uint32
	Revoked          bool
	CreatedAt        time.Time
	LastUsedAt       time.Time
	RefreshExpiresAt time.Time
	RefreshDigest    [32]byte
}

func serializeSession(rec *Record) []byte {
	out := make([]byte, 0, 64+len(rec.UserID)+len(rec.Fingerprint))
	out = append(out, dbRecordVersion)
	if rec.Revoked {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint32(out, rec.Version)
	out = binary.BigEndian.AppendUint64(out, uint64(rec.CreatedAt.Unix()))
	out = binary.BigEndian.AppendUint64(out,
		uint64(rec.LastUsedAt.Unix()))
	out = binary.BigEndian.AppendUint64(out,
		uint64(rec.RefreshExpiresAt.Unix()))
	out = append(out, rec.RefreshDigest[:]...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rec.UserID)))
	out = append(out, rec.UserID...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rec.Fingerprint)))
	out = append(out, rec.Fingerprint...)
	return out
}

func deserializeSession(id SessionID, raw []byte) (*Record, error) {
	const fixed = 1 + 1 + 4 + 3*8 + 32 + 2 + 2
	if len(raw) < fixed || raw[0] != dbRecordVersion {
		return nil, errors.New("malformed session record")
	}

	rec := &Record{
		ID:      id,
		Revoked: raw[1] == 1,
		Version: binary.BigEndian.Uint32(raw[2:6]),
	}
	rest := raw[6:]
	rec.CreatedAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[:8])), 0).UTC()
	rec.LastUsedAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[8:16])), 0).UTC()
	rec.RefreshExpiresAt = time.Unix(
		int64(binary.BigEndian.Uint64(rest[16:24])), 0).UTC()
	rest = rest[24:]
	copy(rec.RefreshDigest[:], rest[:32])
	rest = rest[32:]

	uidLen := int(binary.BigEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < uidLen+2 {
		return nil, errors.New("malformed session record")
	}
	rec.UserID = string(rest[:uidLen])
	rest = rest[uidLen:]

	fpLen := int(binary.BigEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) != fpLen {
		return nil, errors.New("malformed session record")
	}
	rec.Fingerprint = string(rest)
	return rec, nil
}

func putSession(tx walletdb.ReadWriteTx, rec *Record) error {
	return tx.ReadWriteBucket(sessionBucketName).Put(
		rec.ID[:], serializeSession(rec))
}

func fetchSession(tx walletdb.ReadTx, id SessionID) (*Record, error) {
	raw := tx.ReadBucket(sessionBucketName).Get(id[:])
	if raw == nil {
		return nil, ErrUnknownSession
	}
	return deserializeSession(id, raw)
}
