package vault

import (
	"encoding/binary"
)

// headerSize covers version, kdf id, and the three KDF parameters.
const headerSize = 1 + 1 + 4 + 4 + 1

// Blob is the parsed form of a sealed vault envelope.
//
// The version 1 wire layout, big-endian:
//
//	1B version | 1B kdf_id | 4B kdf_mem_kib | 4B kdf_iterations |
//	1B kdf_parallelism | 16B salt | 24B nonce | 4B ct_len | ct | 16B tag
//
// The associated data is the header bytes followed by the account
// identifier, so both the KDF parameters and the owning account are
// covered by the authentication tag.
type Blob struct {
	Version    uint8
	KDFID      uint8
	Params     Params
	Salt       [SaltSize]byte
	Nonce      [NonceSize]byte
	Ciphertext []byte
	Tag        [TagSize]byte
}

// Marshal renders the blob in the version 1 wire layout.
func (b *Blob) Marshal() []byte {
	out := make([]byte, 0,
		headerSize+SaltSize+NonceSize+4+len(b.Ciphertext)+TagSize)

	out = append(out, b.header()...)
	out = append(out, b.Salt[:]...)
	out = append(out, b.Nonce[:]...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.Ciphertext)))
	out = append(out, b.Ciphertext...)
	out = append(out, b.Tag[:]...)
	return out
}

// Unmarshal parses a version 1 blob. Anything that does not match the
// layout exactly, including trailing garbage, fails with ErrMalformed.
func Unmarshal(data []byte) (*Blob, error) {
	if len(data) < headerSize+SaltSize+NonceSize+4+TagSize {
		return nil, ErrMalformed
	}

	blob := &Blob{
		Version: data[0],
		KDFID:   data[1],
		Params: Params{
			MemoryKiB:   binary.BigEndian.Uint32(data[2:6]),
			Iterations:  binary.BigEndian.Uint32(data[6:10]),
			Parallelism: data[10],
		},
	}
	if blob.Version != Version || blob.KDFID != KDFArgon2id {
		return nil, ErrMalformed
	}

	rest := data[headerSize:]
	copy(blob.Salt[:], rest[:SaltSize])
	rest = rest[SaltSize:]
	copy(blob.Nonce[:], rest[:NonceSize])
	rest = rest[NonceSize:]

	ctLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) != ctLen+TagSize {
		return nil, ErrMalformed
	}

	blob.Ciphertext = make([]byte, ctLen)
	copy(blob.Ciphertext, rest[:ctLen])
	copy(blob.Tag[:], rest[ctLen:])
	return blob, nil
}

// header returns the authenticated header bytes.
func (b *Blob) header() []byte {
	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, b.Version, b.KDFID)
	hdr = binary.BigEndian.AppendUint32(hdr, b.Params.MemoryKiB)
	hdr = binary.BigEndian.AppendUint32(hdr, b.Params.Iterations)
	hdr = append(hdr, b.Params.Parallelism)
	return hdr
}

func (b *Blob) associatedData(accountID []byte) []byte {
	ad := b.header()
	return append(ad, accountID...)
}
