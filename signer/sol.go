package signer

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
)

// SolInstruction references accounts and a program by their position in
// the message account table.
type SolInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// SolMessage is a legacy Solana transaction message. AccountKeys lists
// signers first, then writable accounts, then readonly accounts, per
// the wire ordering rules.
type SolMessage struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8

	AccountKeys     [][32]byte
	RecentBlockhash [32]byte
	Instructions    []SolInstruction
}

// SignedSolMsg pairs the serialized message with the detached ed25519
// signature over it.
type SignedSolMsg struct {
	Message   []byte
	Signature [ed25519.SignatureSize]byte
}

func (m *SolMessage) validate() error {
	n := len(m.AccountKeys)
	if n == 0 {
		return fmt.Errorf("%w: message has no accounts", ErrBadTx)
	}
	if m.NumRequiredSignatures == 0 ||
		int(m.NumRequiredSignatures) > n {

		return fmt.Errorf("%w: signature count out of range", ErrBadTx)
	}
	if m.RecentBlockhash == [32]byte{} {
		return fmt.Errorf("%w: missing recent blockhash", ErrBadTx)
	}
	for i, ins := range m.Instructions {
		if int(ins.ProgramIDIndex) >= n {
			return fmt.Errorf("%w: instruction %d program index "+
				"out of range", ErrBadTx, i)
		}
		for _, idx := range ins.AccountIndexes {
			if int(idx) >= n {
				return fmt.Errorf("%w: instruction %d account "+
					"index out of range", ErrBadTx, i)
			}
		}
	}

	return nil
}

// Serialize encodes the message in the legacy Solana wire format:
// a three byte header, then length-prefixed account keys, the recent
// blockhash and the instruction list. Lengths use the compact-u16
// shortvec encoding.
func (m *SolMessage) Serialize() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySignedAccounts)
	buf.WriteByte(m.NumReadonlyUnsignedAccounts)

	writeCompactU16(&buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}
	buf.Write(m.RecentBlockhash[:])

	writeCompactU16(&buf, len(m.Instructions))
	for _, ins := range m.Instructions {
		buf.WriteByte(ins.ProgramIDIndex)
		writeCompactU16(&buf, len(ins.AccountIndexes))
		buf.Write(ins.AccountIndexes)
		writeCompactU16(&buf, len(ins.Data))
		buf.Write(ins.Data)
	}

	return buf.Bytes(), nil
}

// SignSolMsg serializes the message and signs it with the given ed25519
// key. The key's public half must appear among the message's required
// signers.
func SignSolMsg(msg *SolMessage, privKey ed25519.PrivateKey) (*SignedSolMsg, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: bad ed25519 key size", ErrBadTx)
	}

	serialized, err := msg.Serialize()
	if err != nil {
		return nil, err
	}

	pubKey := privKey.Public().(ed25519.PublicKey)
	found := false
	for i := 0; i < int(msg.NumRequiredSignatures); i++ {
		if bytes.Equal(msg.AccountKeys[i][:], pubKey) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: key is not a required signer",
			ErrBadTx)
	}

	signed := &SignedSolMsg{Message: serialized}
	copy(signed.Signature[:], ed25519.Sign(privKey, serialized))

	return signed, nil
}

// writeCompactU16 appends n in the shortvec encoding: 7 bits per byte,
// high bit set on all but the last byte.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		if v < 0x80 {
			buf.WriteByte(byte(v))
			return
		}
		buf.WriteByte(byte(v&0x7f) | 0x80)
		v >>= 7
	}
}
