// Package stealth implements single-use payment addresses on secp256k1.
// A recipient publishes a meta-address holding a scan key and a spend
// key. Senders derive a one-time EVM address from a fresh ephemeral
// key, and the recipient recovers the matching private key offline by
// scanning announced ephemeral keys with the scan key alone.
package stealth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/kestrelwallet/kestrel/internal/zero"
)

const (
	// MetaPrefix starts every encoded meta-address.
	MetaPrefix = "st:eth:"

	// metaHexLen is the hex payload length: two compressed public
	// keys of 33 bytes each.
	metaHexLen = 2 * 2 * 33

	// MetaAddressLen is the full encoded length.
	MetaAddressLen = len(MetaPrefix) + metaHexLen
)

// sharedSecretTag domain-separates the hash of the ECDH x coordinate.
var sharedSecretTag = []byte("Kestrel/StealthSharedSecret")

var (
	// ErrMetaPrefix means the meta-address does not start with
	// MetaPrefix.
	ErrMetaPrefix = errors.New("meta-address has wrong prefix")

	// ErrMetaLength means the meta-address has the right prefix but
	// the wrong overall length.
	ErrMetaLength = errors.New("meta-address has wrong length")

	// ErrMetaFormat means the payload is not lowercase hex or does
	// not decode to two valid curve points.
	ErrMetaFormat = errors.New("meta-address payload is malformed")

	// ErrWeakKey means a derived scalar fell outside the usable
	// range. The caller should retry with a fresh ephemeral key.
	ErrWeakKey = errors.New("derived scalar is unusable")
)

// Keys holds a recipient's scan and spend key pair. The scan key can be
// shared with a semi-trusted watcher, the spend key never leaves the
// wallet.
type Keys struct {
	ScanKey  *btcec.PrivateKey
	SpendKey *btcec.PrivateKey
}

// GenerateKeys creates a fresh scan and spend pair.
func GenerateKeys() (*Keys, error) {
	scanKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	spendKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Keys{ScanKey: scanKey, SpendKey: spendKey}, nil
}

// Zero wipes both private keys.
func (k *Keys) Zero() {
	if k.ScanKey != nil {
		k.ScanKey.Zero()
	}
	if k.SpendKey != nil {
		k.SpendKey.Zero()
	}
}

// MetaAddress is the public half of a stealth key pair.
type MetaAddress struct {
	ScanPub  *btcec.PublicKey
	SpendPub *btcec.PublicKey
}

// Meta returns the public meta-address for the key pair.
func (k *Keys) Meta() *MetaAddress {
	return &MetaAddress{
		ScanPub:  k.ScanKey.PubKey(),
		SpendPub: k.SpendKey.PubKey(),
	}
}

// String encodes the meta-address as MetaPrefix followed by the
// lowercase hex of the compressed scan and spend keys.
func (m *MetaAddress) String() string {
	payload := make([]byte, 0, 66)
	payload = append(payload, m.ScanPub.SerializeCompressed()...)
	payload = append(payload, m.SpendPub.SerializeCompressed()...)
	return MetaPrefix + hex.EncodeToString(payload)
}

// ParseMetaAddress decodes an encoded meta-address, distinguishing
// prefix, length and payload errors so callers can report precisely
// what was wrong.
func ParseMetaAddress(encoded string) (*MetaAddress, error) {
	if !strings.HasPrefix(encoded, MetaPrefix) {
		return nil, ErrMetaPrefix
	}
	if len(encoded) != MetaAddressLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrMetaLength,
			len(encoded), MetaAddressLen)
	}

	payloadHex := encoded[len(MetaPrefix):]
	if payloadHex != strings.ToLower(payloadHex) {
		return nil, fmt.Errorf("%w: payload must be lowercase hex",
			ErrMetaFormat)
	}
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetaFormat, err)
	}

	scanPub, err := btcec.ParsePubKey(payload[:33])
	if err != nil {
		return nil, fmt.Errorf("%w: bad scan key: %v", ErrMetaFormat,
			err)
	}
	spendPub, err := btcec.ParsePubKey(payload[33:])
	if err != nil {
		return nil, fmt.Errorf("%w: bad spend key: %v", ErrMetaFormat,
			err)
	}

	return &MetaAddress{ScanPub: scanPub, SpendPub: spendPub}, nil
}

// Payment is a one-time address produced for a meta-address, together
// with the ephemeral public key the sender must announce.
type Payment struct {
	Address      common.Address
	EphemeralPub *btcec.PublicKey
}

// GenerateStealthAddress derives a fresh one-time address for the
// recipient: with ephemeral key e it computes the shared point e*Scan,
// hashes its x coordinate into a tweak t, and pays to Spend + t*G. Only
// the holder of both the scan and spend keys can link or spend it.
func GenerateStealthAddress(meta *MetaAddress) (*Payment, error) {
	// An unusable tweak is vanishingly rare but recoverable by
	// drawing a new ephemeral key, so retry a few times before
	// giving up.
	for attempt := 0; attempt < 3; attempt++ {
		ephemeralKey, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		tweak, err := sharedTweak(&ephemeralKey.Key, meta.ScanPub)
		ephemeralPub := ephemeralKey.PubKey()
		ephemeralKey.Zero()
		if errors.Is(err, ErrWeakKey) {
			continue
		}
		if err != nil {
			return nil, err
		}

		stealthPub, err := tweakPubKey(meta.SpendPub, tweak)
		tweak.Zero()
		if errors.Is(err, ErrWeakKey) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &Payment{
			Address:      pubKeyAddress(stealthPub),
			EphemeralPub: ephemeralPub,
		}, nil
	}

	return nil, ErrWeakKey
}

// Candidate is the one-time address an ephemeral key would pay if it
// targeted the scanning recipient. The scan derives candidates only;
// matching them against on-chain recipients belongs to the caller.
type Candidate struct {
	EphemeralPub *btcec.PublicKey
	Address      common.Address
}

// ScanForPayments derives the candidate stealth address for each
// announced ephemeral key using the recipient's scan key and spend
// public key. Candidates come back in input order. Ephemeral keys that
// yield an unusable tweak are skipped, never failing the whole batch.
func ScanForPayments(scanKey *btcec.PrivateKey, spendPub *btcec.PublicKey,
	ephemeralPubs []*btcec.PublicKey) ([]Candidate, error) {

	candidates := make([]Candidate, 0, len(ephemeralPubs))
	for _, ephemeralPub := range ephemeralPubs {
		tweak, err := sharedTweak(&scanKey.Key, ephemeralPub)
		if errors.Is(err, ErrWeakKey) {
			continue
		}
		if err != nil {
			return nil, err
		}

		stealthPub, err := tweakPubKey(spendPub, tweak)
		tweak.Zero()
		if errors.Is(err, ErrWeakKey) {
			continue
		}
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, Candidate{
			EphemeralPub: ephemeralPub,
			Address:      pubKeyAddress(stealthPub),
		})
	}

	return candidates, nil
}

// DeriveStealthPrivateKey recovers the private key for a one-time
// address: spend + t mod n, where t is the tweak derived from the
// announced ephemeral key and the scan key.
func DeriveStealthPrivateKey(scanKey, spendKey *btcec.PrivateKey,
	ephemeralPub *btcec.PublicKey) (*btcec.PrivateKey, error) {

	tweak, err := sharedTweak(&scanKey.Key, ephemeralPub)
	if err != nil {
		return nil, err
	}
	defer tweak.Zero()

	var scalar secp256k1.ModNScalar
	scalar.Set(&spendKey.Key)
	scalar.Add(tweak)
	if scalar.IsZero() {
		return nil, ErrWeakKey
	}

	privKey := secp256k1.NewPrivateKey(&scalar)
	scalar.Zero()
	return privKey, nil
}

// sharedTweak computes the scalar tweak t from the ECDH point
// scalar*point: the tagged hash of the affine x coordinate, reduced
// mod n. Returns ErrWeakKey when the result is zero or overflows.
func sharedTweak(scalar *secp256k1.ModNScalar,
	point *btcec.PublicKey) (*secp256k1.ModNScalar, error) {

	var pt, shared secp256k1.JacobianPoint
	point.AsJacobian(&pt)
	secp256k1.ScalarMultNonConst(scalar, &pt, &shared)
	if shared.Z.IsZero() {
		return nil, ErrWeakKey
	}
	shared.ToAffine()

	sharedX := shared.X.Bytes()
	digest := chainhash.TaggedHash(sharedSecretTag, sharedX[:])
	zero.Bytea32((*[32]byte)(sharedX))

	var tweak secp256k1.ModNScalar
	overflow := tweak.SetBytes((*[32]byte)(digest))
	zero.Bytea32((*[32]byte)(digest))
	if overflow != 0 || tweak.IsZero() {
		return nil, ErrWeakKey
	}

	return &tweak, nil
}

// tweakPubKey returns pub + tweak*G, rejecting the point at infinity.
func tweakPubKey(pubKey *btcec.PublicKey,
	tweak *secp256k1.ModNScalar) (*btcec.PublicKey, error) {

	var tweakPoint, base, sum secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(tweak, &tweakPoint)
	pubKey.AsJacobian(&base)
	secp256k1.AddNonConst(&base, &tweakPoint, &sum)
	if sum.Z.IsZero() {
		return nil, ErrWeakKey
	}
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y), nil
}

// pubKeyAddress maps a secp256k1 public key to its EVM address.
func pubKeyAddress(pubKey *btcec.PublicKey) common.Address {
	return ethcrypto.PubkeyToAddress(*pubKey.ToECDSA())
}
