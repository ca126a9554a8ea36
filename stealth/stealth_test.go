package stealth

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// TestMetaAddressRoundTrip encodes a meta-address and parses it back.
func TestMetaAddressRoundTrip(t *testing.T) {
	t.Parallel()

	keys, err := GenerateKeys()
	require.NoError(t, err)

	encoded := keys.Meta().String()
	require.Len(t, encoded, MetaAddressLen)
	require.True(t, strings.HasPrefix(encoded, MetaPrefix))

	parsed, err := ParseMetaAddress(encoded)
	require.NoError(t, err)
	require.Equal(t,
		keys.ScanKey.PubKey().SerializeCompressed(),
		parsed.ScanPub.SerializeCompressed())
	require.Equal(t,
		keys.SpendKey.PubKey().SerializeCompressed(),
		parsed.SpendPub.SerializeCompressed())
}

// TestParseMetaAddressErrors distinguishes prefix, length and payload
// failures.
func TestParseMetaAddressErrors(t *testing.T) {
	t.Parallel()

	keys, err := GenerateKeys()
	require.NoError(t, err)
	encoded := keys.Meta().String()
	payload := encoded[len(MetaPrefix):]

	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{
			name:    "empty",
			encoded: "",
			want:    ErrMetaPrefix,
		},
		{
			name:    "wrong scheme",
			encoded: "st:btc:" + payload,
			want:    ErrMetaPrefix,
		},
		{
			name:    "truncated",
			encoded: encoded[:MetaAddressLen-2],
			want:    ErrMetaLength,
		},
		{
			name:    "trailing bytes",
			encoded: encoded + "00",
			want:    ErrMetaLength,
		},
		{
			name:    "uppercase hex",
			encoded: MetaPrefix + strings.ToUpper(payload),
			want:    ErrMetaFormat,
		},
		{
			name: "not hex",
			encoded: MetaPrefix + "zz" + payload[2:],
			want: ErrMetaFormat,
		},
		{
			name: "not a curve point",
			encoded: MetaPrefix + strings.Repeat("00", 66),
			want: ErrMetaFormat,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseMetaAddress(test.encoded)
			require.ErrorIs(t, err, test.want)
		})
	}
}

// TestStealthPaymentFlow walks the full lifecycle: the sender derives a
// one-time address from the published meta-address, the recipient spots
// it among decoy ephemeral keys and recovers a spending key for it.
func TestStealthPaymentFlow(t *testing.T) {
	t.Parallel()

	keys, err := GenerateKeys()
	require.NoError(t, err)

	meta, err := ParseMetaAddress(keys.Meta().String())
	require.NoError(t, err)

	payment, err := GenerateStealthAddress(meta)
	require.NoError(t, err)
	require.NotNil(t, payment.EphemeralPub)

	// Bury the real ephemeral key among decoys from unrelated
	// senders. The scan derives a candidate per entry, in order;
	// only the middle one lands on the payment address.
	ephemerals := []*btcec.PublicKey{
		decoyEphemeral(t), payment.EphemeralPub, decoyEphemeral(t),
	}
	candidates, err := ScanForPayments(
		keys.ScanKey, keys.SpendKey.PubKey(), ephemerals,
	)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	require.NotEqual(t, payment.Address, candidates[0].Address)
	require.Equal(t, payment.Address, candidates[1].Address)
	require.NotEqual(t, payment.Address, candidates[2].Address)

	privKey, err := DeriveStealthPrivateKey(
		keys.ScanKey, keys.SpendKey, payment.EphemeralPub,
	)
	require.NoError(t, err)
	require.Equal(t, payment.Address,
		ethcrypto.PubkeyToAddress(*privKey.PubKey().ToECDSA()))
}

// TestScanMissesOtherRecipients checks a payment to one meta-address
// derives a different candidate under another recipient's keys.
func TestScanMissesOtherRecipients(t *testing.T) {
	t.Parallel()

	recipient, err := GenerateKeys()
	require.NoError(t, err)
	other, err := GenerateKeys()
	require.NoError(t, err)

	payment, err := GenerateStealthAddress(recipient.Meta())
	require.NoError(t, err)

	candidates, err := ScanForPayments(
		other.ScanKey, other.SpendKey.PubKey(),
		[]*btcec.PublicKey{payment.EphemeralPub},
	)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.NotEqual(t, payment.Address, candidates[0].Address)
}

// TestPaymentsAreUnlinkable derives two payments to the same recipient
// and checks they land on distinct addresses.
func TestPaymentsAreUnlinkable(t *testing.T) {
	t.Parallel()

	keys, err := GenerateKeys()
	require.NoError(t, err)
	meta := keys.Meta()

	first, err := GenerateStealthAddress(meta)
	require.NoError(t, err)
	second, err := GenerateStealthAddress(meta)
	require.NoError(t, err)

	require.NotEqual(t, first.Address, second.Address)
	require.NotEqual(t,
		first.EphemeralPub.SerializeCompressed(),
		second.EphemeralPub.SerializeCompressed())
}

func decoyEphemeral(t *testing.T) *btcec.PublicKey {
	t.Helper()

	ephemeralKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return ephemeralKey.PubKey()
}
