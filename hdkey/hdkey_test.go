package hdkey

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First seed of the BIP-32 reference test vectors.
const bip32Vector1Seed = "000102030405060708090a0b0c0d0e0f"

func TestMasterFromSeedVector(t *testing.T) {
	seed, err := hex.DecodeString(bip32Vector1Seed)
	require.NoError(t, err)

	master, err := MasterFromSeed(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	assert.Equal(t,
		"xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqji"+
			"ChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi",
		master.String())

	pub, err := master.Neuter()
	require.NoError(t, err)
	assert.Equal(t,
		"xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2"+
			"gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8",
		pub.String())
}

func TestMasterFromSeedRejectsShortSeed(t *testing.T) {
	_, err := MasterFromSeed(make([]byte, 8), nil)
	assert.ErrorIs(t, err, ErrBadSeed)
}

func TestDerivePathDeterministic(t *testing.T) {
	seed, err := hex.DecodeString(bip32Vector1Seed)
	require.NoError(t, err)

	path, err := ParsePath("m/44'/60'/0'/0/0")
	require.NoError(t, err)

	master, err := MasterFromSeed(seed, nil)
	require.NoError(t, err)
	first, err := DerivePath(master, path)
	require.NoError(t, err)

	master2, err := MasterFromSeed(seed, nil)
	require.NoError(t, err)
	second, err := DerivePath(master2, path)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
}

func TestHardenedFromPublicRefused(t *testing.T) {
	seed, err := hex.DecodeString(bip32Vector1Seed)
	require.NoError(t, err)

	master, err := MasterFromSeed(seed, nil)
	require.NoError(t, err)
	pub, err := Neuter(master)
	require.NoError(t, err)

	_, err = DeriveChild(pub, 0, true)
	assert.ErrorIs(t, err, ErrDerivationRefused)

	// Non-hardened children derive the same public keys either way.
	privChild, err := DeriveChild(master, 7, false)
	require.NoError(t, err)
	privChildPub, err := privChild.Neuter()
	require.NoError(t, err)

	pubChild, err := DeriveChild(pub, 7, false)
	require.NoError(t, err)

	assert.Equal(t, privChildPub.String(), pubChild.String())
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "m/44'/0'/0'/0/0", want: "m/44'/0'/0'/0/0"},
		{in: "m/49h/1h/0h/1/3", want: "m/49'/1'/0'/1/3"},
		{in: "m", want: "m"},
		{in: "", wantErr: true},
		{in: "44'/0'", wantErr: true},
		{in: "m//0", wantErr: true},
		{in: "m/abc", wantErr: true},
		{in: "m/2147483648", wantErr: true},
		{in: "m/1/2/3/4/5/6/7/8/9", wantErr: true},
	}

	for _, test := range tests {
		path, err := ParsePath(test.in)
		if test.wantErr {
			assert.ErrorIs(t, err, ErrBadPath, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, path.String())
	}
}

func TestBIP44Helper(t *testing.T) {
	path := BIP44(PurposeBIP44, CoinTypeEthereum, 0, 0, 5)
	assert.Equal(t, "m/44'/60'/0'/0/5", path.String())
}
