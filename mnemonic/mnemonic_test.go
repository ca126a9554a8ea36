package mnemonic

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVectorPhrase = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

// The BIP-39 reference seed for the all-abandon phrase with an empty
// passphrase.
const testVectorSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70" +
	"811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2" +
	"d2ce9e38e4"

func TestGenerate(t *testing.T) {
	tests := []struct {
		strength  int
		wantWords int
		wantErr   error
	}{
		{strength: StrengthStandard, wantWords: 12},
		{strength: StrengthHigh, wantWords: 24},
		{strength: 160, wantErr: ErrBadStrength},
		{strength: 0, wantErr: ErrBadStrength},
	}

	for _, test := range tests {
		phrase, err := Generate(test.strength)
		if test.wantErr != nil {
			assert.ErrorIs(t, err, test.wantErr)
			continue
		}

		require.NoError(t, err)
		assert.Len(t, strings.Fields(phrase), test.wantWords)
		assert.True(t, Validate(phrase))
	}
}

func TestGenerateUnique(t *testing.T) {
	a, err := Generate(StrengthStandard)
	require.NoError(t, err)
	b, err := Generate(StrengthStandard)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestToSeedVector(t *testing.T) {
	seed, err := ToSeed(testVectorPhrase, "")
	require.NoError(t, err)

	assert.Equal(t, testVectorSeedHex, hex.EncodeToString(seed))

	// Deterministic across runs.
	again, err := ToSeed(testVectorPhrase, "")
	require.NoError(t, err)
	assert.Equal(t, seed, again)

	// A passphrase changes the seed.
	other, err := ToSeed(testVectorPhrase, "TREZOR")
	require.NoError(t, err)
	assert.NotEqual(t, seed, other)
}

func TestToSeedRejectsBadPhrase(t *testing.T) {
	// Checksum broken by swapping the final word.
	_, err := ToSeed(strings.Replace(
		testVectorPhrase, "about", "abandon", 1), "")
	assert.ErrorIs(t, err, ErrBadMnemonic)

	// Word outside the list.
	_, err = ToSeed("zzzz "+testVectorPhrase, "")
	assert.ErrorIs(t, err, ErrBadMnemonic)
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(testVectorPhrase))
	assert.True(t, Validate("  "+strings.ToUpper(testVectorPhrase)+" "))
	assert.False(t, Validate(""))
	assert.False(t, Validate("not a mnemonic at all"))
}

func TestCheckWords(t *testing.T) {
	assert.Equal(t, -1, CheckWords(testVectorPhrase))
	assert.Equal(t, 0, CheckWords("zzzz abandon about"))
	assert.Equal(t, 2, CheckWords("abandon abandon zzzz about"))
}
