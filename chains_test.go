package goSession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
		ok      bool
	}{
		{"lowercase", "0xabc0000000000000000000000000000000000001", true},
		{"checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"surrounding space", "  0xabc0000000000000000000000000000000000001 ", true},
		{"missing prefix", "abc0000000000000000000000000000000000001", false},
		{"too short", "0xabc", false},
		{"non hex", "0xzzz0000000000000000000000000000000000001", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.address)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestNormalizeAddressLowercases(t *testing.T) {
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		normalizeAddress(" 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed "))
}

func TestChainSetValidate(t *testing.T) {
	set := newChainSet(nil)
	for _, id := range DefaultSupportedChains {
		require.NoError(t, set.validate(id), "default chain %d", id)
	}
	err := set.validate(56)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
	assert.ErrorIs(t, err, ErrValidation)

	custom := newChainSet([]int64{56, 1, 56})
	assert.NoError(t, custom.validate(56))
	assert.Error(t, custom.validate(8453), "chains outside a custom list must be rejected")
}
