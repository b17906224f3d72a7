package starknet

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"treasury", "0x7472656173757279"},
		{"aggregator", "0x61676772656761746f72"},
		{"token", "0x746f6b656e"},
		{"SN_MAIN", "0x534e5f4d41494e"},
		{"", "0x0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := EncodeShortString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := DecodeShortString(got)
			require.NoError(t, err)
			assert.Equal(t, tt.input, back)
		})
	}
}

func TestShortStringLimits(t *testing.T) {
	_, err := EncodeShortString("abcdefghijklmnopqrstuvwxyz012345")
	assert.Error(t, err, "32 characters")

	_, err = EncodeShortString("abcdefghijklmnopqrstuvwxyz01234")
	assert.NoError(t, err, "31 characters")

	_, err = EncodeShortString("café")
	assert.Error(t, err)
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "0x83afd3f4caedc6eebf44246fe54e38c95e3179a5ec9ea81740eca5b482d12e", Selector("transfer"))

	v, err := ParseFelt(Selector("set_token_fee_settings"))
	require.NoError(t, err)
	assert.Less(t, v.BitLen(), 251)
}

func TestParseFelt(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0x10", 16, false},
		{"0X10", 16, false},
		{"42", 42, false},
		{" 0x1 ", 1, false},
		{"", 0, true},
		{"0xzz", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFelt(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, big.NewInt(tt.want), got)
	}
}

func TestFeltEqual(t *testing.T) {
	assert.True(t, FeltEqual("0x00ABC", "0xabc"))
	assert.True(t, FeltEqual("0x10", "16"))
	assert.False(t, FeltEqual("0x1", "0x2"))
	assert.False(t, FeltEqual("0x1", "nope"))
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x053c...68a8", ShortAddress("0x053c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8"))
	assert.Equal(t, "0xabc", ShortAddress("0xabc"))
}
