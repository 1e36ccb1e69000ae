package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailCipherRoundTrip(t *testing.T) {
	c := NewEmailCipher("default-secret")

	for _, plain := range []string{"hello", "Olá, tudo bem? ✉️", strings.Repeat("x", 16), "<p>body</p>"} {
		enc, err := c.Encrypt(7, plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, enc)
		assert.Equal(t, plain, c.Decrypt(7, enc))
	}
}

func TestEmailCipherEmptyStaysEmpty(t *testing.T) {
	c := NewEmailCipher("s")
	enc, err := c.Encrypt(1, "")
	require.NoError(t, err)
	assert.Equal(t, "", enc)
	assert.Equal(t, "", c.Decrypt(1, ""))
}

func TestEmailCipherRandomIV(t *testing.T) {
	c := NewEmailCipher("s")
	a, _ := c.Encrypt(1, "same")
	b, _ := c.Encrypt(1, "same")
	assert.NotEqual(t, a, b)
}

func TestEmailCipherPassThrough(t *testing.T) {
	c := NewEmailCipher("s")

	tests := []struct {
		name  string
		value string
	}{
		{"short", "abc"},
		{"plain address", "someone@example.com"},
		{"not base64", "this is definitely not ciphertext!!"},
		{"base64 but not ours", "QUFBQUFBQUFBQUFBQUFBQUFBQUFBQUFBQUFBQUFBQUE="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.value, c.Decrypt(1, tt.value))
		})
	}
}

func TestEmailCipherWrongUser(t *testing.T) {
	c := NewEmailCipher("s")
	enc, err := c.Encrypt(1, "private subject")
	require.NoError(t, err)
	assert.NotEqual(t, "private subject", c.Decrypt(2, enc))
}

func TestSecretRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	enc, err := EncryptSecret("hunter2", key)
	require.NoError(t, err)

	dec, err := DecryptSecret(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", dec)

	_, err = DecryptSecret(enc, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = DecryptSecret("zz", key)
	assert.Error(t, err)
}
