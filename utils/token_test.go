package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("jwt-secret", time.Hour)
	token, err := issuer.GenerateToken(42, "ana@eliano.dev")
	require.NoError(t, err)

	id, err := issuer.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("jwt-secret", time.Hour)
	token, err := issuer.GenerateToken(1, "a@eliano.dev")
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenIssuer("jwt-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
