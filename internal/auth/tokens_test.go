package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintrack/maintrack/internal/shared"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	raw, expiresAt, err := issuer.Issue(42, "sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "sess-1", claims.ID)
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret", time.Minute)
	require.NoError(t, err)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	raw, _, err := issuer.Issue(1, "sess")
	require.NoError(t, err)

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenIssuerConfig(t *testing.T) {
	_, err := NewTokenIssuer("  ", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer("x", 0)
	assert.Error(t, err)

	issuer, err := NewTokenIssuer("x", time.Hour)
	require.NoError(t, err)
	_, _, err = issuer.Issue(0, "sess")
	assert.Error(t, err)
	_, err = issuer.Parse("")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}
