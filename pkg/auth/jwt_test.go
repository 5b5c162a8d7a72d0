package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVerify_RoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSecret, "idp")
	token, err := v.Sign("user-1", time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.False(t, p.System)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewTokenVerifier(testSecret, "idp")

	expired, err := v.Sign("user-1", -time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewTokenVerifier(testSecret, "someone-else").Sign("user-1", time.Minute)
	require.NoError(t, err)

	wrongKey, err := NewTokenVerifier("ffffffffffffffffffffffffffffffff", "idp").Sign("user-1", time.Minute)
	require.NoError(t, err)

	noSubject, err := v.Sign("", time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"other issuer": otherIssuer,
		"wrong key":    wrongKey,
		"no subject":   noSubject,
		"alg none":     none,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ID: "user-2"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-2", p.ID)

	_, ok = PrincipalFrom(WithPrincipal(context.Background(), Principal{}))
	assert.False(t, ok)

	assert.True(t, System().System)
	assert.True(t, System().Authenticated())
}
