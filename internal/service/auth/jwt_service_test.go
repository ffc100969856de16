package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService("short")
	assert.ErrorIs(t, err, ErrShortSecret)

	svc, err := NewJWTService(testSecret)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := newJWTService(testSecret, fixedClock(issued))
	require.NoError(t, err)

	token, err := svc.GenerateToken(context.Background(), "character-service", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "character-service", claims.Subject)
	assert.Equal(t, issued.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, issued.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateTokenRejectsBadInput(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(testSecret)
	require.NoError(t, err)

	_, err = svc.GenerateToken(context.Background(), "  ", time.Hour)
	assert.Error(t, err)

	_, err = svc.GenerateToken(context.Background(), "client", 0)
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := newJWTService(testSecret, fixedClock(issued))
	require.NoError(t, err)

	token, err := issuer.GenerateToken(context.Background(), "client", time.Hour)
	require.NoError(t, err)

	foreign, err := newJWTService("wrong-secret-that-is-long-enough-for-testing", fixedClock(issued))
	require.NoError(t, err)
	foreignToken, err := foreign.GenerateToken(context.Background(), "client", time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "client",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "client",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		now     time.Time
		token   string
		wantErr error
	}{
		{name: "valid", now: issued.Add(30 * time.Minute), token: token},
		{name: "within clock skew", now: issued.Add(time.Hour + time.Minute), token: token},
		{name: "expired", now: issued.Add(2 * time.Hour), token: token, wantErr: ErrExpiredToken},
		{name: "not yet valid", now: issued.Add(-10 * time.Minute), token: token, wantErr: ErrTokenNotYetValid},
		{name: "wrong secret", now: issued, token: foreignToken, wantErr: ErrInvalidToken},
		{name: "unsigned", now: issued, token: noneToken, wantErr: ErrInvalidToken},
		{name: "wrong issuer", now: issued, token: otherIssuer, wantErr: ErrInvalidToken},
		{name: "malformed", now: issued, token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "empty", now: issued, token: "", wantErr: ErrMissingToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, err := newJWTService(testSecret, fixedClock(tc.now))
			require.NoError(t, err)

			claims, err := svc.ValidateToken(context.Background(), tc.token)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "client", claims.Subject)
		})
	}
}
