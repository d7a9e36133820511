package token_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/token"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWTConfig.ApiSecret = "test-secret-do-not-use-in-production"
	cfg.JWTConfig.UserExpireHours = 24
	cfg.JWTConfig.GuestExpireHours = 2
	return cfg
}

func TestIssueAndVerifyUserToken(t *testing.T) {
	cfg := testConfig()
	subject := uuid.New()

	signed, err := token.Issue(subject, token.RoleUser, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := token.Verify(signed, cfg.JWTConfig.ApiSecret)
	require.NoError(t, err)

	got, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, subject, got)
	assert.Equal(t, token.RoleUser, claims.Role)

	// A user token should be good for roughly a day.
	remaining := time.Until(claims.ExpiresAt.Time)
	assert.Greater(t, remaining, 23*time.Hour)
	assert.LessOrEqual(t, remaining, 24*time.Hour)
}

func TestGuestTokensExpireSooner(t *testing.T) {
	cfg := testConfig()

	signed, err := token.Issue(uuid.New(), token.RoleGuest, cfg)
	require.NoError(t, err)

	claims, err := token.Verify(signed, cfg.JWTConfig.ApiSecret)
	require.NoError(t, err)
	assert.Equal(t, token.RoleGuest, claims.Role)

	remaining := time.Until(claims.ExpiresAt.Time)
	assert.Greater(t, remaining, 1*time.Hour)
	assert.LessOrEqual(t, remaining, 2*time.Hour)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	cfg := testConfig()

	signed, err := token.Issue(uuid.New(), token.RoleUser, cfg)
	require.NoError(t, err)

	_, err = token.Verify(signed, "a-completely-different-secret")
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	cfg := testConfig()

	_, err := token.Verify("not.a.jwt", cfg.JWTConfig.ApiSecret)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = token.Verify("", cfg.JWTConfig.ApiSecret)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	// Issue a token that was already dead on arrival.
	cfg.JWTConfig.GuestExpireHours = -1

	signed, err := token.Issue(uuid.New(), token.RoleGuest, cfg)
	require.NoError(t, err)

	_, err = token.Verify(signed, cfg.JWTConfig.ApiSecret)
	assert.ErrorIs(t, err, token.ErrExpiredToken)
}
