package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIssueAndParse(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m, err := NewManager(config.Config{AuthJWTSecret: "secret"}, clk, zap.NewNop())
	require.NoError(t, err)

	raw, expiresAt, err := m.Issue("42", "student")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(defaultTTL), expiresAt)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "student", claims.Role)

	clk.Advance(defaultTTL + time.Minute)
	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m, err := NewManager(config.Config{AuthJWTSecret: "secret"}, clk, zap.NewNop())
	require.NoError(t, err)
	other, err := NewManager(config.Config{AuthJWTSecret: "other"}, clk, zap.NewNop())
	require.NoError(t, err)

	raw, _, err := other.Issue("42", "student")
	require.NoError(t, err)
	_, err = m.Parse(raw)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42", Issuer: issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.Error(t, err)
}

func TestNewManagerRequiresSecretInProduction(t *testing.T) {
	_, err := NewManager(config.Config{Environment: "production"}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingSecret)

	m, err := NewManager(config.Config{Environment: "development"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, m.secret, 32)
}
