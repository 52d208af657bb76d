// Package token issues and verifies the HS256 bearer tokens used on
// learner-facing routes.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	"go.uber.org/zap"
)

const (
	issuer     = "coursepass"
	defaultTTL = 7 * 24 * time.Hour
)

var ErrMissingSecret = errors.New("auth jwt secret is required in production")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewManager signs with AUTH_JWT_SECRET. Outside production an empty secret
// is replaced by a random one, so tokens do not survive a restart.
func NewManager(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Manager, error) {
	if clk == nil {
		clk = clock.New()
	}
	secret := []byte(strings.TrimSpace(cfg.AuthJWTSecret))
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		log.Named("auth.token").Warn("AUTH_JWT_SECRET not set, using an ephemeral signing key")
	}
	return &Manager{secret: secret, ttl: defaultTTL, clock: clk}, nil
}

func (m *Manager) Issue(subject, role string) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *Manager) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		strings.TrimSpace(raw),
		claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}
