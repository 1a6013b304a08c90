// Package jwt issues and validates HS256 bearer tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenDuration is used when Config.TokenDuration is zero.
const DefaultTokenDuration = 7 * 24 * time.Hour

const issuer = "orgstatus"

// ErrEmptySecret is returned when the signing secret is not configured.
var ErrEmptySecret = errors.New("jwt secret is empty")

// Config contains token settings.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// Authenticator signs tokens whose subject is the user id.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewAuthenticator creates a new token authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, ErrEmptySecret
	}
	duration := cfg.TokenDuration
	if duration <= 0 {
		duration = DefaultTokenDuration
	}

	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: duration,
		now:      time.Now,
	}, nil
}

// GenerateToken issues a token for the user.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.duration)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the user id.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}
