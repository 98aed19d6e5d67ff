package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("jwt: token expired")
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// AccessTokenClaims is the claim set carried by issued access tokens.
type AccessTokenClaims struct {
	AccountID    string `json:"sub"`
	SessionID    string `json:"sid"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tkv"`
	TwoFactor    bool   `json:"amr2fa,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens with an HMAC-SHA256 secret.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenManager constructs a TokenManager. The secret must be non-empty.
func NewTokenManager(secret, issuer, audience string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt: signing secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// TTL returns the configured access token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a signed access token for the given account and session.
func (m *TokenManager) Issue(accountID, sessionID, role string, tokenVersion int, twoFactor bool) (string, error) {
	issuedAt := m.now()

	claims := AccessTokenClaims{
		AccountID:    accountID,
		SessionID:    sessionID,
		Role:         role,
		TokenVersion: tokenVersion,
		TwoFactor:    twoFactor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies a token's signature and expiry and returns its claims.
func (m *TokenManager) Parse(raw string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("jwt: unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
