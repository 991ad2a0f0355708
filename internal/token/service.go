// Package token issues and validates the bearer tokens handed out after
// sign-in.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// ErrRevoked is returned for a token that was signed out.
var ErrRevoked = errors.New("token revoked")

// Service handles JWT generation, validation and revocation.
type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry
}

// Claims represents the session token claims.
type Claims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the resolved principal carried by the token.
func (c *Claims) Principal() models.Principal {
	return models.Principal{ID: c.UserID, Email: c.Email, Role: c.Role}
}

// New creates a new token service.
func New(signingKey string, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
	}
}

// GenerateSigningKey generates a secure random signing key.
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken creates a token for a resolved principal.
func (s *Service) GenerateToken(p models.Principal, expiresIn time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(expiresIn)
	claims := Claims{
		UserID: p.ID,
		Email:  p.Email,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Issuer != s.issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if s.isRevoked(claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke invalidates a token until it would have expired anyway.
func (s *Service) Revoke(c *Claims) {
	if c == nil || c.ID == "" {
		return
	}
	exp := s.now()
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[c.ID] = exp
	s.pruneLocked()
}

func (s *Service) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}

// pruneLocked drops revocations for tokens that have expired.
func (s *Service) pruneLocked() {
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
}
