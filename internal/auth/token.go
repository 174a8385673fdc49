// Package auth issues and verifies the signed tokens that carry an actor's identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	Issuer   = "inkwell-api"
	Audience = "inkwell-client"
)

// Claims is the token payload: the actor identity plus registered claims.
type Claims struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RevocationStore remembers logged-out token ids.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) bool
}

// RedisRevocations keeps the revocation list in the shared Redis cache.
type RedisRevocations struct{}

func (RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return cache.RevokeToken(ctx, jti, ttl)
}

func (RedisRevocations) IsRevoked(ctx context.Context, jti string) bool {
	return cache.IsTokenRevoked(ctx, jti)
}

// TokenManager signs HS256 tokens and verifies them.
type TokenManager struct {
	secret      []byte
	expiry      time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// NewTokenManager creates a TokenManager. A nil store disables revocation.
func NewTokenManager(secret string, expiry time.Duration, revocations RevocationStore) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		expiry:      expiry,
		revocations: revocations,
		now:         time.Now,
	}
}

// Expiry is the lifetime of issued tokens.
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}

// Issue signs a token for the actor.
func (m *TokenManager) Issue(actor *models.Actor) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	if actor == nil || actor.ID.IsZero() {
		return "", errors.New("cannot issue a token without an actor id")
	}

	now := m.now()
	claims := Claims{
		ID:    actor.ID.Hex(),
		Name:  actor.Name,
		Email: actor.Email,
		Role:  actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.Hex(),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and lifetime and returns the claims.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthenticatedError("Invalid or expired token")
	}
	return claims, nil
}

// Authenticate verifies the token, rejects revoked ones and returns the actor.
func (m *TokenManager) Authenticate(ctx context.Context, tokenString string) (*models.Actor, *Claims, error) {
	if tokenString == "" {
		return nil, nil, models.NewUnauthenticatedError("Authorization required")
	}
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, nil, err
	}
	if m.revocations != nil && m.revocations.IsRevoked(ctx, claims.RegisteredClaims.ID) {
		return nil, nil, models.NewUnauthenticatedError("Token has been revoked")
	}

	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, nil, models.NewUnauthenticatedError("Invalid user ID in token")
	}
	if !claims.Role.Valid() {
		return nil, nil, models.NewUnauthenticatedError("Invalid role in token")
	}

	return &models.Actor{ID: id, Name: claims.Name, Email: claims.Email, Role: claims.Role}, claims, nil
}

// Revoke blacklists the token until it would expire.
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revocations == nil || claims == nil || claims.RegisteredClaims.ID == "" {
		return nil
	}
	ttl := m.expiry
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(m.now())
	}
	return m.revocations.Revoke(ctx, claims.RegisteredClaims.ID, ttl)
}
