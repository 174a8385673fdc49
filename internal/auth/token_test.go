package auth

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type memoryRevocations struct {
	revoked map[string]time.Duration
}

func (m *memoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.revoked[jti] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, jti string) bool {
	_, ok := m.revoked[jti]
	return ok
}

func testActor() *models.Actor {
	return &models.Actor{
		ID:    primitive.NewObjectID(),
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Role:  models.RoleAuthor,
	}
}

func TestTokenManager_IssueAndAuthenticate(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, nil)
	actor := testActor()

	token, err := m.Issue(actor)
	require.NoError(t, err)

	got, claims, err := m.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.Equal(t, actor.ID.Hex(), claims.Subject)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
}

func TestTokenManager_AuthenticateRejects(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, nil)
	actor := testActor()

	expired := NewTokenManager(testSecret, -time.Hour, nil)
	expiredToken, err := expired.Issue(actor)
	require.NoError(t, err)

	other := NewTokenManager("another-secret-key-1234567890123456789012", time.Hour, nil)
	foreignToken, err := other.Issue(actor)
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:   actor.ID.Hex(),
		Role: models.RoleAuthor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongIssuerToken, err := wrongIssuer.SignedString([]byte(testSecret))
	require.NoError(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:   actor.ID.Hex(),
		Role: "Owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	badRoleToken, err := badRole.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"Malformed", "malformed.token.here"},
		{"Expired", expiredToken},
		{"Wrong secret", foreignToken},
		{"Wrong issuer", wrongIssuerToken},
		{"Unknown role", badRoleToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := m.Authenticate(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
		})
	}
}

func TestTokenManager_Revoke(t *testing.T) {
	store := &memoryRevocations{revoked: map[string]time.Duration{}}
	m := NewTokenManager(testSecret, time.Hour, store)

	token, err := m.Issue(testActor())
	require.NoError(t, err)

	_, claims, err := m.Authenticate(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), claims))
	ttl := store.revoked[claims.RegisteredClaims.ID]
	assert.Greater(t, ttl, 59*time.Minute)

	_, _, err = m.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
}

func TestTokenManager_IssueRequiresSecretAndActor(t *testing.T) {
	_, err := NewTokenManager("", time.Hour, nil).Issue(testActor())
	assert.Error(t, err)

	_, err = NewTokenManager(testSecret, time.Hour, nil).Issue(&models.Actor{})
	assert.Error(t, err)
}
