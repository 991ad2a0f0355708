package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/ewaste/pkg/models"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("test-key", "ewaste")
	p := models.Principal{ID: "u1", Email: "a@example.com", Role: models.RoleCompany}

	tok, exp, err := svc.GenerateToken(p, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := New("test-key", "ewaste")
	p := models.Principal{ID: "u1", Role: models.RoleUser}

	t.Run("wrong key", func(t *testing.T) {
		tok, _, err := New("other-key", "ewaste").GenerateToken(p, time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(tok)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, _, err := New("test-key", "someone-else").GenerateToken(p, time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		tok, _, err := svc.GenerateToken(p, -time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateToken(tok)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestRevoke(t *testing.T) {
	svc := New("test-key", "ewaste")
	tok, _, err := svc.GenerateToken(models.Principal{ID: "u1", Role: models.RoleUser}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)

	svc.Revoke(claims)
	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrRevoked)

	// Other tokens for the same user stay valid.
	other, _, err := svc.GenerateToken(models.Principal{ID: "u1", Role: models.RoleUser}, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.NoError(t, err)
}

func TestRevoke_PrunesExpired(t *testing.T) {
	svc := New("test-key", "ewaste")
	now := time.Now()
	svc.now = func() time.Time { return now }

	tok, _, err := svc.GenerateToken(models.Principal{ID: "u1"}, time.Minute)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	svc.Revoke(claims)
	require.Len(t, svc.revoked, 1)

	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	svc.Revoke(&Claims{})
	svc.Revoke(nil)
	assert.Len(t, svc.revoked, 1, "empty claims are ignored")

	svc.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "later",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})
	assert.Len(t, svc.revoked, 1, "expired revocation pruned")
	assert.Contains(t, svc.revoked, "later")
}

func TestGenerateSigningKey(t *testing.T) {
	k1, err := GenerateSigningKey()
	require.NoError(t, err)
	k2, err := GenerateSigningKey()
	require.NoError(t, err)
	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
}
