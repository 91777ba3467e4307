package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleMember.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestSetPasswordRoundTrip(t *testing.T) {
	u := &User{Email: "analyst@example.com"}

	require.Error(t, u.SetPassword("short"))
	require.NoError(t, u.SetPassword("correct-horse-battery"))

	assert.NotEqual(t, "correct-horse-battery", u.PasswordHash)
	assert.True(t, u.CheckPassword("correct-horse-battery"))
	assert.False(t, u.CheckPassword("wrong-password"))
}

func TestMintToken(t *testing.T) {
	userID := uuid.New()

	plain, token, err := MintToken(userID, "ci export", time.Hour)
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, "ci export", token.Label)
	assert.Equal(t, TokenDigest(plain), token.Digest)
	assert.NotEqual(t, plain, token.Digest)
	assert.False(t, token.Expired())

	expired := &APIToken{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, expired.Expired())
}

func TestMintTokenIsUnique(t *testing.T) {
	a, _, err := MintToken(uuid.New(), "first", time.Hour)
	require.NoError(t, err)
	b, _, err := MintToken(uuid.New(), "second", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, TokenDigest(a), TokenDigest(b))
}
