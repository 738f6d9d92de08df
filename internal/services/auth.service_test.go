package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-with-at-least-32-bytes!!"

func TestAuthRoundTrip(t *testing.T) {
	auth := NewAuthService(testSecret, time.Hour, nil)

	token, err := auth.GenerateToken(models.Identity{UserID: "42", Role: models.RoleAdmin})
	require.NoError(t, err)

	identity, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", identity.UserID)
	assert.True(t, identity.IsAdmin())
}

func TestAuthDefaultsRoleToUser(t *testing.T) {
	auth := NewAuthService(testSecret, 0, nil)
	assert.Equal(t, DefaultTokenExpiry, auth.TokenExpiry())

	token, err := auth.GenerateToken(models.Identity{UserID: "7"})
	require.NoError(t, err)
	identity, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, identity.Role)

	_, err = auth.GenerateToken(models.Identity{})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestAuthRejectsBadTokens(t *testing.T) {
	auth := NewAuthService(testSecret, time.Hour, nil)
	other := NewAuthService("another-secret-key-with-32-bytes-or-more", time.Hour, nil)

	foreign, err := other.GenerateToken(models.Identity{UserID: "1"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": foreign,
		"whitespace":   "   ",
	} {
		_, err := auth.ValidateToken(token)
		assert.True(t, errors.Is(err, ErrAuthFailure), name)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	auth := NewAuthService(testSecret, time.Minute, nil)
	issued := time.Now().Add(-time.Hour)
	auth.now = fixedClock(issued)
	token, err := auth.GenerateToken(models.Identity{UserID: "1"})
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.Contains(t, err.Error(), "expired")
}

func TestLoadOrCreateSecretPersists(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), secretKeyFile)
	log := logger.NewBufferLogger()

	first := loadOrCreateSecret(keyFile, log)
	require.NotEmpty(t, first)
	assert.GreaterOrEqual(t, len(first), minSecretLength)

	data, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Equal(t, first, string(data))

	assert.Equal(t, first, loadOrCreateSecret(keyFile, log))
}
