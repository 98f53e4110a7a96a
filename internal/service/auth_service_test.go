package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trade-assistant/internal/config"
	"github.com/trade-assistant/internal/repository"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()

	db := newTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), config.JWTConfig{
		Secret:      "test-secret",
		ExpireHours: 1,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)

	user, err := svc.Register(&RegisterRequest{
		Username: "trader1",
		Email:    "trader1@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	token, err := svc.Login(&LoginRequest{Username: "trader1", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "trader1", claims.Username)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(&RegisterRequest{
		Username: "trader1",
		Email:    "trader1@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Register(&RegisterRequest{
		Username: "trader1",
		Email:    "other@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(&RegisterRequest{
		Username: "trader1",
		Email:    "trader1@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Login(&LoginRequest{Username: "trader1", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
