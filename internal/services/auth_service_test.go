package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmorozov/droplink/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(store.NewMemoryUsers(), "test-secret")

	user, err := auth.Register(ctx, "owner@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Empty(t, user.Password, "hash must not leak out of Register")

	_, err = auth.Register(ctx, "owner@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailInUse)

	tokenString, err := auth.Login(ctx, "owner@example.com", "password123")
	require.NoError(t, err)

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, user.ID.Hex(), claims["user_id"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(store.NewMemoryUsers(), "test-secret")

	_, err := auth.Register(ctx, "owner@example.com", "password123")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "owner@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
