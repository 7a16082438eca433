package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gearbroker.net/internal/config"
)

func TestJWTService(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})
	other := NewJWTService(&config.JwtConfig{Secret: "other"})

	token, err := svc.GenerateTokenHMAC(ctx, "ops", time.Hour)
	require.NoError(t, err)

	ok, err := svc.VerifyTokenHMAC(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = other.VerifyTokenHMAC(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyTokenHMAC(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expiry(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateTokenHMAC(ctx, "ops", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyTokenHMAC(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_NoSecret(t *testing.T) {
	svc := NewJWTService(&config.JwtConfig{})

	_, err := svc.GenerateTokenHMAC(context.Background(), "ops", 0)
	assert.ErrorIs(t, err, ErrNoSecret)
}
