package crypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/gearbroker.net/internal/config"
	"gitlab.com/gearbroker.net/internal/core/ports/primary"
)

var _ primary.TokenService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret not configured")
)

const issuer = "gearbroker"

type JWTServiceImpl struct {
	HMACSecretKey string
	now           func() time.Time
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		now:           time.Now,
	}
}

// GenerateTokenHMAC signs an HS256 token for subject. A zero ttl means no expiry.
func (J *JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	if J.HMACSecretKey == "" {
		return "", ErrNoSecret
	}

	now := J.now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(J.HMACSecretKey))
}

func (J *JWTServiceImpl) VerifyTokenHMAC(ctx context.Context, token string) (bool, error) {
	if J.HMACSecretKey == "" {
		return false, ErrNoSecret
	}

	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithTimeFunc(J.now))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return parsedToken.Valid, nil
}
