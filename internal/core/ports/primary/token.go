package primary

import (
	"context"
	"time"
)

// TokenService issues and checks the bearer tokens of the admin API
type TokenService interface {
	GenerateTokenHMAC(ctx context.Context, subject string, ttl time.Duration) (string, error)
	VerifyTokenHMAC(ctx context.Context, token string) (bool, error)
}
