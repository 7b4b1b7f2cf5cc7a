package client

import (
	"context"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
)

// Client is the auth-specific surface of the backend API. Every call
// attaches the current bearer token when one is set.
type Client interface {
	SendMagicLink(ctx context.Context, email string) (string, error)
	VerifyToken(ctx context.Context, token string) (*models.Credential, error)
	RefreshToken(ctx context.Context) (string, error)
	GetSession(ctx context.Context) (*models.UserProfile, error)
	Logout(ctx context.Context) error

	SetTokens(accessToken, refreshToken string)
	ClearTokens()
	Close() error
}

// TokenListener is told about token changes the client makes on its own,
// i.e. during transparent refresh.
type TokenListener interface {
	TokensRefreshed(ctx context.Context, accessToken, refreshToken string)
	SessionRevoked(ctx context.Context)
}
