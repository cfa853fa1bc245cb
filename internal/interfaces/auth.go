package interfaces

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ternarybob/tubecast/internal/models"
)

// ErrNotAuthenticated is returned when no stored credential matches a request
var ErrNotAuthenticated = errors.New("no authenticated user")

// TokenStorage persists OAuth credentials, one record per normalized email
type TokenStorage interface {
	// SaveUser upserts the credential for an email (lower-cased, trimmed)
	SaveUser(ctx context.Context, email string, token *oauth2.Token) error

	// GetUser loads the credential for an email, ErrNotAuthenticated if absent
	GetUser(ctx context.Context, email string) (*models.ConnectedUser, error)

	// FirstConnectedUser returns the most recently updated credential,
	// ErrNotAuthenticated when none exist
	FirstConnectedUser(ctx context.Context) (*models.ConnectedUser, error)
}

// AuthService manages the Google OAuth flow and authenticated API clients
type AuthService interface {
	// AuthURL returns the provider consent URL for the configured scopes
	AuthURL(state string) string

	// Exchange trades an authorization code for tokens
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// ResolveEmail returns the account email for a token via the userinfo endpoint
	ResolveEmail(ctx context.Context, token *oauth2.Token) (string, error)

	// SaveTokens upserts tokens for a user
	SaveTokens(ctx context.Context, email string, token *oauth2.Token) error

	// FirstConnectedUser returns the most recently authenticated account
	FirstConnectedUser(ctx context.Context) (*models.ConnectedUser, error)

	// AuthenticatedClient returns an HTTP client for the user whose token
	// source refreshes lazily and persists rotated tokens
	AuthenticatedClient(ctx context.Context, email string) (*http.Client, error)
}
