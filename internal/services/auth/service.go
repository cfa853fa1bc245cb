package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// Service manages the Google OAuth flow and per-user API clients. One stored
// credential per normalized email; every pipeline run selects the most
// recently authenticated account.
type Service struct {
	oauthConfig *oauth2.Config
	tokens      interfaces.TokenStorage
	logger      arbor.ILogger
}

// NewService creates a new OAuth service
func NewService(config *common.OAuthConfig, tokens interfaces.TokenStorage, logger arbor.ILogger) (*Service, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("oauth client_id and client_secret are required")
	}

	return &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint:     google.Endpoint,
		},
		tokens: tokens,
		logger: logger,
	}, nil
}

// AuthURL returns the provider consent URL. Offline access is requested so a
// refresh token is issued; consent is forced so re-connects rotate it.
func (s *Service) AuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// ResolveEmail returns the account email for a token
func (s *Service) ResolveEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	client := s.oauthConfig.Client(ctx, token)

	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("userinfo response carried no email")
	}

	return info.Email, nil
}

// SaveTokens upserts tokens for a user
func (s *Service) SaveTokens(ctx context.Context, email string, token *oauth2.Token) error {
	return s.tokens.SaveUser(ctx, email, token)
}

// FirstConnectedUser returns the most recently authenticated account
func (s *Service) FirstConnectedUser(ctx context.Context) (*models.ConnectedUser, error) {
	return s.tokens.FirstConnectedUser(ctx)
}

// persistingTokenSource wraps a refreshing token source and writes rotated
// tokens back to storage. Refresh happens lazily on the next API call with an
// expired token, not on a schedule.
type persistingTokenSource struct {
	email  string
	tokens interfaces.TokenStorage
	src    oauth2.TokenSource
	logger arbor.ILogger

	mu   sync.Mutex
	last *oauth2.Token
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	rotated := p.last == nil || p.last.AccessToken != token.AccessToken
	p.last = token
	p.mu.Unlock()

	if rotated {
		if err := p.tokens.SaveUser(context.Background(), p.email, token); err != nil {
			p.logger.Warn().Err(err).Str("email", p.email).Msg("Failed to persist rotated tokens")
		} else {
			p.logger.Debug().Str("email", p.email).Msg("Persisted rotated tokens")
		}
	}

	return token, nil
}

// AuthenticatedClient returns an HTTP client whose token source refreshes
// lazily and persists rotated tokens transparently
func (s *Service) AuthenticatedClient(ctx context.Context, email string) (*http.Client, error) {
	user, err := s.tokens.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Token == nil {
		return nil, interfaces.ErrNotAuthenticated
	}

	src := &persistingTokenSource{
		email:  user.Email,
		tokens: s.tokens,
		src:    s.oauthConfig.TokenSource(ctx, user.Token),
		logger: s.logger,
		last:   user.Token,
	}

	return oauth2.NewClient(ctx, src), nil
}
