package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"golang.org/x/oauth2"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

// TokenStorage implements the TokenStorage interface for Badger
type TokenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTokenStorage creates a new TokenStorage instance
func NewTokenStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TokenStorage {
	return &TokenStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeEmail lower-cases and trims the credential key
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SaveUser upserts the credential for an email
func (s *TokenStorage) SaveUser(ctx context.Context, email string, token *oauth2.Token) error {
	key := normalizeEmail(email)
	if key == "" {
		return fmt.Errorf("email cannot be empty")
	}

	now := time.Now()
	user := models.ConnectedUser{
		Email:     key,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var existing models.ConnectedUser
	if err := s.db.Store().Get(key, &existing); err == nil {
		user.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(key, &user); err != nil {
		return fmt.Errorf("failed to save user tokens: %w", err)
	}

	s.logger.Info().Str("email", key).Msg("Stored OAuth credential")
	return nil
}

// GetUser loads the credential for an email
func (s *TokenStorage) GetUser(ctx context.Context, email string) (*models.ConnectedUser, error) {
	key := normalizeEmail(email)
	var user models.ConnectedUser
	err := s.db.Store().Get(key, &user)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user tokens: %w", err)
	}
	return &user, nil
}

// FirstConnectedUser returns the most recently updated credential. Storage is
// multi-tenant shaped but every pipeline run selects this single record.
func (s *TokenStorage) FirstConnectedUser(ctx context.Context) (*models.ConnectedUser, error) {
	var users []models.ConnectedUser
	err := s.db.Store().Find(&users, badgerhold.Where("Email").Ne("").SortBy("UpdatedAt").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to list connected users: %w", err)
	}
	if len(users) == 0 {
		return nil, interfaces.ErrNotAuthenticated
	}
	return &users[0], nil
}
