package models

import (
	"time"

	"golang.org/x/oauth2"
)

// ConnectedUser is one stored OAuth credential, keyed by normalized email.
// Exactly one record exists per email; the pipeline always selects the most
// recently updated record ("first connected user").
type ConnectedUser struct {
	Email     string        `json:"email" badgerhold:"key"`
	Token     *oauth2.Token `json:"token"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
