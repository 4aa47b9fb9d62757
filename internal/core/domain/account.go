package domain

import (
	"strings"
	"time"
)

// User is the local record of an externally authenticated identity.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ImageURL   string    `json:"image_url,omitempty"`
	Providers  string    `json:"providers,omitempty"`
	Token      string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Destination is a curated place shown around the user's location.
type Destination struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Location    Coordinate `json:"location"`
	Distance    *float64   `json:"distance,omitempty"` // computed field
	CreatedAt   time.Time  `json:"created_at"`
}

// ChatReply is the assistant's answer to one user message.
type ChatReply struct {
	Text     string `json:"text"`
	Allowed  bool   `json:"allowed"`
	Fallback bool   `json:"fallback,omitempty"`
}

// TokenClaims are the identity fields carried in a session token.
type TokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Identity is the profile supplied by the external identity provider.
type Identity struct {
	ExternalID string   `json:"external_id" validate:"required"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email" validate:"required,email"`
	ImageURL   string   `json:"image_url"`
	Providers  []string `json:"providers"`
}

// DisplayName joins the first and last name.
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}
