package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
)

// UserService keeps local user records in step with the identity provider.
type UserService struct {
	users  ports.UserRepository
	tokens ports.TokenIssuer
	runner ports.UserSyncRunner
	now    func() time.Time
}

// NewUserService creates a UserService. runner may be nil to sync inline.
func NewUserService(users ports.UserRepository, tokens ports.TokenIssuer, runner ports.UserSyncRunner) *UserService {
	return &UserService{users: users, tokens: tokens, runner: runner, now: time.Now}
}

// Sync issues a session token for identity and upserts the user record.
func (s *UserService) Sync(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if err := domain.ValidateStruct(identity); err != nil {
		return nil, err
	}
	if s.runner != nil {
		return s.runner.RunUserSync(ctx, identity)
	}

	token, err := s.IssueToken(identity)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, identity, token)
}

// IssueToken signs a session token carrying the identity's claims.
func (s *UserService) IssueToken(identity domain.Identity) (string, error) {
	token, err := s.tokens.Issue(identity.ExternalID, identity.Email, identity.DisplayName())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Store upserts the user record keyed by the external identity ID.
func (s *UserService) Store(ctx context.Context, identity domain.Identity, token string) (*domain.User, error) {
	now := s.now().UTC()
	user := &domain.User{
		ExternalID: identity.ExternalID,
		Name:       identity.DisplayName(),
		Email:      identity.Email,
		ImageURL:   identity.ImageURL,
		Providers:  strings.Join(identity.Providers, ","),
		Token:      token,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", identity.ExternalID, err)
	}
	return user, nil
}

// Me returns the record for a verified token.
func (s *UserService) Me(ctx context.Context, claims *domain.TokenClaims) (*domain.User, error) {
	if claims == nil || claims.UserID == "" {
		return nil, domain.ErrNotFound
	}
	return s.users.GetByExternalID(ctx, claims.UserID)
}

// Verify checks a bearer token.
func (s *UserService) Verify(token string) (*domain.TokenClaims, error) {
	return s.tokens.Verify(token)
}
