package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

// UserSyncActivities holds the activity implementations for UserSyncWorkflow.
type UserSyncActivities struct {
	Users *usecases.UserService
}

// IssueSessionToken signs the session token for an identity.
func (a *UserSyncActivities) IssueSessionToken(ctx context.Context, identity domain.Identity) (string, error) {
	return a.Users.IssueToken(identity)
}

// UpsertUserRecord stores the user with its freshly issued token.
func (a *UserSyncActivities) UpsertUserRecord(ctx context.Context, identity domain.Identity, token string) (*domain.User, error) {
	user, err := a.Users.Store(ctx, identity, token)
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("user record synced", "externalID", identity.ExternalID)
	return user, nil
}
