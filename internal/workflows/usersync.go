package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// UserSyncTaskQueue is the task queue served by cmd/syncworker.
const UserSyncTaskQueue = "user-sync"

// UserSyncResult is the workflow output. The token travels separately
// because domain.User never serialises it.
type UserSyncResult struct {
	User  domain.User
	Token string
}

// UserSyncWorkflow issues a session token and upserts the user record.
// Both steps retry up to three times.
func UserSyncWorkflow(ctx workflow.Context, identity domain.Identity) (*UserSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting user sync workflow", "externalID", identity.ExternalID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var token string
	if err := workflow.ExecuteActivity(ctx, "IssueSessionToken", identity).Get(ctx, &token); err != nil {
		return nil, err
	}

	var user domain.User
	if err := workflow.ExecuteActivity(ctx, "UpsertUserRecord", identity, token).Get(ctx, &user); err != nil {
		return nil, err
	}

	logger.Info("User sync complete", "externalID", identity.ExternalID)
	return &UserSyncResult{User: user, Token: token}, nil
}

// TemporalUserSync runs UserSyncWorkflow on a Temporal cluster and waits for
// the result.
type TemporalUserSync struct {
	client    client.Client
	taskQueue string
}

// NewTemporalUserSync creates a runner submitting to taskQueue.
func NewTemporalUserSync(c client.Client, taskQueue string) *TemporalUserSync {
	if taskQueue == "" {
		taskQueue = UserSyncTaskQueue
	}
	return &TemporalUserSync{client: c, taskQueue: taskQueue}
}

// RunUserSync starts the workflow keyed by external ID, so concurrent syncs
// of the same user share one execution.
func (t *TemporalUserSync) RunUserSync(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	run, err := t.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "user-sync-" + identity.ExternalID,
		TaskQueue:                t.taskQueue,
		WorkflowExecutionTimeout: time.Minute,
	}, UserSyncWorkflow, identity)
	if err != nil {
		return nil, fmt.Errorf("start user sync: %w", err)
	}

	var res UserSyncResult
	if err := run.Get(ctx, &res); err != nil {
		return nil, fmt.Errorf("user sync %s: %w", run.GetRunID(), err)
	}
	user := res.User
	user.Token = res.Token
	return &user, nil
}
