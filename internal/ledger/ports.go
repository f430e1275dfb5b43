package ledger

import (
	"context"

	"savings/internal/core"
)

// Ports for outbound adapters.
type (
	// Store persists goals. SaveGoal must be an upsert that keeps already
	// stored contributions and appends the new ones.
	Store interface {
		SaveGoal(ctx context.Context, g core.Goal) error
		// LoadGoals returns every goal in creation order.
		LoadGoals(ctx context.Context) ([]core.Goal, error)
	}

	// Publisher receives an informational event for every ledger mutation.
	Publisher interface {
		Publish(ctx context.Context, e core.Event) error
	}
)
