// Package worker applies asynchronously submitted contributions to the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/amqp"
	"savings/internal/cache"
	"savings/internal/core"
	"savings/internal/ledger"
	"savings/internal/log"
)

const (
	dedupeSize = 10000
	dedupeTTL  = 24 * time.Hour
)

type (
	// Contributor is the part of the ledger the worker needs.
	Contributor interface {
		AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.GoalView, error)
	}

	// Consumer delivers contribution requests until ctx is done.
	Consumer interface {
		ConsumeContributions(ctx context.Context, handler func(context.Context, *amqp.ContributionRequest) error) error
	}
)

// ContributionWorker handles contribution requests received from AMQP.
type ContributionWorker struct {
	ledger Contributor
	logger *log.Logger
	seen   *cache.LRUCache[struct{}]
}

func NewContributionWorker(l Contributor, logger *log.Logger) *ContributionWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ContributionWorker{
		ledger: l,
		logger: logger.WithComponent(log.ComponentWorker),
		seen:   cache.NewLRUCache[struct{}](dedupeSize, dedupeTTL),
	}
}

// Dedupe exposes the request id cache so expired ids can be swept.
func (w *ContributionWorker) Dedupe() cache.Cleaner {
	return w.seen
}

// Run consumes requests until ctx is cancelled.
func (w *ContributionWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Starting contribution worker", log.FieldOperation, log.OpStartup)
	err := c.ConsumeContributions(ctx, w.HandleContributionRequest)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleContributionRequest applies one request. Requests the ledger rejects
// are logged and acknowledged; only infrastructure failures are returned so
// the broker redelivers them. Requests with an id already applied are skipped.
func (w *ContributionWorker) HandleContributionRequest(ctx context.Context, msg *amqp.ContributionRequest) error {
	if msg.RequestID != "" {
		if _, dup := w.seen.Get(msg.RequestID); dup {
			w.logger.InfoContext(ctx, "Skipping duplicate contribution request",
				"request_id", msg.RequestID,
				log.FieldGoalID, msg.GoalID)
			return nil
		}
	}

	view, err := w.ledger.AddContribution(ctx, msg.UserID, msg.GoalID, msg.Amount)
	switch {
	case err == nil:
		if msg.RequestID != "" {
			w.seen.Set(msg.RequestID, struct{}{})
		}
		w.logger.InfoContext(ctx, "Applied queued contribution",
			log.NewFields().
				WithGoal(msg.UserID, msg.GoalID).
				WithMoney(msg.Amount, view.Currency).
				WithOperation(log.OpContribute).
				With("request_id", msg.RequestID).
				With("progress", view.Progress.StringFixed(2)).
				ToSlice()...)
		return nil
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalidCurrency):
		w.logger.WarnContext(ctx, "Rejected queued contribution",
			log.NewFields().
				WithGoal(msg.UserID, msg.GoalID).
				WithOperation(log.OpContribute).
				WithError(err).
				With("request_id", msg.RequestID).
				ToSlice()...)
		return nil
	default:
		return fmt.Errorf("apply contribution to %s: %w", msg.GoalID, err)
	}
}
