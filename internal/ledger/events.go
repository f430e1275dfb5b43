package ledger

import (
	"context"

	"savings/internal/core"
	"savings/internal/log"
)

// emit logs the event and hands it to every publisher. Publisher failures are
// logged and never undo the mutation that produced the event.
func (l *Ledger) emit(ctx context.Context, e core.Event) {
	fields := log.NewFields().
		WithGoal(e.UserID, e.GoalID).
		WithMoney(e.Amount, e.Currency).
		With(log.FieldEventType, string(e.Type))

	switch e.Type {
	case core.EventGoalCreated:
		fields.WithOperation(log.OpCreate).With(log.FieldGoalName, e.Name)
		l.logger.InfoContext(ctx, "Created goal", fields.ToSlice()...)
	case core.EventContributionAdded:
		l.logger.InfoContext(ctx, "Added contribution", fields.WithOperation(log.OpContribute).ToSlice()...)
	case core.EventGoalConverted:
		fields.WithOperation(log.OpConvert).With(log.FieldPreviousCurrency, e.PreviousCurrency)
		l.logger.InfoContext(ctx, "Converted goal currency", fields.ToSlice()...)
	}

	for _, p := range l.publishers {
		if err := p.Publish(ctx, e); err != nil {
			l.logger.WarnContext(ctx, "Failed to publish goal event",
				log.NewFields().
					WithGoal(e.UserID, e.GoalID).
					WithOperation(log.OpPublish).
					WithError(err).
					With(log.FieldEventType, string(e.Type)).
					ToSlice()...)
		}
	}
}
