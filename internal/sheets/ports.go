// Package sheets mirrors ledger events into a spreadsheet-like row log.
package sheets

import (
	"context"
	"time"

	"savings/internal/core"
	"savings/internal/ledger"
)

// Header is the column layout written by Exporter.
var Header = []any{"timestamp", "event", "user_id", "goal_id", "amount", "currency", "previous_currency"}

// RowAppender is the outbound port implemented by spreadsheet adapters.
type RowAppender interface {
	AppendRow(ctx context.Context, values []any) error
}

// Exporter turns ledger events into rows.
type Exporter struct {
	rows RowAppender
}

var _ ledger.Publisher = (*Exporter)(nil)

func NewExporter(rows RowAppender) *Exporter {
	return &Exporter{rows: rows}
}

func (e *Exporter) Publish(ctx context.Context, ev core.Event) error {
	return e.rows.AppendRow(ctx, Row(ev))
}

// Row formats an event as one row matching Header. Amounts are written as
// fixed two-decimal text so the sheet does not reinterpret them.
func Row(ev core.Event) []any {
	return []any{
		ev.Timestamp.UTC().Format(time.RFC3339),
		string(ev.Type),
		ev.UserID,
		ev.GoalID,
		ev.Amount.StringFixed(2),
		ev.Currency,
		ev.PreviousCurrency,
	}
}
