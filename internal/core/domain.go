package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventGoalCreated       EventType = "goal.created"
	EventContributionAdded EventType = "contribution.added"
	EventGoalConverted     EventType = "goal.converted"
)

type (
	EventType string

	// Contribution is one deposit toward a goal. Currency records the goal's
	// currency at the time of the deposit and is never rewritten.
	Contribution struct {
		Amount    decimal.Decimal
		Currency  string
		Timestamp time.Time
	}

	Goal struct {
		ID            string
		UserID        string
		Name          string
		Description   string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		Currency      string
		CreatedAt     time.Time
		UpdatedAt     time.Time
		Contributions []Contribution
	}

	// GoalView is a snapshot of a goal together with its progress at read time.
	GoalView struct {
		Goal
		Progress decimal.Decimal
	}

	// Event is an informational record of a ledger mutation.
	Event struct {
		Type             EventType
		GoalID           string
		UserID           string
		Name             string
		Amount           decimal.Decimal // target for created/converted, deposit for contributions
		Currency         string
		PreviousCurrency string
		Timestamp        time.Time
	}
)

var (
	ErrEmptyUserID      = errors.New("empty user id")
	ErrEmptyName        = errors.New("empty goal name")
	ErrEmptyCurrency    = errors.New("empty currency")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeProgress = errors.New("current amount cannot be negative")
)

var hundred = decimal.NewFromInt(100)

// Progress returns current/target*100, or zero when the target is not positive.
func (g Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount).Mul(hundred)
}

// View copies the goal and attaches its current progress.
func (g Goal) View() GoalView {
	return GoalView{Goal: g.Clone(), Progress: g.Progress()}
}

// Clone returns a copy that shares no backing storage with g.
func (g Goal) Clone() Goal {
	c := g
	if g.Contributions != nil {
		c.Contributions = make([]Contribution, len(g.Contributions))
		copy(c.Contributions, g.Contributions)
	}
	return c
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(g.Currency) == "" {
		return ErrEmptyCurrency
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if g.CurrentAmount.IsNegative() {
		return ErrNegativeProgress
	}
	return nil
}

func (c Contribution) Validate() error {
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeCurrency trims and upper-cases an ISO-style currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
