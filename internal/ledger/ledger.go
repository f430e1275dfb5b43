// Package ledger owns savings goal state for all users.
//
// Every operation reports failure through an error wrapping ErrInvalidInput,
// ErrNotFound or ErrInvalidCurrency. Store errors and rate provider errors
// other than an unknown currency are returned wrapped as they are.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/core"
	"savings/internal/log"
	"savings/internal/rates"
)

// IDPrefix is prepended to the counter value to form goal ids.
const IDPrefix = "GOAL-"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("goal not found")
	ErrInvalidCurrency = errors.New("invalid currency")
)

type Ledger struct {
	mu         sync.RWMutex
	users      map[string]*userGoals
	counter    int64
	rates      rates.Provider
	store      Store
	publishers []Publisher
	logger     *log.Logger
	now        func() time.Time
}

// userGoals keeps a user's goals together with their creation order.
type userGoals struct {
	order []string
	goals map[string]*core.Goal
}

type Option func(*Ledger)

// WithStore writes every mutation through to s before it becomes visible.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

func WithPublishers(p ...Publisher) Option {
	return func(l *Ledger) { l.publishers = append(l.publishers, p...) }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(provider rates.Provider, opts ...Option) *Ledger {
	l := &Ledger{
		users:  make(map[string]*userGoals),
		rates:  provider,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore replaces in-memory state with the goals held by the store and
// moves the id counter past the highest id seen.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	goals, err := l.store.LoadGoals(ctx)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.users = make(map[string]*userGoals)
	l.counter = 0
	for _, g := range goals {
		g := g.Clone()
		l.insert(&g)
		if n, ok := parseID(g.ID); ok && n > l.counter {
			l.counter = n
		}
	}
	l.logger.InfoContext(ctx, "Restored goals from store",
		log.FieldOperation, log.OpRestore,
		"goals", len(goals),
		"users", len(l.users),
		"next_id", l.counter+1)
	return nil
}

// CreateGoal registers a new goal for userID with a zero balance.
func (l *Ledger) CreateGoal(ctx context.Context, userID, name string, target decimal.Decimal, currency, description string) (core.GoalView, error) {
	currency = core.NormalizeCurrency(currency)
	target = core.RoundCents(target)
	switch {
	case strings.TrimSpace(userID) == "":
		return core.GoalView{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrEmptyUserID)
	case strings.TrimSpace(name) == "":
		return core.GoalView{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrEmptyName)
	case !target.IsPositive():
		return core.GoalView{}, fmt.Errorf("%w: target amount must be positive", ErrInvalidInput)
	case currency == "":
		return core.GoalView{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrEmptyCurrency)
	}
	if err := l.validateCurrency(currency); err != nil {
		return core.GoalView{}, err
	}

	l.mu.Lock()
	now := l.now().UTC()
	g := core.Goal{
		ID:            IDPrefix + strconv.FormatInt(l.counter+1, 10),
		UserID:        userID,
		Name:          name,
		Description:   description,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
		Contributions: []core.Contribution{},
	}
	if err := l.save(ctx, g); err != nil {
		l.mu.Unlock()
		return core.GoalView{}, err
	}
	l.counter++
	stored := g.Clone()
	l.insert(&stored)
	l.mu.Unlock()

	l.emit(ctx, core.Event{
		Type:      core.EventGoalCreated,
		GoalID:    g.ID,
		UserID:    g.UserID,
		Name:      g.Name,
		Amount:    g.TargetAmount,
		Currency:  g.Currency,
		Timestamp: now,
	})
	return g.View(), nil
}

// AddContribution deposits amount into the goal and records it in the goal's history.
func (l *Ledger) AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.GoalView, error) {
	amount = core.RoundCents(amount)
	var contribution core.Contribution
	g, _, err := l.update(ctx, userID, goalID, func(g *core.Goal) (bool, error) {
		if !amount.IsPositive() {
			return false, fmt.Errorf("%w: contribution must be positive", ErrInvalidInput)
		}
		now := l.now().UTC()
		contribution = core.Contribution{Amount: amount, Currency: g.Currency, Timestamp: now}
		g.CurrentAmount = g.CurrentAmount.Add(amount)
		g.UpdatedAt = now
		g.Contributions = append(g.Contributions, contribution)
		return true, nil
	})
	if err != nil {
		return core.GoalView{}, err
	}

	l.emit(ctx, core.Event{
		Type:      core.EventContributionAdded,
		GoalID:    g.ID,
		UserID:    g.UserID,
		Name:      g.Name,
		Amount:    contribution.Amount,
		Currency:  contribution.Currency,
		Timestamp: contribution.Timestamp,
	})
	return g.View(), nil
}

// ConvertGoalCurrency re-denominates target and current amounts in newCurrency.
// Recorded contributions keep the currency they were made in. Converting to
// the goal's own currency changes nothing.
func (l *Ledger) ConvertGoalCurrency(ctx context.Context, userID, goalID, newCurrency string) (core.GoalView, error) {
	newCurrency = core.NormalizeCurrency(newCurrency)
	var previous string
	g, changed, err := l.update(ctx, userID, goalID, func(g *core.Goal) (bool, error) {
		if err := l.validateCurrency(newCurrency); err != nil {
			return false, err
		}
		if g.Currency == newCurrency {
			return false, nil
		}

		target, err := l.convert(g.TargetAmount, g.Currency, newCurrency)
		if err != nil {
			return false, err
		}
		if !target.IsPositive() {
			return false, fmt.Errorf("%w: target converts to %s %s", ErrInvalidCurrency, target, newCurrency)
		}
		current, err := l.convert(g.CurrentAmount, g.Currency, newCurrency)
		if err != nil {
			return false, err
		}

		previous = g.Currency
		g.TargetAmount = target
		g.CurrentAmount = current
		g.Currency = newCurrency
		g.UpdatedAt = l.now().UTC()
		return true, nil
	})
	if err != nil {
		return core.GoalView{}, err
	}

	if changed {
		l.emit(ctx, core.Event{
			Type:             core.EventGoalConverted,
			GoalID:           g.ID,
			UserID:           g.UserID,
			Name:             g.Name,
			Amount:           g.TargetAmount,
			Currency:         g.Currency,
			PreviousCurrency: previous,
			Timestamp:        g.UpdatedAt,
		})
	}
	return g.View(), nil
}

// GetGoal returns the goal with its current progress. Unknown users and
// unknown goals both yield ErrNotFound.
func (l *Ledger) GetGoal(ctx context.Context, userID, goalID string) (core.GoalView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.lookup(userID, goalID)
	if !ok {
		return core.GoalView{}, notFound(userID, goalID)
	}
	return g.View(), nil
}

// GetAllGoals lists the user's goals in creation order. Unknown users get an empty slice.
func (l *Ledger) GetAllGoals(ctx context.Context, userID string) []core.GoalView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ug, ok := l.users[userID]
	if !ok {
		return []core.GoalView{}
	}
	out := make([]core.GoalView, 0, len(ug.order))
	for _, id := range ug.order {
		out = append(out, ug.goals[id].View())
	}
	return out
}

// update applies fn to a copy of the goal and commits the copy once the
// store accepted it. fn reports whether it changed anything.
func (l *Ledger) update(ctx context.Context, userID, goalID string, fn func(*core.Goal) (bool, error)) (core.Goal, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.lookup(userID, goalID)
	if !ok {
		return core.Goal{}, false, notFound(userID, goalID)
	}
	next := cur.Clone()
	changed, err := fn(&next)
	if err != nil {
		return core.Goal{}, false, err
	}
	if !changed {
		return next, false, nil
	}
	if err := l.save(ctx, next); err != nil {
		return core.Goal{}, false, err
	}
	*cur = next.Clone()
	return next, true, nil
}

func (l *Ledger) lookup(userID, goalID string) (*core.Goal, bool) {
	ug, ok := l.users[userID]
	if !ok {
		return nil, false
	}
	g, ok := ug.goals[goalID]
	return g, ok
}

func (l *Ledger) insert(g *core.Goal) {
	ug, ok := l.users[g.UserID]
	if !ok {
		ug = &userGoals{goals: make(map[string]*core.Goal)}
		l.users[g.UserID] = ug
	}
	if _, exists := ug.goals[g.ID]; !exists {
		ug.order = append(ug.order, g.ID)
	}
	ug.goals[g.ID] = g
}

func (l *Ledger) save(ctx context.Context, g core.Goal) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveGoal(ctx, g); err != nil {
		return fmt.Errorf("save goal %s: %w", g.ID, err)
	}
	return nil
}

// validateCurrency checks the rate provider against the reference currency.
func (l *Ledger) validateCurrency(code string) error {
	if _, err := l.rates.Rate(code, rates.Reference); err != nil {
		if errors.Is(err, rates.ErrCurrencyNotFound) {
			return fmt.Errorf("%w: %w", ErrInvalidCurrency, err)
		}
		return fmt.Errorf("validate currency %q: %w", code, err)
	}
	return nil
}

func (l *Ledger) convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	res, err := l.rates.Convert(amount, from, to)
	if err != nil {
		if errors.Is(err, rates.ErrCurrencyNotFound) {
			return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidCurrency, err)
		}
		return decimal.Zero, fmt.Errorf("convert %s to %s: %w", from, to, err)
	}
	return res.Amount, nil
}

func notFound(userID, goalID string) error {
	return fmt.Errorf("%w: user %q goal %q", ErrNotFound, userID, goalID)
}

func parseID(id string) (int64, bool) {
	s, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
