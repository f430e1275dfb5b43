package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"savings/internal/core"
	"savings/internal/rates"
)

type fakeStore struct {
	mu    sync.Mutex
	goals []core.Goal
	fail  error
	saves int
}

func (s *fakeStore) SaveGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves++
	for i := range s.goals {
		if s.goals[i].ID == g.ID {
			s.goals[i] = g.Clone()
			return nil
		}
	}
	s.goals = append(s.goals, g.Clone())
	return nil
}

func (s *fakeStore) LoadGoals(context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]core.Goal, len(s.goals))
	for i, g := range s.goals {
		out[i] = g.Clone()
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, e core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.fail
}

func TestStoreWriteThrough(t *testing.T) {
	store := &fakeStore{}
	l := newTestLedger(t, WithStore(store))
	ctx := context.Background()

	g := mustCreate(t, l, "u1", "Trip", "1000", "USD")
	if _, err := l.AddContribution(ctx, "u1", g.ID, dec("100")); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := l.ConvertGoalCurrency(ctx, "u1", g.ID, "USD"); err != nil {
		t.Fatalf("noop convert: %v", err)
	}
	if store.saves != 2 {
		t.Fatalf("expected 2 saves (create + contribution), got %d", store.saves)
	}
	if !store.goals[0].CurrentAmount.Equal(dec("100")) || len(store.goals[0].Contributions) != 1 {
		t.Fatalf("store not updated: %+v", store.goals[0])
	}
}

func TestStoreFailureLeavesStateUnchanged(t *testing.T) {
	store := &fakeStore{}
	l := newTestLedger(t, WithStore(store))
	ctx := context.Background()
	g := mustCreate(t, l, "u1", "Trip", "1000", "USD")

	boom := errors.New("disk full")
	store.fail = boom

	if _, err := l.AddContribution(ctx, "u1", g.ID, dec("100")); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := l.ConvertGoalCurrency(ctx, "u1", g.ID, "EUR"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := l.CreateGoal(ctx, "u1", "Other", dec("5"), "USD", ""); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	got, _ := l.GetGoal(ctx, "u1", g.ID)
	if !got.CurrentAmount.IsZero() || got.Currency != "USD" || len(got.Contributions) != 0 {
		t.Fatalf("goal changed despite store failure: %+v", got.Goal)
	}
	if n := len(l.GetAllGoals(ctx, "u1")); n != 1 {
		t.Fatalf("expected 1 goal, got %d", n)
	}

	store.fail = nil
	if g2 := mustCreate(t, l, "u1", "Other", "5", "USD"); g2.ID != "GOAL-2" {
		t.Fatalf("ids must not be burned by failed saves, got %s", g2.ID)
	}
}

func TestRestore(t *testing.T) {
	store := &fakeStore{}
	ctx := context.Background()

	first := newTestLedger(t, WithStore(store))
	a := mustCreate(t, first, "u1", "A", "100", "USD")
	mustCreate(t, first, "u2", "B", "200", "EUR")
	c := mustCreate(t, first, "u1", "C", "300", "GBP")
	if _, err := first.AddContribution(ctx, "u1", a.ID, dec("40")); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	second := New(rates.DefaultTable(), WithStore(store))
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	goals := second.GetAllGoals(ctx, "u1")
	if len(goals) != 2 || goals[0].ID != a.ID || goals[1].ID != c.ID {
		t.Fatalf("unexpected restored goals: %+v", goals)
	}
	if !goals[0].Progress.Equal(dec("40")) {
		t.Fatalf("expected 40%% progress after restore, got %s", goals[0].Progress)
	}

	next := mustCreate(t, second, "u3", "D", "10", "USD")
	if next.ID != "GOAL-4" {
		t.Fatalf("restored counter should continue at GOAL-4, got %s", next.ID)
	}
}

func TestRestoreError(t *testing.T) {
	store := &fakeStore{fail: errors.New("locked")}
	l := New(rates.DefaultTable(), WithStore(store))
	if err := l.Restore(context.Background()); err == nil {
		t.Fatal("expected restore error")
	}
	if err := New(rates.DefaultTable()).Restore(context.Background()); err != nil {
		t.Fatalf("restore without store should be a no-op, got %v", err)
	}
}

func TestEventsArePublished(t *testing.T) {
	pub := &recordingPublisher{}
	failing := &recordingPublisher{fail: errors.New("broker down")}
	l := newTestLedger(t, WithPublishers(pub, failing))
	ctx := context.Background()

	g := mustCreate(t, l, "u1", "Trip", "1000", "USD")
	if _, err := l.AddContribution(ctx, "u1", g.ID, dec("100")); err != nil {
		t.Fatalf("publisher failure must not fail the operation: %v", err)
	}
	if _, err := l.ConvertGoalCurrency(ctx, "u1", g.ID, "USD"); err != nil {
		t.Fatalf("noop convert: %v", err)
	}
	if _, err := l.ConvertGoalCurrency(ctx, "u1", g.ID, "EUR"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := l.AddContribution(ctx, "u1", g.ID, dec("-1")); err == nil {
		t.Fatal("expected error")
	}

	want := []core.EventType{core.EventGoalCreated, core.EventContributionAdded, core.EventGoalConverted}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), pub.events)
	}
	for i, typ := range want {
		if pub.events[i].Type != typ || pub.events[i].GoalID != g.ID || pub.events[i].UserID != "u1" {
			t.Fatalf("event %d: unexpected %+v", i, pub.events[i])
		}
	}
	if !pub.events[0].Amount.Equal(dec("1000")) || pub.events[0].Currency != "USD" || pub.events[0].Name != "Trip" {
		t.Fatalf("unexpected created event %+v", pub.events[0])
	}
	if !pub.events[1].Amount.Equal(dec("100")) {
		t.Fatalf("unexpected contribution event %+v", pub.events[1])
	}
	if pub.events[2].Currency != "EUR" || pub.events[2].PreviousCurrency != "USD" {
		t.Fatalf("unexpected conversion event %+v", pub.events[2])
	}
	if len(failing.events) != len(want) {
		t.Fatalf("failing publisher should still be called for every event, got %d", len(failing.events))
	}
}
