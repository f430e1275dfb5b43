package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/core"
	"savings/internal/ledger"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", ledger.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ledger.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ledger.ErrInvalidCurrency), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusTeapot).Header("X-Test", "1").Error("nope").Write(rec)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Test") != "1" || rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
	if got := rec.Body.String(); got != "{\"error\":\"nope\"}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestNewGoalResponse(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	g := core.Goal{
		ID:            "GOAL-2",
		UserID:        "u1",
		Name:          "Bike",
		TargetAmount:  decimal.NewFromInt(300),
		CurrentAmount: decimal.NewFromInt(100),
		Currency:      "EUR",
		CreatedAt:     ts,
		UpdatedAt:     ts,
		Contributions: []core.Contribution{{Amount: decimal.NewFromInt(100), Currency: "EUR", Timestamp: ts}},
	}
	got := NewGoalResponse(g.View())

	if got.TargetAmount != "300.00" || got.CurrentAmount != "100.00" || got.Progress != "33.33" {
		t.Fatalf("unexpected amounts %+v", got)
	}
	if len(got.Contributions) != 1 || got.Contributions[0].Amount != "100.00" {
		t.Fatalf("unexpected contributions %+v", got.Contributions)
	}

	empty := NewGoalResponse(core.Goal{ID: "GOAL-3"}.View())
	if empty.Contributions == nil {
		t.Fatal("contributions must encode as an empty list")
	}
}
