package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"savings/internal/core"
	"savings/internal/ledger"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Error sets the body to {"error": msg}.
func (b *JSONResponseBuilder) Error(msg string) *JSONResponseBuilder {
	b.payload = ErrorResponse{Error: msg}
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ContributionResponse struct {
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// GoalResponse is the wire form of a goal view. Amounts are decimal strings
// with two places; progress keeps two places as well.
type GoalResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	TargetAmount  string                 `json:"target_amount"`
	CurrentAmount string                 `json:"current_amount"`
	Currency      string                 `json:"currency"`
	Progress      string                 `json:"progress"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Contributions []ContributionResponse `json:"contributions"`
}

func NewGoalResponse(v core.GoalView) GoalResponse {
	contribs := make([]ContributionResponse, 0, len(v.Contributions))
	for _, c := range v.Contributions {
		contribs = append(contribs, ContributionResponse{
			Amount:    c.Amount.StringFixed(2),
			Currency:  c.Currency,
			Timestamp: c.Timestamp,
		})
	}
	return GoalResponse{
		ID:            v.ID,
		UserID:        v.UserID,
		Name:          v.Name,
		Description:   v.Description,
		TargetAmount:  v.TargetAmount.StringFixed(2),
		CurrentAmount: v.CurrentAmount.StringFixed(2),
		Currency:      v.Currency,
		Progress:      v.Progress.StringFixed(2),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		Contributions: contribs,
	}
}

// StatusFor maps ledger errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidCurrency):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
