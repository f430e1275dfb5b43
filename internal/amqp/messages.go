package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/core"
)

// GoalEventMessage is the wire form of a ledger event.
type GoalEventMessage struct {
	Type             string          `json:"type"`
	GoalID           string          `json:"goal_id"`
	UserID           string          `json:"user_id"`
	Name             string          `json:"name,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	PreviousCurrency string          `json:"previous_currency,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

func NewGoalEventMessage(e core.Event) *GoalEventMessage {
	return &GoalEventMessage{
		Type:             string(e.Type),
		GoalID:           e.GoalID,
		UserID:           e.UserID,
		Name:             e.Name,
		Amount:           e.Amount,
		Currency:         e.Currency,
		PreviousCurrency: e.PreviousCurrency,
		Timestamp:        e.Timestamp,
	}
}

func (m *GoalEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ContributionRequest asks the worker to deposit Amount into a goal.
// Amount may be sent as a JSON string or number.
type ContributionRequest struct {
	RequestID string          `json:"request_id"`
	UserID    string          `json:"user_id"`
	GoalID    string          `json:"goal_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewContributionRequest(requestID, userID, goalID string, amount decimal.Decimal) *ContributionRequest {
	return &ContributionRequest{
		RequestID: requestID,
		UserID:    userID,
		GoalID:    goalID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ContributionRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ContributionRequestFromJSON(data []byte) (*ContributionRequest, error) {
	var msg ContributionRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
