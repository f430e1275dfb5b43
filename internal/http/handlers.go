package http

import (
	"net/http"
	"strings"

	"savings/internal/log"
)

type createGoalRequest struct {
	Name         string `json:"name"`
	TargetAmount string `json:"target_amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
}

type contributionRequest struct {
	Amount string `json:"amount"`
}

type convertRequest struct {
	Currency string `json:"currency"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := ParseAmountField("target_amount", req.TargetAmount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.ledger.CreateGoal(r.Context(), r.PathValue("user"), strings.TrimSpace(req.Name), target, req.Currency, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/users/"+view.UserID+"/goals/"+view.ID).
		Data(NewGoalResponse(view)).
		Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	views := s.ledger.GetAllGoals(r.Context(), r.PathValue("user"))
	out := make([]GoalResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewGoalResponse(v))
	}
	NewJSONResponse().Data(map[string]any{"goals": out}).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.GetGoal(r.Context(), r.PathValue("user"), r.PathValue("goal"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(NewGoalResponse(view)).Write(w)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := ParseAmountField("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.ledger.AddContribution(r.Context(), r.PathValue("user"), r.PathValue("goal"), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(NewGoalResponse(view)).Write(w)
}

func (s *Server) handleConvertGoal(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.ledger.ConvertGoalCurrency(r.Context(), r.PathValue("user"), r.PathValue("goal"), req.Currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(NewGoalResponse(view)).Write(w)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{"currencies": s.currencies.Currencies()}).Write(w)
}

// writeError maps err to a status and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().
				WithGoal(r.PathValue("user"), r.PathValue("goal")).
				WithError(err).
				ToSlice()...)
		NewJSONResponse().Status(status).Error("internal error").Write(w)
		return
	}
	NewJSONResponse().Status(status).Error(err.Error()).Write(w)
}
