package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"smartspend/internal/core"
)

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		account, err := s.storage.GetDefaultAccount(r.Context(), uid)
		if err != nil {
			writeError(w, r, fmt.Errorf("default account: %w", err))
			return
		}
		accountID = account.ID
	}

	status, err := s.budgets.CurrentStatus(r.Context(), uid, accountID, time.Now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status.Budget == nil {
		writeError(w, r, fmt.Errorf("%w: no budget set", core.ErrNotFound))
		return
	}

	writeJSON(w, http.StatusOK, budgetJSON{
		Amount:          status.Budget.Amount.String(),
		CurrentExpenses: status.CurrentExpenses.String(),
		UsedPct:         status.CurrentExpenses.Percent(status.Budget.Amount),
	})
}

type setBudgetRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	budget, err := s.budgets.SetBudget(r.Context(), userID(r), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": budget.Amount.String()})
}
