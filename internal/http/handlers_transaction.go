package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"smartspend/internal/core"
)

type transactionRequest struct {
	AccountID         string `json:"accountId"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	IsRecurring       bool   `json:"isRecurring"`
	RecurringInterval string `json:"recurringInterval"`
}

func (req transactionRequest) toDomain() (core.Transaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		AccountID:         req.AccountID,
		Type:              core.TransactionType(req.Type),
		Amount:            amount,
		Date:              date,
		Description:       req.Description,
		Category:          req.Category,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.RecurringInterval(req.RecurringInterval),
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}
	tx, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), userID(r), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(*created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(*tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}
	tx, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateTransaction(r.Context(), userID(r), r.PathValue("id"), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(*updated))
}

type deleteTransactionsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req deleteTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, fmt.Errorf("%w: no transaction ids given", core.ErrValidation))
		return
	}

	if err := s.ledger.DeleteTransactions(r.Context(), userID(r), req.IDs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
