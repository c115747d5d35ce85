package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"smartspend/internal/core"
)

type createAccountRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), userID(r), core.Account{Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountJSON(*account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]accountJSON, len(accounts))
	for i, a := range accounts {
		out[i] = toAccountJSON(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccountOverview(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	accountID := r.PathValue("id")
	key := overviewKey(uid, accountID)

	if overview, ok := s.overviewCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toOverviewJSON(overview))
		return
	}

	overview, err := s.ledger.GetAccountOverview(r.Context(), uid, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.overviewCache.Set(key, overview)
	writeJSON(w, http.StatusOK, toOverviewJSON(overview))
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.SetDefaultAccount(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(*account))
}
