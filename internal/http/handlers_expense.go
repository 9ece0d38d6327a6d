package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type settleRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.deps.Ledger.Expenses(f)))
}

// handleCreateExpense validates the submission at the boundary and records
// the expense with its splits.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.GroupID = sanitizeInput(in.GroupID)
	in.PaidBy = sanitizeInput(in.PaidBy)
	in.Category = sanitizeInput(in.Category)
	in.Description = sanitizeInput(in.Description)
	in.SplitType = core.SplitType(strings.ToLower(string(in.SplitType)))

	rec, err := s.deps.Ledger.Submit(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Ledger.Expense(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch core.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	e, ok, err := s.deps.Ledger.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("expense", id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Ledger.DeleteExpense(r.Context(), id) {
		writeError(w, r, core.NewNotFound("expense", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettleSplit(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	participantID := sanitizeInput(req.ParticipantID)
	if participantID == "" {
		v := core.NewValidationError()
		v.Add("participant_id", "participant is required")
		writeError(w, r, v)
		return
	}
	splits, err := s.deps.Ledger.SettleSplit(r.Context(), r.PathValue("id"), participantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(splits))
}

func (s *Server) handleUpdateSplit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch core.SplitPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	split, ok, err := s.deps.Ledger.UpdateSplit(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("split", id))
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *Server) handleGroupExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.deps.Aggregator.GroupExpensesWithDetail(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(expenses))
}

func (s *Server) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.deps.Aggregator.Balances(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}
