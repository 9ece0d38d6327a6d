package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.deps.Transactions.List()))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	tx.Category = sanitizeInput(tx.Category)
	tx.Description = sanitizeInput(tx.Description)
	created, err := s.deps.Transactions.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Transactions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleUpdateTransaction replaces the transaction with the request body.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	tx.Category = sanitizeInput(tx.Category)
	tx.Description = sanitizeInput(tx.Description)
	updated, ok, err := s.deps.Transactions.Update(r.Context(), id, tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("transaction", id))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Transactions.Delete(r.Context(), id) {
		writeError(w, r, core.NewNotFound("transaction", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportTransactions merges payment-provider records into the ledger.
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	var records []core.PaymentTransaction
	if err := decodeJSON(w, r, &records); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.deps.Transactions.Import(r.Context(), records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Transactions.ExportCSV(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("transactions-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
