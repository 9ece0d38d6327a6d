package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// ImportResult reports the outcome of a payment import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// TransactionService manages the personal ledger.
type TransactionService struct {
	store     *store.TransactionStore
	publisher EventPublisher
}

func NewTransactionService(s *store.TransactionStore, p EventPublisher) *TransactionService {
	return &TransactionService{store: s, publisher: p}
}

func normalizeTransaction(tx core.Transaction) core.Transaction {
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Amount = core.RoundToCents(tx.Amount)
	return tx
}

func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = normalizeTransaction(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.Create(tx)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction created", "transaction_id", created.ID, "type", created.Type)
	publish(ctx, s.publisher, transactionEvent(amqp.EventTransactionCreated, created))
	return created, nil
}

// Update replaces the record with the given id. An unknown id reports false.
func (s *TransactionService) Update(ctx context.Context, id string, tx core.Transaction) (core.Transaction, bool, error) {
	tx = normalizeTransaction(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, false, err
	}
	updated, ok := s.store.Update(id, tx)
	return updated, ok, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) bool {
	tx, ok := s.store.Get(id)
	if !ok || !s.store.Delete(id) {
		return false
	}
	publish(ctx, s.publisher, transactionEvent(amqp.EventTransactionDeleted, tx))
	return true
}

func (s *TransactionService) Get(id string) (core.Transaction, error) {
	tx, ok := s.store.Get(id)
	if !ok {
		return core.Transaction{}, core.NewNotFound("transaction", id)
	}
	return tx, nil
}

// List returns all transactions, newest first.
func (s *TransactionService) List() []core.Transaction {
	return s.store.List()
}

// Import converts payment-provider records and merges the ones that are not
// duplicates of stored records. Invalid records are rejected as a whole.
func (s *TransactionService) Import(ctx context.Context, records []core.PaymentTransaction) (ImportResult, error) {
	v := core.NewValidationError()
	txs := make([]core.Transaction, 0, len(records))
	for i, rec := range records {
		tx := normalizeTransaction(rec.ToTransaction())
		if err := tx.Validate(); err != nil {
			v.Add(fmt.Sprintf("records[%d]", i), err.Error())
			continue
		}
		txs = append(txs, tx)
	}
	if err := v.Err(); err != nil {
		return ImportResult{}, err
	}
	imported, skipped := s.store.Merge(txs)
	slog.InfoContext(ctx, "Payment records imported", "imported", imported, "skipped", skipped)
	return ImportResult{Imported: imported, Skipped: skipped}, nil
}

// ExportCSV writes id,date,type,category,description,amount rows, newest first.
func (s *TransactionService) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "date", "type", "category", "description", "amount"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range s.store.List() {
		row := []string{
			tx.ID,
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func transactionEvent(t amqp.EventType, tx core.Transaction) *amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(t, tx.ID)
	ev.Amount = tx.Amount
	ev.Category = tx.Category
	ev.Description = tx.Description
	ev.Date = tx.Date.String()
	ev.Kind = string(tx.Type)
	return ev
}
