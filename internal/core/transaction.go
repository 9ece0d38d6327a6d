package core

import (
	"sort"
	"strings"
)

// PaymentTransaction is a record pulled from a payment provider export.
type PaymentTransaction struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Date          Date    `json:"date"`
	Description   string  `json:"description"`
	Type          string  `json:"type"` // credit | debit
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	MerchantName  string  `json:"merchantName,omitempty"`
	UPIID         string  `json:"upiId,omitempty"`
}

// ToTransaction converts a provider record: credits become income, anything
// else becomes an expense.
func (p PaymentTransaction) ToTransaction() Transaction {
	t := Expense
	if strings.EqualFold(p.Type, "credit") {
		t = Income
	}
	return Transaction{
		ID:          p.TransactionID,
		Amount:      p.Amount,
		Date:        p.Date,
		Category:    p.Category,
		Description: p.Description,
		Type:        t,
	}
}

// IsDuplicateTransaction reports whether candidate matches an existing record
// by id, or by amount, date and description together.
func IsDuplicateTransaction(existing []Transaction, candidate Transaction) bool {
	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			return true
		}
		if FromDecimal(e.Amount) == FromDecimal(candidate.Amount) &&
			e.Date.Equal(candidate.Date.Time) &&
			e.Description == candidate.Description {
			return true
		}
	}
	return false
}

// MergeTransactions appends the non-duplicate incoming records to existing and
// returns the result newest first, along with the number of records skipped.
// Duplicates are checked against existing only, so two identical incoming
// records are both kept.
func MergeTransactions(existing, incoming []Transaction) ([]Transaction, int) {
	merged := make([]Transaction, len(existing), len(existing)+len(incoming))
	copy(merged, existing)
	skipped := 0
	for _, tx := range incoming {
		if IsDuplicateTransaction(existing, tx) {
			skipped++
			continue
		}
		merged = append(merged, tx)
	}
	SortNewestFirst(merged)
	return merged, skipped
}

// SortNewestFirst orders transactions by date descending, keeping insertion
// order for equal dates.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}
