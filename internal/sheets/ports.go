package sheets

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/core"
)

// Ledger row sources.
const (
	SourceExpense     = "expense"
	SourceTransaction = "transaction"
)

// LedgerRow is one exported ledger line. Columns are written in field order.
type LedgerRow struct {
	Date        core.Date
	Type        core.TransactionType
	Category    string
	Description string
	Amount      float64
	Source      string
	EntityID    string
}

// Header is the column header row of an export sheet.
var Header = []any{"Date", "Type", "Category", "Description", "Amount", "Source", "ID"}

func (r LedgerRow) Validate() error {
	if r.Date.IsZero() {
		return errors.New("missing date")
	}
	if !r.Type.IsValid() {
		return core.ErrInvalidType
	}
	if strings.TrimSpace(r.Category) == "" {
		return core.ErrEmptyCategory
	}
	if r.Amount <= 0 {
		return core.ErrInvalidAmount
	}
	return nil
}

// Values returns the row in sheet column order.
func (r LedgerRow) Values() []any {
	return []any{r.Date.String(), string(r.Type), r.Category, r.Description, core.RoundToCents(r.Amount), r.Source, r.EntityID}
}

// Ports for outbound adapters.
type (
	// RowAppender appends a ledger row and returns a reference to where it landed.
	RowAppender interface {
		Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// RowLister returns the rows exported for a given year.
	RowLister interface {
		ListRows(ctx context.Context, year int) ([]LedgerRow, error)
	}

	Exporter interface {
		RowAppender
		RowLister
	}
)
