// Package report computes summaries over ledger entries: income and expense
// totals, category breakdowns, monthly spending and group balances.
//
// All functions are pure. Amounts are accumulated in cents so that results do
// not depend on input order.
package report

import (
	"sort"
	"time"

	"fintrack/internal/core"
)

// Entry is the flat form of a shared expense or a plain transaction.
type Entry struct {
	GroupID  string
	PaidBy   string
	Amount   float64
	Category string
	Date     core.Date
	Type     core.TransactionType
}

// Filter narrows a set of entries. Zero fields do not filter.
//
// ParticipantID matches the payer only; participants who merely hold a split
// of an expense are not matched.
type Filter struct {
	GroupID       string
	ParticipantID string
	From          core.Date
	To            core.Date // inclusive
}

// Scoped reports whether the filter targets group or participant data, which
// plain transactions do not carry.
func (f Filter) Scoped() bool {
	return f.GroupID != "" || f.ParticipantID != ""
}

func (f Filter) Match(e Entry) bool {
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if f.ParticipantID != "" && e.PaidBy != f.ParticipantID {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}

// Apply returns the entries matching f, in input order.
func Apply(entries []Entry, f Filter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func FromExpenses(expenses []core.SharedExpense) []Entry {
	out := make([]Entry, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, Entry{
			GroupID:  e.GroupID,
			PaidBy:   e.PaidBy,
			Amount:   e.Amount,
			Category: e.Category,
			Date:     e.ExpenseDate,
			Type:     e.Type,
		})
	}
	return out
}

func FromTransactions(txs []core.Transaction) []Entry {
	out := make([]Entry, 0, len(txs))
	for _, t := range txs {
		out = append(out, Entry{
			Amount:   t.Amount,
			Category: t.Category,
			Date:     t.Date,
			Type:     t.Type,
		})
	}
	return out
}

// Summarize totals income and expense entries. Balance is income minus expense.
func Summarize(entries []Entry) core.ReportSummary {
	var income, expense core.Money
	for _, e := range entries {
		switch e.Type {
		case core.Income:
			income = income.Add(core.FromDecimal(e.Amount))
		case core.Expense:
			expense = expense.Add(core.FromDecimal(e.Amount))
		}
	}
	return core.ReportSummary{
		TotalIncome:  income.Decimal(),
		TotalExpense: expense.Decimal(),
		Balance:      income.Sub(expense).Decimal(),
	}
}

// CategoryBreakdown sums expense entries per category, in order of first
// appearance, and attaches each category's display colour.
func CategoryBreakdown(entries []Entry) []core.CategorySpending {
	totals := make(map[string]core.Money)
	var order []string
	for _, e := range entries {
		if e.Type != core.Expense {
			continue
		}
		if _, seen := totals[e.Category]; !seen {
			order = append(order, e.Category)
		}
		totals[e.Category] = totals[e.Category].Add(core.FromDecimal(e.Amount))
	}
	out := make([]core.CategorySpending, 0, len(order))
	for _, c := range order {
		out = append(out, core.CategorySpending{
			Category: c,
			Amount:   totals[c].Decimal(),
			Color:    core.ColorFor(c),
		})
	}
	return out
}

// MonthlySpending sums expense entries per calendar month, ordered
// chronologically. Months in different years are separate buckets even when
// they share a label.
func MonthlySpending(entries []Entry) []core.MonthlySpending {
	totals := make(map[string]core.Money)
	first := make(map[string]time.Time)
	for _, e := range entries {
		if e.Type != core.Expense || e.Date.IsZero() {
			continue
		}
		k := e.Date.MonthKey()
		if _, ok := first[k]; !ok {
			first[k] = time.Date(e.Date.Year(), e.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		totals[k] = totals[k].Add(core.FromDecimal(e.Amount))
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	// YYYY-MM sorts chronologically as a string.
	sort.Strings(keys)
	out := make([]core.MonthlySpending, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.MonthlySpending{
			Key:    k,
			Month:  first[k].Format("Jan"),
			Amount: totals[k].Decimal(),
		})
	}
	return out
}

// Trends builds both analytics series over the same entries.
func Trends(entries []Entry) core.Trends {
	return core.Trends{
		Monthly:    MonthlySpending(entries),
		Categories: CategoryBreakdown(entries),
	}
}
