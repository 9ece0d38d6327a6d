package services

import (
	"context"
	"log/slog"
	"slices"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

// ExpenseWithSplits is a recorded expense together with its split rows.
type ExpenseWithSplits struct {
	core.SharedExpense
	Splits []core.ExpenseSplit `json:"splits"`
}

// ExpenseLedger records shared expenses and tracks settlement of their splits.
type ExpenseLedger struct {
	store     *store.Store
	members   *MembershipManager
	publisher EventPublisher
}

func NewExpenseLedger(s *store.Store, members *MembershipManager, p EventPublisher) *ExpenseLedger {
	return &ExpenseLedger{store: s, members: members, publisher: p}
}

// RecordExpense stores the expense and its splits as given. It performs no
// business validation; callers run Submit or their own checks first.
func (l *ExpenseLedger) RecordExpense(ctx context.Context, e core.SharedExpense, shares []core.SplitShare) ExpenseWithSplits {
	created, splits := l.store.CreateExpense(e, shares)
	slog.InfoContext(ctx, "Expense recorded",
		"expense_id", created.ID,
		"group_id", created.GroupID,
		"amount", created.Amount,
		"splits", len(splits))
	publish(ctx, l.publisher, expenseEvent(amqp.EventExpenseRecorded, created))
	return ExpenseWithSplits{SharedExpense: created, Splits: splits}
}

// Submit validates an expense request at the boundary, derives its splits
// from the current group members (equal) or the request (custom), and
// records it.
func (l *ExpenseLedger) Submit(ctx context.Context, in core.ExpenseInput) (ExpenseWithSplits, error) {
	if err := in.Validate(); err != nil {
		return ExpenseWithSplits{}, err
	}
	if _, ok := l.store.Group(in.GroupID); !ok {
		return ExpenseWithSplits{}, core.NewNotFound("group", in.GroupID)
	}
	memberIDs := l.members.MemberIDs(in.GroupID)
	if err := checkMembership(in, memberIDs); err != nil {
		return ExpenseWithSplits{}, err
	}
	shares := in.Shares(memberIDs)
	return l.RecordExpense(ctx, in.Core(), shares), nil
}

// checkMembership requires the payer and every custom split owner to belong
// to the group, so the payer's own split is the one recorded as settled.
func checkMembership(in core.ExpenseInput, memberIDs []string) error {
	v := core.NewValidationError()
	if in.SplitType != core.SplitCustom && len(memberIDs) == 0 {
		v.Add("splits", "group has no members to split with")
		return v
	}
	if !slices.Contains(memberIDs, in.PaidBy) {
		v.Add("paid_by", "payer must be a member of the group")
	}
	if in.SplitType == core.SplitCustom {
		for _, sh := range in.Splits {
			if sh.Amount > 0 && !slices.Contains(memberIDs, sh.ParticipantID) {
				v.Add("splits", "participant "+sh.ParticipantID+" is not a member of the group")
				break
			}
		}
	}
	return v.Err()
}

// SettleSplit marks every split of participantID on the expense as settled.
// Repeating the call leaves the state unchanged.
func (l *ExpenseLedger) SettleSplit(ctx context.Context, expenseID, participantID string) ([]core.ExpenseSplit, error) {
	matched, ok := l.store.SettleSplits(expenseID, participantID)
	if !ok {
		return nil, core.NewNotFound("expense", expenseID)
	}
	if len(matched) > 0 {
		ev := amqp.NewLedgerEvent(amqp.EventSplitSettled, expenseID)
		ev.ParticipantID = participantID
		for _, sp := range matched {
			ev.Amount = core.FromDecimal(ev.Amount).Add(core.FromDecimal(sp.Amount)).Decimal()
		}
		publish(ctx, l.publisher, ev)
	}
	return matched, nil
}

// UpdateExpense merges fields without regenerating splits. An unknown id
// reports false.
func (l *ExpenseLedger) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.SharedExpense, bool, error) {
	if err := patch.Validate(); err != nil {
		return core.SharedExpense{}, false, err
	}
	updated, ok := l.store.UpdateExpense(id, patch)
	if ok {
		publish(ctx, l.publisher, expenseEvent(amqp.EventExpenseUpdated, updated))
	}
	return updated, ok, nil
}

// DeleteExpense removes the expense and its splits.
func (l *ExpenseLedger) DeleteExpense(ctx context.Context, id string) bool {
	e, ok := l.store.Expense(id)
	if !ok || !l.store.DeleteExpense(id) {
		return false
	}
	publish(ctx, l.publisher, expenseEvent(amqp.EventExpenseDeleted, e))
	return true
}

// UpdateSplit merges amount and settlement fields of one split.
func (l *ExpenseLedger) UpdateSplit(ctx context.Context, id string, patch core.SplitPatch) (core.ExpenseSplit, bool, error) {
	if patch.Amount != nil && *patch.Amount < 0 {
		v := core.NewValidationError()
		v.Add("amount", "amount cannot be negative")
		return core.ExpenseSplit{}, false, v
	}
	updated, ok := l.store.UpdateSplit(id, patch)
	return updated, ok, nil
}

func (l *ExpenseLedger) Expense(id string) (ExpenseWithSplits, error) {
	e, ok := l.store.Expense(id)
	if !ok {
		return ExpenseWithSplits{}, core.NewNotFound("expense", id)
	}
	return ExpenseWithSplits{SharedExpense: e, Splits: nonNilSplits(l.store.SplitsOf(id))}, nil
}

// Expenses lists expenses matching f with their splits, in insertion order.
func (l *ExpenseLedger) Expenses(f report.Filter) []ExpenseWithSplits {
	expenses := l.store.Expenses()
	entries := report.FromExpenses(expenses)
	out := make([]ExpenseWithSplits, 0, len(expenses))
	for i, e := range expenses {
		if !f.Match(entries[i]) {
			continue
		}
		out = append(out, ExpenseWithSplits{SharedExpense: e, Splits: nonNilSplits(l.store.SplitsOf(e.ID))})
	}
	return out
}

func expenseEvent(t amqp.EventType, e core.SharedExpense) *amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(t, e.ID)
	ev.GroupID = e.GroupID
	ev.ParticipantID = e.PaidBy
	ev.Amount = e.Amount
	ev.Category = e.Category
	ev.Description = e.Description
	ev.Date = e.ExpenseDate.String()
	ev.Kind = string(e.Type)
	return ev
}

func nonNilSplits(s []core.ExpenseSplit) []core.ExpenseSplit {
	if s == nil {
		return []core.ExpenseSplit{}
	}
	return s
}
