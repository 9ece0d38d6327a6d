package services

import (
	"fmt"
	"sort"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

// UnknownName labels references to deleted participants.
const UnknownName = "Unknown"

// SplitDetail is a split joined with its participant.
type SplitDetail struct {
	core.ExpenseSplit
	Participant     *core.Participant `json:"participant"`
	ParticipantName string            `json:"participant_name"`
}

// ExpenseDetail is an expense joined with its payer and annotated splits.
type ExpenseDetail struct {
	core.SharedExpense
	Payer     *core.Participant `json:"payer"`
	PayerName string            `json:"payer_name"`
	Splits    []SplitDetail     `json:"splits"`
}

// Aggregator derives read models from the entity store and the personal
// ledger. Report summaries are cached per store version, so any mutation
// makes earlier entries unreachable.
type Aggregator struct {
	store     *store.Store
	txs       *store.TransactionStore
	members   *MembershipManager
	summaries *cache.Loader[core.ReportSummary]
}

// NewAggregator wires the read side. summaryCache may be nil to disable caching.
func NewAggregator(s *store.Store, txs *store.TransactionStore, members *MembershipManager, summaryCache cache.Cache[core.ReportSummary]) *Aggregator {
	a := &Aggregator{store: s, txs: txs, members: members}
	if summaryCache != nil {
		a.summaries = cache.NewLoader(summaryCache)
	}
	return a
}

// GroupMembersWithDetail lists a group's memberships with their participants.
func (a *Aggregator) GroupMembersWithDetail(groupID string) ([]MemberDetail, error) {
	return a.members.ListMembers(groupID)
}

// GroupExpensesWithDetail returns the group's expenses, most recent
// expense_date first. Expenses on the same date keep insertion order.
func (a *Aggregator) GroupExpensesWithDetail(groupID string) ([]ExpenseDetail, error) {
	if _, ok := a.store.Group(groupID); !ok {
		return nil, core.NewNotFound("group", groupID)
	}
	people := a.participantIndex()
	expenses := a.store.ExpensesOf(groupID)
	out := make([]ExpenseDetail, 0, len(expenses))
	for _, e := range expenses {
		d := ExpenseDetail{SharedExpense: e, PayerName: UnknownName, Splits: []SplitDetail{}}
		if p, ok := people[e.PaidBy]; ok {
			d.Payer = &p
			d.PayerName = p.Name
		}
		for _, sp := range a.store.SplitsOf(e.ID) {
			sd := SplitDetail{ExpenseSplit: sp, ParticipantName: UnknownName}
			if p, ok := people[sp.ParticipantID]; ok {
				sd.Participant = &p
				sd.ParticipantName = p.Name
			}
			d.Splits = append(d.Splits, sd)
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpenseDate.After(out[j].ExpenseDate.Time)
	})
	return out, nil
}

// Entries returns the flat entry set a filter applies to. Plain transactions
// carry no group or payer, so they are only included for unscoped filters.
func (a *Aggregator) Entries(f report.Filter) []report.Entry {
	entries := report.FromExpenses(a.store.Expenses())
	if !f.Scoped() && a.txs != nil {
		entries = append(entries, report.FromTransactions(a.txs.List())...)
	}
	return report.Apply(entries, f)
}

// ReportSummary totals income and expense over the filtered entries.
func (a *Aggregator) ReportSummary(f report.Filter) core.ReportSummary {
	compute := func() (core.ReportSummary, error) {
		return report.Summarize(a.Entries(f)), nil
	}
	if a.summaries == nil {
		s, _ := compute()
		return s
	}
	s, _ := a.summaries.Get(a.cacheKey(f), compute)
	return s
}

// Trends returns monthly spending and category breakdown over the filtered entries.
func (a *Aggregator) Trends(f report.Filter) core.Trends {
	return report.Trends(a.Entries(f))
}

// Balances reports outstanding debts within a group.
func (a *Aggregator) Balances(groupID string) (report.GroupBalances, error) {
	if _, ok := a.store.Group(groupID); !ok {
		return report.GroupBalances{}, core.NewNotFound("group", groupID)
	}
	names := make(map[string]string)
	for id, p := range a.participantIndex() {
		names[id] = p.Name
	}
	return report.Balances(groupID, a.store.ExpensesOf(groupID), a.store.Splits(), names), nil
}

func (a *Aggregator) participantIndex() map[string]core.Participant {
	ps := a.store.Participants()
	idx := make(map[string]core.Participant, len(ps))
	for _, p := range ps {
		idx[p.ID] = p
	}
	return idx
}

func (a *Aggregator) cacheKey(f report.Filter) string {
	var txVersion uint64
	if a.txs != nil {
		txVersion = a.txs.Version()
	}
	return fmt.Sprintf("%d:%d|%s|%s|%s|%s",
		a.store.Version(), txVersion, f.GroupID, f.ParticipantID, f.From, f.To)
}
