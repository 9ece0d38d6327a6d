package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) types() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store   *store.Store
	txs     *store.TransactionStore
	pub     *fakePublisher
	dir     *Directory
	members *MembershipManager
	ledger  *ExpenseLedger
	agg     *Aggregator
	tx      *TransactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.New()
	txs := store.NewTransactionStore()
	pub := &fakePublisher{}
	members := NewMembershipManager(s, pub)
	return &fixture{
		store:   s,
		txs:     txs,
		pub:     pub,
		dir:     NewDirectory(s, pub),
		members: members,
		ledger:  NewExpenseLedger(s, members, pub),
		agg:     NewAggregator(s, txs, members, cache.NewLRUCache[core.ReportSummary](10, time.Minute)),
		tx:      NewTransactionService(txs, pub),
	}
}

// trip creates group "Trip" with members A, B and C.
func (f *fixture) trip(t *testing.T) (core.ExpenseGroup, []core.Participant) {
	t.Helper()
	ctx := context.Background()
	g, err := f.dir.CreateGroup(ctx, core.ExpenseGroup{Name: "Trip"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	var ps []core.Participant
	for _, name := range []string{"A", "B", "C"} {
		p, err := f.dir.CreateParticipant(ctx, core.Participant{Name: name, Email: name + "@example.com"})
		if err != nil {
			t.Fatalf("create participant: %v", err)
		}
		if _, err := f.members.AddMember(ctx, g.ID, AddMemberRequest{ParticipantID: p.ID}); err != nil {
			t.Fatalf("add member: %v", err)
		}
		ps = append(ps, p)
	}
	return g, ps
}

func TestTripScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)
	a, b, c := ps[0], ps[1], ps[2]

	rec, err := f.ledger.Submit(ctx, core.ExpenseInput{
		GroupID:     g.ID,
		PaidBy:      a.ID,
		Amount:      90,
		Category:    "Travel",
		ExpenseDate: core.NewDate(2025, 4, 1),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := map[string]bool{a.ID: true, b.ID: false, c.ID: false}
	for _, sp := range rec.Splits {
		if sp.Amount != 30 || sp.Settled != want[sp.ParticipantID] {
			t.Fatalf("unexpected split %+v", sp)
		}
	}

	if _, err := f.ledger.SettleSplit(ctx, rec.ID, b.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	details, err := f.agg.GroupExpensesWithDetail(g.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(details) != 1 || len(details[0].Splits) != 3 {
		t.Fatalf("unexpected detail %+v", details)
	}
	settled := 0
	for _, sd := range details[0].Splits {
		if sd.Settled {
			settled++
			if sd.ParticipantID == c.ID {
				t.Fatalf("C must still owe")
			}
		}
	}
	if settled != 2 {
		t.Fatalf("settled = %d, want 2", settled)
	}
	if details[0].PayerName != "A" || details[0].Payer == nil {
		t.Fatalf("payer not resolved: %+v", details[0])
	}
}

func TestSettleSplitUnknownExpense(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.SettleSplit(context.Background(), "nope", "p")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestAddMemberRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)

	cases := []struct {
		name    string
		groupID string
		req     AddMemberRequest
		want    error
	}{
		{"unknown group", "missing", AddMemberRequest{ParticipantID: ps[0].ID}, core.ErrNotFound},
		{"unknown participant", g.ID, AddMemberRequest{ParticipantID: "ghost"}, core.ErrNotFound},
		{"duplicate", g.ID, AddMemberRequest{ParticipantID: ps[0].ID}, core.ErrConflict},
		{"bad role", g.ID, AddMemberRequest{ParticipantID: ps[0].ID, Role: "owner"}, core.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.members.AddMember(ctx, tc.groupID, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	other, _ := f.dir.CreateGroup(ctx, core.ExpenseGroup{Name: "Flat"})
	m, err := f.members.AddMember(ctx, other.ID, AddMemberRequest{
		ParticipantID: ps[0].ID,
		Role:          core.RoleAdmin,
		Permissions:   core.Permissions{CanAddExpense: true},
	})
	if err != nil {
		t.Fatalf("add to second group: %v", err)
	}
	if m.Role != core.RoleAdmin || !m.CanAddExpense || m.CanDeleteExpense {
		t.Fatalf("unexpected member %+v", m)
	}
}

func TestListMembersWithDeletedParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)
	f.dir.DeleteParticipant(ctx, ps[1].ID)

	got, err := f.members.ListMembers(g.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("members = %d, want 2", len(got))
	}
	for _, md := range got {
		if md.Participant == nil || md.Participant.ID != md.ParticipantID {
			t.Fatalf("participant not joined: %+v", md)
		}
	}
}

func TestDeletedPayerResolvesUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)
	_, err := f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[2].ID, Amount: 60, Category: "Food & Dining", ExpenseDate: core.NewDate(2025, 4, 2)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.dir.DeleteParticipant(ctx, ps[2].ID)

	details, _ := f.agg.GroupExpensesWithDetail(g.ID)
	if details[0].PayerName != UnknownName || details[0].Payer != nil {
		t.Fatalf("payer should be unknown: %+v", details[0])
	}
	unknown := 0
	for _, sd := range details[0].Splits {
		if sd.Participant == nil {
			unknown++
			if sd.ParticipantName != UnknownName {
				t.Fatalf("split name = %q", sd.ParticipantName)
			}
		}
	}
	if unknown != 1 {
		t.Fatalf("unknown splits = %d, want 1", unknown)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)

	_, err := f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, Amount: 10, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Fields["paid_by"] == "" {
		t.Fatalf("expected paid_by validation error, got %v", err)
	}

	_, err = f.ledger.Submit(ctx, core.ExpenseInput{GroupID: "missing", PaidBy: ps[0].ID, Amount: 10, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected group not found, got %v", err)
	}

	rec, err := f.ledger.Submit(ctx, core.ExpenseInput{
		GroupID:     g.ID,
		PaidBy:      ps[0].ID,
		Amount:      100,
		Category:    "Shopping",
		ExpenseDate: core.NewDate(2025, 1, 1),
		SplitType:   core.SplitCustom,
		Splits: []core.SplitShare{
			{ParticipantID: ps[0].ID, Amount: 70},
			{ParticipantID: ps[1].ID, Amount: 30},
			{ParticipantID: ps[2].ID, Amount: 0},
		},
	})
	if err != nil {
		t.Fatalf("custom submit: %v", err)
	}
	if len(rec.Splits) != 2 {
		t.Fatalf("zero share should be dropped, got %+v", rec.Splits)
	}

	outsider, err := f.dir.CreateParticipant(ctx, core.Participant{Name: "D", Email: "d@example.com"})
	if err != nil {
		t.Fatalf("create outsider: %v", err)
	}
	before := len(f.store.Expenses())

	_, err = f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: outsider.ID, Amount: 90, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)})
	if !errors.As(err, &ve) || ve.Fields["paid_by"] == "" {
		t.Fatalf("expected paid_by error for a payer outside the group, got %v", err)
	}

	_, err = f.ledger.Submit(ctx, core.ExpenseInput{
		GroupID:     g.ID,
		PaidBy:      ps[0].ID,
		Amount:      90,
		Category:    "x",
		ExpenseDate: core.NewDate(2025, 1, 1),
		SplitType:   core.SplitCustom,
		Splits:      []core.SplitShare{{ParticipantID: "ghost", Amount: 90}},
	})
	if !errors.As(err, &ve) || ve.Fields["splits"] == "" {
		t.Fatalf("expected splits error for an unknown split owner, got %v", err)
	}
	if got := len(f.store.Expenses()); got != before {
		t.Fatalf("rejected submits stored expenses: %d -> %d", before, got)
	}
}

func TestSubmitSettlesExactlyThePayerSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)

	rec, err := f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[1].ID, Amount: 90, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	settled := 0
	for _, sp := range rec.Splits {
		if sp.Settled {
			settled++
			if sp.ParticipantID != ps[1].ID {
				t.Errorf("settled split belongs to %s, want payer %s", sp.ParticipantID, ps[1].ID)
			}
		}
	}
	if settled != 1 {
		t.Fatalf("settled splits = %d, want 1", settled)
	}
}

func TestDeleteGroupPublishesAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)
	rec, _ := f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 9, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)})

	if !f.dir.DeleteGroup(ctx, g.ID) {
		t.Fatalf("delete failed")
	}
	if _, err := f.ledger.Expense(rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expense survived group delete")
	}
	if len(f.store.Splits()) != 0 {
		t.Fatalf("splits survived group delete")
	}
	types := f.pub.types()
	if types[len(types)-1] != amqp.EventGroupDeleted {
		t.Fatalf("last event = %s", types[len(types)-1])
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("circuit breaker is open")
	ctx := context.Background()
	g, ps := f.trip(t)
	if _, err := f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 9, Category: "x", ExpenseDate: core.NewDate(2025, 1, 1)}); err != nil {
		t.Fatalf("submit should succeed without the broker: %v", err)
	}
	if len(f.store.Expenses()) != 1 {
		t.Fatalf("expense not stored")
	}
}

func TestReportSummaryScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, ps := f.trip(t)
	f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 90, Category: "Travel", ExpenseDate: core.NewDate(2025, 1, 10)})
	f.ledger.Submit(ctx, core.ExpenseInput{GroupID: g.ID, PaidBy: ps[1].ID, Amount: 30, Category: "Travel", ExpenseDate: core.NewDate(2025, 1, 11)})
	f.tx.Create(ctx, core.Transaction{Amount: 2500, Date: core.NewDate(2025, 1, 1), Category: "Salary", Type: core.Income})

	if got := f.agg.ReportSummary(report.Filter{GroupID: g.ID}); got.TotalExpense != 120 || got.TotalIncome != 0 {
		t.Fatalf("group summary = %+v", got)
	}
	if got := f.agg.ReportSummary(report.Filter{ParticipantID: ps[1].ID}); got.TotalExpense != 30 {
		t.Fatalf("payer summary = %+v", got)
	}
	all := f.agg.ReportSummary(report.Filter{})
	if all != (core.ReportSummary{TotalIncome: 2500, TotalExpense: 120, Balance: 2380}) {
		t.Fatalf("unscoped summary = %+v", all)
	}

	// A new write must be visible despite the cached summary.
	f.tx.Create(ctx, core.Transaction{Amount: 80, Date: core.NewDate(2025, 1, 2), Category: "Gift", Type: core.Expense})
	if got := f.agg.ReportSummary(report.Filter{}); got.TotalExpense != 200 {
		t.Fatalf("stale summary %+v", got)
	}
}

func TestBalancesUnknownGroup(t *testing.T) {
	f := newFixture(t)
	if _, err := f.agg.Balances("nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestTransactionImportAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.tx.Create(ctx, core.Transaction{ID: "1", Amount: 50, Date: core.NewDate(2025, 4, 3), Category: "Transportation", Description: "Gas", Type: core.Expense}); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := f.tx.Import(ctx, []core.PaymentTransaction{
		{TransactionID: "p1", Amount: 500, Date: core.NewDate(2025, 4, 10), Type: "credit", Category: "Gift", Description: "Refund"},
		{TransactionID: "p2", Amount: 50, Date: core.NewDate(2025, 4, 3), Type: "debit", Category: "Transportation", Description: "Gas"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res != (ImportResult{Imported: 1, Skipped: 1}) {
		t.Fatalf("result = %+v", res)
	}

	var buf bytes.Buffer
	if err := f.tx.ExportCSV(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1][0] != "p1" || rows[1][2] != "income" || rows[1][5] != "500.00" {
		t.Fatalf("first row = %v", rows[1])
	}
}

func TestTransactionImportRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.tx.Import(context.Background(), []core.PaymentTransaction{{TransactionID: "bad", Amount: -3, Type: "debit"}})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if len(f.tx.List()) != 0 {
		t.Fatalf("nothing should be imported")
	}
}
