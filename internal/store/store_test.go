package store

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestStore(t *testing.T) (*Store, *[][]string) {
	t.Helper()
	n := 0
	var mu sync.Mutex
	var calls [][]string
	s := New(
		WithClock(func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		WithChangeHook(func(keys []string) {
			mu.Lock()
			calls = append(calls, keys)
			mu.Unlock()
		}),
	)
	return s, &calls
}

func seedTrip(t *testing.T, s *Store) (core.ExpenseGroup, []core.Participant) {
	t.Helper()
	g := s.CreateGroup(core.ExpenseGroup{Name: "Trip"})
	var ps []core.Participant
	for _, name := range []string{"A", "B", "C"} {
		p := s.CreateParticipant(core.Participant{Name: name, Email: name + "@x.io"})
		s.CreateMember(core.GroupMember{GroupID: g.ID, ParticipantID: p.ID, Role: core.RoleMember})
		ps = append(ps, p)
	}
	return g, ps
}

func TestCreateAssignsIdentityAndTimestamps(t *testing.T) {
	s, calls := newTestStore(t)
	p := s.CreateParticipant(core.Participant{Name: "Asha", Email: "asha@x.io"})
	if p.ID == "" || p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("unexpected participant: %+v", p)
	}
	q := s.CreateParticipant(core.Participant{Name: "Ben", Email: "ben@x.io"})
	if q.ID == p.ID {
		t.Fatalf("ids must be unique")
	}
	if len(*calls) != 2 || (*calls)[0][0] != KeyParticipants {
		t.Fatalf("unexpected hook calls: %v", *calls)
	}
}

func TestUpdateUnknownIsNoop(t *testing.T) {
	s, calls := newTestStore(t)
	name := "x"
	if _, ok := s.UpdateParticipant("missing", core.ParticipantPatch{Name: &name}); ok {
		t.Fatalf("expected no-op")
	}
	if _, ok := s.UpdateGroup("missing", core.GroupPatch{Name: &name}); ok {
		t.Fatalf("expected no-op")
	}
	if s.DeleteExpense("missing") || s.DeleteMember("missing") || s.DeleteGroup("missing") {
		t.Fatalf("deletes of unknown ids must report false")
	}
	if len(*calls) != 0 {
		t.Fatalf("no-ops must not notify, got %v", *calls)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	var now time.Time
	s := New(WithClock(func() time.Time { return now }))
	now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := s.CreateParticipant(core.Participant{Name: "Asha", Email: "asha@x.io", Mobile: "123"})

	now = now.Add(time.Hour)
	name := "Asha K"
	got, ok := s.UpdateParticipant(p.ID, core.ParticipantPatch{Name: &name})
	if !ok {
		t.Fatalf("update failed")
	}
	if got.Name != "Asha K" || got.Mobile != "123" || got.Email != "asha@x.io" {
		t.Fatalf("merge lost fields: %+v", got)
	}
	if !got.UpdatedAt.Equal(now) || got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: %+v", got)
	}
}

func TestCreateExpenseStampsSplits(t *testing.T) {
	s, _ := newTestStore(t)
	g, ps := seedTrip(t, s)
	shares := core.EqualSplit(90, []string{ps[0].ID, ps[1].ID, ps[2].ID}, ps[0].ID)
	e, splits := s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 90, Category: "Travel", Type: core.Expense}, shares)

	if len(splits) != 3 {
		t.Fatalf("got %d splits", len(splits))
	}
	seen := map[string]bool{}
	for _, sp := range splits {
		if sp.ExpenseID != e.ID {
			t.Fatalf("split %s points at %s, want %s", sp.ID, sp.ExpenseID, e.ID)
		}
		if seen[sp.ID] || sp.ID == e.ID {
			t.Fatalf("split id %s is not unique", sp.ID)
		}
		seen[sp.ID] = true
	}
	if !splits[0].Settled || splits[0].SettledAt == nil {
		t.Fatalf("payer split should be settled: %+v", splits[0])
	}
	if len(s.SplitsOf(e.ID)) != 3 {
		t.Fatalf("splits not stored")
	}
}

func TestSettleSplitsIsIdempotent(t *testing.T) {
	s, calls := newTestStore(t)
	g, ps := seedTrip(t, s)
	shares := core.EqualSplit(90, []string{ps[0].ID, ps[1].ID, ps[2].ID}, ps[0].ID)
	e, _ := s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 90}, shares)

	if _, ok := s.SettleSplits("missing", ps[1].ID); ok {
		t.Fatalf("expected unknown expense to report false")
	}

	first, ok := s.SettleSplits(e.ID, ps[1].ID)
	if !ok || len(first) != 1 || !first[0].Settled {
		t.Fatalf("settle failed: %+v", first)
	}
	before := s.Snapshot()
	hooks := len(*calls)

	second, _ := s.SettleSplits(e.ID, ps[1].ID)
	after := s.Snapshot()
	if !second[0].SettledAt.Equal(*first[0].SettledAt) {
		t.Fatalf("settled_at changed on repeat")
	}
	if len(*calls) != hooks {
		t.Fatalf("repeat settle should not notify")
	}
	for i := range before.Splits {
		if before.Splits[i].Settled != after.Splits[i].Settled {
			t.Fatalf("state changed on repeat settle")
		}
	}

	settled := 0
	for _, sp := range s.SplitsOf(e.ID) {
		if sp.Settled {
			settled++
		}
	}
	if settled != 2 {
		t.Fatalf("settled = %d, want 2", settled)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	s, _ := newTestStore(t)
	g, ps := seedTrip(t, s)
	other := s.CreateGroup(core.ExpenseGroup{Name: "Flat"})
	s.CreateMember(core.GroupMember{GroupID: other.ID, ParticipantID: ps[0].ID})
	ids := []string{ps[0].ID, ps[1].ID, ps[2].ID}
	s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 90}, core.EqualSplit(90, ids, ps[0].ID))
	s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[1].ID, Amount: 30}, core.EqualSplit(30, ids, ps[1].ID))
	keep, _ := s.CreateExpense(core.SharedExpense{GroupID: other.ID, PaidBy: ps[0].ID, Amount: 10}, core.EqualSplit(10, ids[:1], ps[0].ID))

	if !s.DeleteGroup(g.ID) {
		t.Fatalf("delete failed")
	}
	if len(s.MembersOf(g.ID)) != 0 || len(s.ExpensesOf(g.ID)) != 0 {
		t.Fatalf("memberships or expenses survived")
	}
	expenses := map[string]bool{}
	for _, e := range s.Expenses() {
		expenses[e.ID] = true
	}
	for _, sp := range s.Splits() {
		if !expenses[sp.ExpenseID] {
			t.Fatalf("dangling split %+v", sp)
		}
	}
	if len(s.SplitsOf(keep.ID)) != 1 || len(s.MembersOf(other.ID)) != 1 {
		t.Fatalf("other group was touched")
	}
}

func TestDeleteParticipantKeepsHistory(t *testing.T) {
	s, _ := newTestStore(t)
	g, ps := seedTrip(t, s)
	ids := []string{ps[0].ID, ps[1].ID, ps[2].ID}
	e, _ := s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[1].ID, Amount: 90}, core.EqualSplit(90, ids, ps[1].ID))

	if !s.DeleteParticipant(ps[1].ID) {
		t.Fatalf("delete failed")
	}
	if _, ok := s.FindMember(g.ID, ps[1].ID); ok {
		t.Fatalf("membership survived")
	}
	if len(s.MembersOf(g.ID)) != 2 {
		t.Fatalf("other memberships removed")
	}
	got, ok := s.Expense(e.ID)
	if !ok || got.PaidBy != ps[1].ID {
		t.Fatalf("expense must keep dangling payer reference")
	}
	if !slices.ContainsFunc(s.SplitsOf(e.ID), func(sp core.ExpenseSplit) bool { return sp.ParticipantID == ps[1].ID }) {
		t.Fatalf("split of deleted participant removed")
	}
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	g, ps := seedTrip(t, s)
	s.CreateExpense(core.SharedExpense{GroupID: g.ID, PaidBy: ps[0].ID, Amount: 90, ExpenseDate: core.NewDate(2025, 4, 1)},
		core.EqualSplit(90, []string{ps[0].ID, ps[1].ID}, ps[0].ID))

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != len(EntityKeys) {
		t.Fatalf("encoded %d keys", len(data))
	}

	restored := New()
	if err := restored.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	a, b := s.Snapshot(), restored.Snapshot()
	if len(a.Participants) != len(b.Participants) || len(a.Members) != len(b.Members) || len(a.Splits) != len(b.Splits) {
		t.Fatalf("collection sizes differ: %+v vs %+v", a, b)
	}
	if b.Expenses[0].ExpenseDate.String() != "2025-04-01" {
		t.Fatalf("expense date lost: %v", b.Expenses[0].ExpenseDate)
	}
}

func TestEncodeEmptyCollectionsAsArrays(t *testing.T) {
	data, err := New().Encode(KeySplits)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data[KeySplits]) != "[]" {
		t.Fatalf("empty splits encoded as %s", data[KeySplits])
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := New()
	g := s.CreateGroup(core.ExpenseGroup{Name: "G"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := s.CreateParticipant(core.Participant{Name: "p"})
			s.CreateMember(core.GroupMember{GroupID: g.ID, ParticipantID: p.ID})
		}()
	}
	wg.Wait()
	if len(s.MembersOf(g.ID)) != 20 {
		t.Fatalf("lost writes: %d members", len(s.MembersOf(g.ID)))
	}
}
