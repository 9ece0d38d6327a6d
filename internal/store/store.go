// Package store holds the in-process entity collections of the expense
// manager and the personal transaction ledger.
//
// A Store is constructed once per process (or per test) and injected into the
// services that need it. Every mutation is a single step under the store lock;
// update and delete of an unknown id are silent no-ops reported as false.
// After a mutation commits, the change hook receives the persisted layout keys
// that were touched so that a durable backend can rewrite them.
package store

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// ChangeFunc is notified with the layout keys touched by a mutation. It runs
// after the store lock is released.
type ChangeFunc func(keys []string)

// Option configures a Store or TransactionStore.
type Option func(*options)

type options struct {
	now      func() time.Time
	newID    func() string
	onChange ChangeFunc
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(f func() string) Option {
	return func(o *options) { o.newID = f }
}

// WithChangeHook registers the mutation observer.
func WithChangeHook(f ChangeFunc) Option {
	return func(o *options) { o.onChange = f }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the Entity Store for participants, groups, memberships, shared
// expenses and their splits.
type Store struct {
	mu           sync.RWMutex
	participants []core.Participant
	groups       []core.ExpenseGroup
	members      []core.GroupMember
	expenses     []core.SharedExpense
	splits       []core.ExpenseSplit

	opts    options
	hookMu  sync.RWMutex
	version atomic.Uint64
}

func New(opts ...Option) *Store {
	return &Store{opts: buildOptions(opts)}
}

// OnChange replaces the mutation observer.
func (s *Store) OnChange(f ChangeFunc) {
	s.hookMu.Lock()
	s.opts.onChange = f
	s.hookMu.Unlock()
}

// Version increases on every committed mutation.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) changed(keys ...string) {
	s.version.Add(1)
	s.hookMu.RLock()
	hook := s.opts.onChange
	s.hookMu.RUnlock()
	if hook != nil {
		hook(keys)
	}
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i := range items {
		if match(items[i]) {
			return i
		}
	}
	return -1
}

// Participants

func (s *Store) CreateParticipant(p core.Participant) core.Participant {
	now := s.opts.now()
	s.mu.Lock()
	p.ID = s.opts.newID()
	p.CreatedAt, p.UpdatedAt = now, now
	s.participants = append(s.participants, p)
	s.mu.Unlock()
	s.changed(KeyParticipants)
	return p
}

func (s *Store) UpdateParticipant(id string, patch core.ParticipantPatch) (core.Participant, bool) {
	s.mu.Lock()
	i := indexOf(s.participants, func(p core.Participant) bool { return p.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.Participant{}, false
	}
	patch.Apply(&s.participants[i])
	s.participants[i].UpdatedAt = s.opts.now()
	out := s.participants[i]
	s.mu.Unlock()
	s.changed(KeyParticipants)
	return out, true
}

// DeleteParticipant removes the participant and every membership it holds.
// Expenses and splits referencing the participant are left in place.
func (s *Store) DeleteParticipant(id string) bool {
	s.mu.Lock()
	i := indexOf(s.participants, func(p core.Participant) bool { return p.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.participants = slices.Delete(s.participants, i, i+1)
	s.members = slices.DeleteFunc(s.members, func(m core.GroupMember) bool { return m.ParticipantID == id })
	s.mu.Unlock()
	s.changed(KeyParticipants, KeyMembers)
	return true
}

func (s *Store) Participant(id string) (core.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.participants, func(p core.Participant) bool { return p.ID == id })
	if i < 0 {
		return core.Participant{}, false
	}
	return s.participants[i], true
}

func (s *Store) Participants() []core.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.participants)
}

// Groups

func (s *Store) CreateGroup(g core.ExpenseGroup) core.ExpenseGroup {
	now := s.opts.now()
	s.mu.Lock()
	g.ID = s.opts.newID()
	g.CreatedAt, g.UpdatedAt = now, now
	s.groups = append(s.groups, g)
	s.mu.Unlock()
	s.changed(KeyGroups)
	return g
}

func (s *Store) UpdateGroup(id string, patch core.GroupPatch) (core.ExpenseGroup, bool) {
	s.mu.Lock()
	i := indexOf(s.groups, func(g core.ExpenseGroup) bool { return g.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.ExpenseGroup{}, false
	}
	patch.Apply(&s.groups[i])
	s.groups[i].UpdatedAt = s.opts.now()
	out := s.groups[i]
	s.mu.Unlock()
	s.changed(KeyGroups)
	return out, true
}

// DeleteGroup removes the group, its memberships, its expenses and every
// split of those expenses.
func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	i := indexOf(s.groups, func(g core.ExpenseGroup) bool { return g.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.groups = slices.Delete(s.groups, i, i+1)
	s.members = slices.DeleteFunc(s.members, func(m core.GroupMember) bool { return m.GroupID == id })
	removed := make(map[string]struct{})
	s.expenses = slices.DeleteFunc(s.expenses, func(e core.SharedExpense) bool {
		if e.GroupID == id {
			removed[e.ID] = struct{}{}
			return true
		}
		return false
	})
	s.splits = slices.DeleteFunc(s.splits, func(sp core.ExpenseSplit) bool {
		_, gone := removed[sp.ExpenseID]
		return gone
	})
	s.mu.Unlock()
	s.changed(KeyGroups, KeyMembers, KeyExpenses, KeySplits)
	return true
}

func (s *Store) Group(id string) (core.ExpenseGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.groups, func(g core.ExpenseGroup) bool { return g.ID == id })
	if i < 0 {
		return core.ExpenseGroup{}, false
	}
	return s.groups[i], true
}

func (s *Store) Groups() []core.ExpenseGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.groups)
}

// Memberships

// CreateMember appends a membership row. JoinedAt defaults to now. The store
// does not check the (group, participant) pair for duplicates.
func (s *Store) CreateMember(m core.GroupMember) core.GroupMember {
	now := s.opts.now()
	s.mu.Lock()
	m.ID = s.opts.newID()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	s.members = append(s.members, m)
	s.mu.Unlock()
	s.changed(KeyMembers)
	return m
}

func (s *Store) UpdateMember(id string, patch core.MemberPatch) (core.GroupMember, bool) {
	s.mu.Lock()
	i := indexOf(s.members, func(m core.GroupMember) bool { return m.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.GroupMember{}, false
	}
	patch.Apply(&s.members[i])
	out := s.members[i]
	s.mu.Unlock()
	s.changed(KeyMembers)
	return out, true
}

// DeleteMember removes one membership row. Past expenses and splits are kept.
func (s *Store) DeleteMember(id string) bool {
	s.mu.Lock()
	i := indexOf(s.members, func(m core.GroupMember) bool { return m.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.members = slices.Delete(s.members, i, i+1)
	s.mu.Unlock()
	s.changed(KeyMembers)
	return true
}

func (s *Store) Member(id string) (core.GroupMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.members, func(m core.GroupMember) bool { return m.ID == id })
	if i < 0 {
		return core.GroupMember{}, false
	}
	return s.members[i], true
}

// FindMember returns the first membership of participantID in groupID.
func (s *Store) FindMember(groupID, participantID string) (core.GroupMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.members, func(m core.GroupMember) bool {
		return m.GroupID == groupID && m.ParticipantID == participantID
	})
	if i < 0 {
		return core.GroupMember{}, false
	}
	return s.members[i], true
}

// MembersOf returns the memberships of a group in insertion order.
func (s *Store) MembersOf(groupID string) []core.GroupMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.GroupMember
	for _, m := range s.members {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Members() []core.GroupMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.members)
}

// Expenses and splits

// CreateExpense stores e and one split per share in a single step. The split
// rows get fresh ids and carry the new expense id.
func (s *Store) CreateExpense(e core.SharedExpense, shares []core.SplitShare) (core.SharedExpense, []core.ExpenseSplit) {
	now := s.opts.now()
	s.mu.Lock()
	e.ID = s.opts.newID()
	e.CreatedAt, e.UpdatedAt = now, now
	splits := make([]core.ExpenseSplit, 0, len(shares))
	for _, sh := range shares {
		sp := core.ExpenseSplit{
			ID:            s.opts.newID(),
			ExpenseID:     e.ID,
			ParticipantID: sh.ParticipantID,
			Amount:        sh.Amount,
			Settled:       sh.Settled,
		}
		if sh.Settled {
			at := now
			sp.SettledAt = &at
		}
		splits = append(splits, sp)
	}
	s.expenses = append(s.expenses, e)
	s.splits = append(s.splits, splits...)
	s.mu.Unlock()
	s.changed(KeyExpenses, KeySplits)
	return e, slices.Clone(splits)
}

// UpdateExpense merges patch into the expense. Splits are not regenerated.
func (s *Store) UpdateExpense(id string, patch core.ExpensePatch) (core.SharedExpense, bool) {
	s.mu.Lock()
	i := indexOf(s.expenses, func(e core.SharedExpense) bool { return e.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.SharedExpense{}, false
	}
	patch.Apply(&s.expenses[i])
	s.expenses[i].UpdatedAt = s.opts.now()
	out := s.expenses[i]
	s.mu.Unlock()
	s.changed(KeyExpenses)
	return out, true
}

// DeleteExpense removes the expense and all of its splits.
func (s *Store) DeleteExpense(id string) bool {
	s.mu.Lock()
	i := indexOf(s.expenses, func(e core.SharedExpense) bool { return e.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.expenses = slices.Delete(s.expenses, i, i+1)
	s.splits = slices.DeleteFunc(s.splits, func(sp core.ExpenseSplit) bool { return sp.ExpenseID == id })
	s.mu.Unlock()
	s.changed(KeyExpenses, KeySplits)
	return true
}

func (s *Store) Expense(id string) (core.SharedExpense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.expenses, func(e core.SharedExpense) bool { return e.ID == id })
	if i < 0 {
		return core.SharedExpense{}, false
	}
	return s.expenses[i], true
}

func (s *Store) Expenses() []core.SharedExpense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.expenses)
}

// ExpensesOf returns a group's expenses in insertion order.
func (s *Store) ExpensesOf(groupID string) []core.SharedExpense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.SharedExpense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) SplitsOf(expenseID string) []core.ExpenseSplit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ExpenseSplit
	for _, sp := range s.splits {
		if sp.ExpenseID == expenseID {
			out = append(out, sp)
		}
	}
	return out
}

func (s *Store) Splits() []core.ExpenseSplit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.splits)
}

func (s *Store) Split(id string) (core.ExpenseSplit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.splits, func(sp core.ExpenseSplit) bool { return sp.ID == id })
	if i < 0 {
		return core.ExpenseSplit{}, false
	}
	return s.splits[i], true
}

func (s *Store) UpdateSplit(id string, patch core.SplitPatch) (core.ExpenseSplit, bool) {
	now := s.opts.now()
	s.mu.Lock()
	i := indexOf(s.splits, func(sp core.ExpenseSplit) bool { return sp.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return core.ExpenseSplit{}, false
	}
	patch.Apply(&s.splits[i], now)
	out := s.splits[i]
	s.mu.Unlock()
	s.changed(KeySplits)
	return out, true
}

// SettleSplits marks every split of (expenseID, participantID) as settled and
// returns the matching rows. Splits that are already settled keep their
// original settled_at, so repeating the call changes nothing. ok is false
// when the expense does not exist.
func (s *Store) SettleSplits(expenseID, participantID string) (matched []core.ExpenseSplit, ok bool) {
	now := s.opts.now()
	s.mu.Lock()
	if indexOf(s.expenses, func(e core.SharedExpense) bool { return e.ID == expenseID }) < 0 {
		s.mu.Unlock()
		return nil, false
	}
	dirty := false
	for i := range s.splits {
		sp := &s.splits[i]
		if sp.ExpenseID != expenseID || sp.ParticipantID != participantID {
			continue
		}
		if !sp.Settled {
			sp.Settled = true
			at := now
			sp.SettledAt = &at
			dirty = true
		}
		matched = append(matched, *sp)
	}
	s.mu.Unlock()
	if dirty {
		s.changed(KeySplits)
	}
	return matched, true
}
