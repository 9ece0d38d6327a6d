package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"fintrack/internal/core"
)

// Persisted layout keys. Each key holds a JSON array mirroring one collection.
const (
	KeyParticipants = "expenseManager_participants"
	KeyGroups       = "expenseManager_groups"
	KeyMembers      = "expenseManager_groupMembers"
	KeyExpenses     = "expenseManager_expenses"
	KeySplits       = "expenseManager_splits"
	KeyTransactions = "transactions"
)

// EntityKeys lists the keys owned by Store, in load order.
var EntityKeys = []string{KeyParticipants, KeyGroups, KeyMembers, KeyExpenses, KeySplits}

// Snapshot is a point-in-time copy of every entity collection.
type Snapshot struct {
	Participants []core.Participant
	Groups       []core.ExpenseGroup
	Members      []core.GroupMember
	Expenses     []core.SharedExpense
	Splits       []core.ExpenseSplit
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Participants: slices.Clone(s.participants),
		Groups:       slices.Clone(s.groups),
		Members:      slices.Clone(s.members),
		Expenses:     slices.Clone(s.expenses),
		Splits:       slices.Clone(s.splits),
	}
}

// Restore replaces every collection with the snapshot. The change hook is
// not called.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	s.participants = slices.Clone(snap.Participants)
	s.groups = slices.Clone(snap.Groups)
	s.members = slices.Clone(snap.Members)
	s.expenses = slices.Clone(snap.Expenses)
	s.splits = slices.Clone(snap.Splits)
	s.mu.Unlock()
	s.version.Add(1)
}

// Encode serializes the requested collections. Unknown keys are ignored.
// With no keys, every entity collection is encoded.
func (s *Store) Encode(keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		keys = EntityKeys
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		var v any
		switch k {
		case KeyParticipants:
			v = nonNil(s.participants)
		case KeyGroups:
			v = nonNil(s.groups)
		case KeyMembers:
			v = nonNil(s.members)
		case KeyExpenses:
			v = nonNil(s.expenses)
		case KeySplits:
			v = nonNil(s.splits)
		default:
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

// Load decodes persisted collections and restores them. Missing keys load as
// empty collections.
func (s *Store) Load(data map[string][]byte) error {
	var snap Snapshot
	targets := map[string]any{
		KeyParticipants: &snap.Participants,
		KeyGroups:       &snap.Groups,
		KeyMembers:      &snap.Members,
		KeyExpenses:     &snap.Expenses,
		KeySplits:       &snap.Splits,
	}
	for k, dst := range targets {
		raw, ok := data[k]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	s.Restore(snap)
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
