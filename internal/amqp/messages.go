package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger mutation.
type EventType string

const (
	EventExpenseRecorded    EventType = "expense.recorded"
	EventExpenseUpdated     EventType = "expense.updated"
	EventExpenseDeleted     EventType = "expense.deleted"
	EventSplitSettled       EventType = "split.settled"
	EventMemberAdded        EventType = "member.added"
	EventMemberRemoved      EventType = "member.removed"
	EventGroupDeleted       EventType = "group.deleted"
	EventParticipantDeleted EventType = "participant.deleted"
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// LedgerEvent describes one committed mutation. It carries enough data for
// the worker to write an activity row and a spreadsheet line without reading
// the server's store.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	EntityID      string    `json:"entity_id"`
	GroupID       string    `json:"group_id,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Category      string    `json:"category,omitempty"`
	Description   string    `json:"description,omitempty"`
	Date          string    `json:"date,omitempty"` // YYYY-MM-DD
	Kind          string    `json:"kind,omitempty"` // income | expense
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(t EventType, entityID string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
