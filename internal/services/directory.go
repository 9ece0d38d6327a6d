package services

import (
	"context"
	"log/slog"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Directory manages participants and groups.
type Directory struct {
	store     *store.Store
	publisher EventPublisher
}

func NewDirectory(s *store.Store, p EventPublisher) *Directory {
	return &Directory{store: s, publisher: p}
}

func (d *Directory) CreateParticipant(ctx context.Context, p core.Participant) (core.Participant, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Mobile = strings.TrimSpace(p.Mobile)
	if err := p.Validate(); err != nil {
		return core.Participant{}, err
	}
	created := d.store.CreateParticipant(p)
	slog.InfoContext(ctx, "Participant created", "participant_id", created.ID)
	return created, nil
}

// UpdateParticipant returns false when id is unknown.
func (d *Directory) UpdateParticipant(ctx context.Context, id string, patch core.ParticipantPatch) (core.Participant, bool, error) {
	current, ok := d.store.Participant(id)
	if !ok {
		return core.Participant{}, false, nil
	}
	patch.Apply(&current)
	if err := current.Validate(); err != nil {
		return core.Participant{}, true, err
	}
	updated, ok := d.store.UpdateParticipant(id, patch)
	return updated, ok, nil
}

// DeleteParticipant removes the participant and its memberships.
func (d *Directory) DeleteParticipant(ctx context.Context, id string) bool {
	if !d.store.DeleteParticipant(id) {
		return false
	}
	slog.InfoContext(ctx, "Participant deleted", "participant_id", id)
	publish(ctx, d.publisher, amqp.NewLedgerEvent(amqp.EventParticipantDeleted, id))
	return true
}

func (d *Directory) Participant(id string) (core.Participant, error) {
	p, ok := d.store.Participant(id)
	if !ok {
		return core.Participant{}, core.NewNotFound("participant", id)
	}
	return p, nil
}

func (d *Directory) Participants() []core.Participant {
	return d.store.Participants()
}

func (d *Directory) CreateGroup(ctx context.Context, g core.ExpenseGroup) (core.ExpenseGroup, error) {
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	if err := g.Validate(); err != nil {
		return core.ExpenseGroup{}, err
	}
	created := d.store.CreateGroup(g)
	slog.InfoContext(ctx, "Group created", "group_id", created.ID)
	return created, nil
}

func (d *Directory) UpdateGroup(ctx context.Context, id string, patch core.GroupPatch) (core.ExpenseGroup, bool, error) {
	current, ok := d.store.Group(id)
	if !ok {
		return core.ExpenseGroup{}, false, nil
	}
	patch.Apply(&current)
	if err := current.Validate(); err != nil {
		return core.ExpenseGroup{}, true, err
	}
	updated, ok := d.store.UpdateGroup(id, patch)
	return updated, ok, nil
}

// DeleteGroup removes the group with its memberships, expenses and splits.
func (d *Directory) DeleteGroup(ctx context.Context, id string) bool {
	if !d.store.DeleteGroup(id) {
		return false
	}
	slog.InfoContext(ctx, "Group deleted", "group_id", id)
	ev := amqp.NewLedgerEvent(amqp.EventGroupDeleted, id)
	ev.GroupID = id
	publish(ctx, d.publisher, ev)
	return true
}

func (d *Directory) Group(id string) (core.ExpenseGroup, error) {
	g, ok := d.store.Group(id)
	if !ok {
		return core.ExpenseGroup{}, core.NewNotFound("group", id)
	}
	return g, nil
}

func (d *Directory) Groups() []core.ExpenseGroup {
	return d.store.Groups()
}
