package services

import (
	"context"
	"log/slog"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// MemberDetail is a membership joined with its participant. Participant is
// nil when the participant no longer exists.
type MemberDetail struct {
	core.GroupMember
	Participant *core.Participant `json:"participant"`
}

// AddMemberRequest carries the role and permissions of a new membership.
type AddMemberRequest struct {
	ParticipantID string    `json:"participant_id"`
	Role          core.Role `json:"role"`
	core.Permissions
}

// MembershipManager adds and removes participants from groups. A
// participant holds at most one membership per group.
type MembershipManager struct {
	store     *store.Store
	publisher EventPublisher
	mu        sync.Mutex
}

func NewMembershipManager(s *store.Store, p EventPublisher) *MembershipManager {
	return &MembershipManager{store: s, publisher: p}
}

// AddMember fails with NotFoundError for an unknown group or participant and
// with ConflictError when the participant already belongs to the group. An
// empty role defaults to member.
func (m *MembershipManager) AddMember(ctx context.Context, groupID string, req AddMemberRequest) (core.GroupMember, error) {
	if req.Role == "" {
		req.Role = core.RoleMember
	}
	if !req.Role.IsValid() {
		v := core.NewValidationError()
		v.Add("role", "role must be admin or member")
		return core.GroupMember{}, v
	}
	if _, ok := m.store.Group(groupID); !ok {
		return core.GroupMember{}, core.NewNotFound("group", groupID)
	}
	if _, ok := m.store.Participant(req.ParticipantID); !ok {
		return core.GroupMember{}, core.NewNotFound("participant", req.ParticipantID)
	}

	m.mu.Lock()
	if _, exists := m.store.FindMember(groupID, req.ParticipantID); exists {
		m.mu.Unlock()
		return core.GroupMember{}, &core.ConflictError{Entity: "member", Reason: "participant is already a member of the group"}
	}
	member := m.store.CreateMember(core.GroupMember{
		GroupID:       groupID,
		ParticipantID: req.ParticipantID,
		Role:          req.Role,
		Permissions:   req.Permissions,
	})
	m.mu.Unlock()

	slog.InfoContext(ctx, "Member added",
		"group_id", groupID,
		"participant_id", req.ParticipantID,
		"role", req.Role)

	ev := amqp.NewLedgerEvent(amqp.EventMemberAdded, member.ID)
	ev.GroupID = groupID
	ev.ParticipantID = req.ParticipantID
	publish(ctx, m.publisher, ev)
	return member, nil
}

// UpdateMember merges role and permission flags. An unknown id reports false.
func (m *MembershipManager) UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.GroupMember, bool, error) {
	if err := patch.Validate(); err != nil {
		return core.GroupMember{}, false, err
	}
	updated, ok := m.store.UpdateMember(id, patch)
	return updated, ok, nil
}

// RemoveMember deletes the membership row. Past expenses and splits are kept.
func (m *MembershipManager) RemoveMember(ctx context.Context, id string) bool {
	member, ok := m.store.Member(id)
	if !ok || !m.store.DeleteMember(id) {
		return false
	}
	ev := amqp.NewLedgerEvent(amqp.EventMemberRemoved, id)
	ev.GroupID = member.GroupID
	ev.ParticipantID = member.ParticipantID
	publish(ctx, m.publisher, ev)
	return true
}

// ListMembers returns the group's memberships joined with their participants.
func (m *MembershipManager) ListMembers(groupID string) ([]MemberDetail, error) {
	if _, ok := m.store.Group(groupID); !ok {
		return nil, core.NewNotFound("group", groupID)
	}
	members := m.store.MembersOf(groupID)
	out := make([]MemberDetail, 0, len(members))
	for _, gm := range members {
		d := MemberDetail{GroupMember: gm}
		if p, ok := m.store.Participant(gm.ParticipantID); ok {
			d.Participant = &p
		}
		out = append(out, d)
	}
	return out, nil
}

// MemberIDs returns the participant ids of a group's current members.
func (m *MembershipManager) MemberIDs(groupID string) []string {
	members := m.store.MembersOf(groupID)
	ids := make([]string, 0, len(members))
	for _, gm := range members {
		ids = append(ids, gm.ParticipantID)
	}
	return ids
}
