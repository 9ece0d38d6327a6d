package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type participantRequest struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Mobile      string     `json:"mobile"`
	DateOfBirth *core.Date `json:"date_of_birth"`
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.deps.Directory.Participants()))
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Directory.CreateParticipant(r.Context(), core.Participant{
		Name:        sanitizeInput(req.Name),
		Email:       sanitizeInput(req.Email),
		Mobile:      sanitizeInput(req.Mobile),
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Directory.Participant(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch core.ParticipantPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, ok, err := s.deps.Directory.UpdateParticipant(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("participant", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Directory.DeleteParticipant(r.Context(), id) {
		writeError(w, r, core.NewNotFound("participant", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.deps.Directory.Groups()))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Directory.CreateGroup(r.Context(), core.ExpenseGroup{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Directory.Group(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch core.GroupPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	g, ok, err := s.deps.Directory.UpdateGroup(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("group", id))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Directory.DeleteGroup(r.Context(), id) {
		writeError(w, r, core.NewNotFound("group", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.deps.Aggregator.GroupMembersWithDetail(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(members))
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req services.AddMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.ParticipantID = sanitizeInput(req.ParticipantID)
	m, err := s.deps.Members.AddMember(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch core.MemberPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	m, ok, err := s.deps.Members.UpdateMember(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, core.NewNotFound("member", id))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Members.RemoveMember(r.Context(), id) {
		writeError(w, r, core.NewNotFound("member", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
