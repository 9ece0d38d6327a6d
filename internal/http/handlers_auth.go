package http

import (
	"errors"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Auth.Register(r.Context(), sanitizeInput(req.Email), sanitizeInput(req.Name), req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		v := core.NewValidationError()
		v.Add("email", err.Error())
		writeError(w, r, v)
		return
	case errors.Is(err, auth.ErrWeakPassword):
		v := core.NewValidationError()
		v.Add("password", err.Error())
		writeError(w, r, v)
		return
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, r, &core.ConflictError{Entity: "user", Reason: err.Error()})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		applog.FieldComponent, applog.ComponentAuth, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Auth.Authenticate(r.Context(), sanitizeInput(req.Email), req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.deps.Tokens.Generate(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims, err := s.deps.Tokens.Validate(token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

// handleMe echoes the identity carried by a bearer token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		UnauthorizedError("missing bearer token").Write(w)
		return
	}
	claims, err := s.deps.Tokens.Validate(token)
	if err != nil {
		UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    claims.UserID,
		"email":      claims.Email,
		"expires_at": claims.ExpiresAt.Time,
	})
}
