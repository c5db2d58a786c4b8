package server

import (
	"net/http"

	"booklend/internal/app"
	"booklend/pkg/domain"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRegister(w, r)
	case http.MethodGet:
		if _, ok := s.authenticate(r); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "AUTH_INVALID_TOKEN")
			return
		}
		users, err := s.app.ListUsers()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": users,
			"count": len(users),
		})
	default:
		methodNotAllowed(w)
	}
}

// handleRegister is open; only an authenticated administrator may set a role
// other than the default.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req app.UserInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	if req.Role != "" && req.Role != domain.RoleUser {
		actor, ok := s.authenticate(r)
		if !ok || actor.Role != domain.RoleAdmin {
			writeAppError(w, domain.ErrForbidden)
			return
		}
	}
	user, err := s.app.CreateUser(req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// /users/{id}
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, actor domain.User) {
	id, rest, ok := pathID(r, "/users/")
	if !ok || rest != "" {
		writeError(w, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, err := s.app.GetUser(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var patch app.UserPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
			return
		}
		user, err := s.app.UpdateUser(actor, id, patch)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.DeleteUser(actor, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
