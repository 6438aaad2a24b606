package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sensor-dashboard/internal/gateway"
	"sensor-dashboard/internal/models"
)

// ListUsersHandler обрабатывает GET /api/users
func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.upstream.ListUsers(r.Context())
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}
	h.respondJSON(w, users, http.StatusOK)
}

// CreateUserHandler обрабатывает POST /api/users
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeUser(w, r, true)
	if !ok {
		return
	}
	out, err := h.upstream.CreateUser(r.Context(), in)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}
	h.respondRaw(w, out, http.StatusCreated)
}

// UpdateUserHandler обрабатывает PUT /api/users/{id}
func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	in, ok := h.decodeUser(w, r, false)
	if !ok {
		return
	}
	out, err := h.upstream.UpdateUser(r.Context(), id, in)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}
	h.respondRaw(w, out, http.StatusOK)
}

// DeleteUserHandler обрабатывает DELETE /api/users/{id}
func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	if sess := sessionFrom(r.Context()); sess != nil && sess.User.ID == id {
		h.respondError(w, "Não é possível excluir o próprio usuário", http.StatusConflict)
		return
	}
	if err := h.upstream.DeleteUser(r.Context(), id); err != nil {
		h.respondUpstreamError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeUser(w http.ResponseWriter, r *http.Request, create bool) (models.UserInput, bool) {
	var in models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return in, false
	}
	in.Normalize()
	if err := in.Validate(create); err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			h.respondJSON(w, map[string]string{"error": vErr.Message, "field": vErr.Field}, http.StatusUnprocessableEntity)
			return in, false
		}
		h.respondError(w, err.Error(), http.StatusBadRequest)
		return in, false
	}
	return in, true
}

// respondUpstreamError переносит статус upstream для HTTP ошибок, остальное отдает как 502
func (h *Handler) respondUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status >= 400 && httpErr.Status < 500 {
		status = httpErr.Status
	}
	h.log.Warnf("upstream call failed: %s", err)
	h.respondError(w, gateway.Message(err), status)
}

func (h *Handler) respondRaw(w http.ResponseWriter, data json.RawMessage, status int) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
