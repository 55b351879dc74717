package api

import (
	"net/http"
	"strings"
)

type createUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Role string `json:"role" validate:"required,oneof=admin staff"`
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.backend.CreateUser(r.Context(), strings.TrimSpace(req.Name), req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, size, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.backend.ListUsers(r.Context(), page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.backend.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
