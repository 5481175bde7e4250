package handlers

import (
	"net/http"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	"github.com/pribylovaa/kiosk-admin/internal/models"
)

type loginResponse struct {
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, errBadBody)
		return
	}

	if err := h.Validator.Validate(in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	userID, err := h.Session.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{UserID: userID, Authenticated: true})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Logout(r.Context()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Session.Status(r.Context())
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}
