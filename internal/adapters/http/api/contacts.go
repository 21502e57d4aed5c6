package api

import (
	"encoding/json"
	"net/http"
)

const maxContactBody = 4 << 10

// contactRequest mirrors the OpenAPI schema for POST /contacts.
type contactRequest struct {
	Email   string `json:"email"`
	Consent bool   `json:"consent"`
}

type ackResponse struct {
	Status string `json:"status"`
}

// ContactHandler handles mailing-list submissions.
type ContactHandler struct {
	deps ContactDependencies
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(deps ContactDependencies) *ContactHandler {
	return &ContactHandler{deps: deps}
}

// HandleSubmit handles POST /contacts requests. Stored, duplicate and capped
// submissions all answer the same way.
func (h *ContactHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_contact"
	if !requireMethod(w, r, op, http.MethodPost) {
		return
	}
	var req contactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContactBody)).Decode(&req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if _, err := h.deps.SubmitContact(r.Context(), sessionID(w, r), req.Email, req.Consent); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}
