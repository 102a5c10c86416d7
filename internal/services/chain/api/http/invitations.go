package httpapi

import (
	"net/http"
	"strconv"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

type createInvitationRequest struct {
	ChainID  string `json:"chainId"`
	ToUserID string `json:"toUserId"`
}

func (h *Handler) handleInvitations(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(r.URL.Path)

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.listPendingInvitations(w, r)
		case http.MethodPost:
			h.createInvitation(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.getInvitation(w, r, parts[1])
	case 3:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.respondToInvitation(w, r, parts[1], parts[2])
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	record, err := h.invitations.CreateInvitation(r.Context(), req.ChainID, identity.UserID, req.ToUserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newInvitationView(record))
}

// listPendingInvitations lists the caller's pending invitations. A user query
// parameter is accepted but must name the caller; inboxes are private.
func (h *Handler) listPendingInvitations(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	if user := r.URL.Query().Get("user"); user != "" && user != identity.UserID {
		respondError(w, apperrors.New(apperrors.CodeForbidden, "cannot list another user's invitations"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, apperrors.New(apperrors.CodeInvalidContent, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	records, err := h.invitations.ListPendingInvitations(r.Context(), identity.UserID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]invitationView, 0, len(records))
	for _, record := range records {
		views = append(views, newInvitationView(record))
	}
	respondJSON(w, http.StatusOK, map[string][]invitationView{"invitations": views})
}

func (h *Handler) getInvitation(w http.ResponseWriter, r *http.Request, invitationID string) {
	record, err := h.invitations.GetInvitation(r.Context(), invitationID)
	if err != nil {
		respondError(w, err)
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	if record.Invitation.FromUserID != identity.UserID && record.Invitation.ToUserID != identity.UserID {
		respondError(w, apperrors.New(apperrors.CodeForbidden, "invitation belongs to another conversation"))
		return
	}
	respondJSON(w, http.StatusOK, newInvitationView(record))
}

func (h *Handler) respondToInvitation(w http.ResponseWriter, r *http.Request, invitationID, action string) {
	identity, _ := IdentityFromContext(r.Context())

	switch action {
	case "accept":
		record, err := h.invitations.AcceptInvitation(r.Context(), invitationID, identity.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newInvitationView(record))
	case "decline":
		record, err := h.invitations.DeclineInvitation(r.Context(), invitationID, identity.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newInvitationView(record))
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}
