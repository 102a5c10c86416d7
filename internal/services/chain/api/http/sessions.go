package httpapi

import (
	"net/http"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/services/chain/domain/session"
)

type createSessionRequest struct {
	Title                string  `json:"title"`
	TurnTimeLimitSeconds int     `json:"turnTimeLimitSeconds"`
	EnableGhostSegments  bool    `json:"enableGhostSegments"`
	GhostSegmentChance   float64 `json:"ghostSegmentChance"`
}

type segmentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(r.URL.Path)

	switch len(parts) {
	case 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.createSession(w, r)
	case 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.getSession(w, r, parts[1])
	case 3:
		h.handleSessionAction(w, r, parts[1], parts[2])
	case 4:
		if parts[2] != "segments" {
			respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
			return
		}
		h.handleSegment(w, r, parts[1], parts[3])
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}

func (h *Handler) handleSessionAction(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	switch action {
	case "join":
		record, err := h.sessions.JoinSession(r.Context(), sessionID, identity.UserID, identity.DisplayName)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(record))
	case "start":
		record, err := h.sessions.StartSession(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(record))
	case "complete":
		record, err := h.sessions.CompleteSession(r.Context(), sessionID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(record))
	case "segments":
		h.addSegment(w, r, sessionID, identity)
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	record, err := h.sessions.CreateSession(r.Context(), session.CreateInput{
		Title:               req.Title,
		TurnTimeLimit:       time.Duration(req.TurnTimeLimitSeconds) * time.Second,
		EnableGhostSegments: req.EnableGhostSegments,
		GhostSegmentChance:  req.GhostSegmentChance,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSessionView(record))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	record, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(record))
}

func (h *Handler) addSegment(w http.ResponseWriter, r *http.Request, sessionID string, identity Identity) {
	var req segmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	record, segment, err := h.sessions.AddSegment(r.Context(), sessionID, req.Content, identity.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, struct {
		Session sessionView `json:"session"`
		Segment segmentView `json:"segment"`
	}{
		Session: newSessionView(record),
		Segment: newSegmentView(segment),
	})
}

func (h *Handler) handleSegment(w http.ResponseWriter, r *http.Request, sessionID, segmentID string) {
	switch r.Method {
	case http.MethodPatch:
		var req segmentRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		record, err := h.sessions.UpdateSegment(r.Context(), sessionID, segmentID, req.Content)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(record))
	case http.MethodDelete:
		record, err := h.sessions.DeleteSegment(r.Context(), sessionID, segmentID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newSessionView(record))
	default:
		methodNotAllowed(w, http.MethodPatch, http.MethodDelete)
	}
}
