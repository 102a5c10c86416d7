package httpapi

import (
	"net/http"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(r.URL.Path)
	if len(parts) != 3 || parts[2] != "stats" {
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	record, err := h.aggregator.UserStats(r.Context(), parts[1])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserStatsView(record))
}
