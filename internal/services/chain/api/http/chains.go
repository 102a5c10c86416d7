package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

const (
	defaultWatchTimeout = 25 * time.Second
	maxWatchTimeout     = 60 * time.Second
)

type startChainRequest struct {
	Title   string `json:"title"`
	Genre   string `json:"genre"`
	Content string `json:"content"`
}

type chapterRequest struct {
	Content string `json:"content"`
}

type passChainRequest struct {
	ToUserID string `json:"toUserId"`
}

func (h *Handler) handleChains(w http.ResponseWriter, r *http.Request) {
	parts := splitPathParts(r.URL.Path)

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.listChains(w, r)
		case http.MethodPost:
			h.startChain(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case 2:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.getChain(w, r, parts[1])
	case 3:
		h.handleChainAction(w, r, parts[1], parts[2])
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}

func (h *Handler) handleChainAction(w http.ResponseWriter, r *http.Request, chainID, action string) {
	if action == "events" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.watchChain(w, r, chainID)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	switch action {
	case "chapters":
		h.addChapter(w, r, chainID, identity)
	case "pass":
		h.passChain(w, r, chainID, identity)
	case "complete":
		h.completeChain(w, r, chainID, identity)
	case "break":
		h.breakChain(w, r, chainID, identity)
	default:
		respondError(w, apperrors.New(apperrors.CodeNotFound, "not found"))
	}
}

func (h *Handler) startChain(w http.ResponseWriter, r *http.Request) {
	var req startChainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	record, err := h.custody.StartChain(r.Context(), chain.StartChainInput{
		Title:    req.Title,
		Genre:    chain.GenreFromLabel(req.Genre),
		Content:  req.Content,
		AuthorID: identity.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newChainView(record))
}

func (h *Handler) listChains(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.ChainFilter{
		Status:   chain.StatusFromLabel(query.Get("status")),
		HolderID: query.Get("holder"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, apperrors.New(apperrors.CodeInvalidContent, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	records, err := h.custody.ListChains(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]chainView, 0, len(records))
	for _, record := range records {
		views = append(views, newChainView(record))
	}
	respondJSON(w, http.StatusOK, map[string][]chainView{"chains": views})
}

func (h *Handler) getChain(w http.ResponseWriter, r *http.Request, chainID string) {
	record, err := h.custody.GetChain(r.Context(), chainID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newChainView(record))
}

func (h *Handler) addChapter(w http.ResponseWriter, r *http.Request, chainID string, identity Identity) {
	var req chapterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	record, chapter, err := h.custody.AddChapter(r.Context(), chainID, chain.ChapterInput{
		Content:  req.Content,
		AuthorID: identity.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, struct {
		Chain   chainView   `json:"chain"`
		Chapter chapterView `json:"chapter"`
	}{
		Chain: newChainView(record),
		Chapter: chapterView{
			ID:            chapter.ID,
			AuthorID:      chapter.AuthorID,
			Content:       chapter.Content,
			ChapterNumber: chapter.ChapterNumber,
			WordCount:     chapter.WordCount,
			CreatedAt:     chapter.CreatedAt,
		},
	})
}

func (h *Handler) passChain(w http.ResponseWriter, r *http.Request, chainID string, identity Identity) {
	var req passChainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	record, err := h.custody.PassChain(r.Context(), chainID, identity.UserID, req.ToUserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newChainView(record))
}

func (h *Handler) completeChain(w http.ResponseWriter, r *http.Request, chainID string, identity Identity) {
	var req chapterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	record, err := h.custody.CompleteChain(r.Context(), chainID, chain.ChapterInput{
		Content:  req.Content,
		AuthorID: identity.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newChainView(record))
}

func (h *Handler) breakChain(w http.ResponseWriter, r *http.Request, chainID string, identity Identity) {
	record, err := h.custody.BreakChain(r.Context(), chainID, identity.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newChainView(record))
}

// watchChain long-polls for the next change to a chain. The caller passes the
// version it last saw; a chain already past that version returns immediately,
// otherwise the request parks until a write lands or the poll window closes
// with 204.
func (h *Handler) watchChain(w http.ResponseWriter, r *http.Request, chainID string) {
	record, err := h.custody.GetChain(r.Context(), chainID)
	if err != nil {
		respondError(w, err)
		return
	}

	sinceVersion := record.Version
	if raw := r.URL.Query().Get("sinceVersion"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(w, apperrors.New(apperrors.CodeInvalidContent, "sinceVersion must be a non-negative integer"))
			return
		}
		sinceVersion = parsed
	}
	if record.Version > sinceVersion {
		respondJSON(w, http.StatusOK, newChainView(record))
		return
	}

	timeout := defaultWatchTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxWatchTimeout {
			respondError(w, apperrors.New(apperrors.CodeInvalidContent, "timeout must be a duration up to 60s"))
			return
		}
		timeout = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if !h.notifier.Wait(ctx, chainID) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	record, err = h.custody.GetChain(r.Context(), chainID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newChainView(record))
}
