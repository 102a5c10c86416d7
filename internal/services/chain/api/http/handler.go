package httpapi

import (
	"net/http"

	"github.com/gravemark/ink/internal/services/chain/app"
)

// Handler routes the chain service's JSON API.
type Handler struct {
	custody     *app.CustodyService
	invitations *app.InvitationService
	sessions    *app.SessionEngine
	aggregator  *app.StatsAggregator
	notifier    *app.Notifier
	auth        *Authenticator

	mux *http.ServeMux
}

// NewHandler wires the HTTP surface over the application services.
func NewHandler(custody *app.CustodyService, invitations *app.InvitationService, sessions *app.SessionEngine, aggregator *app.StatsAggregator, notifier *app.Notifier, auth *Authenticator) *Handler {
	h := &Handler{
		custody:     custody,
		invitations: invitations,
		sessions:    sessions,
		aggregator:  aggregator,
		notifier:    notifier,
		auth:        auth,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/chains", h.requireIdentity(h.handleChains))
	mux.HandleFunc("/chains/", h.requireIdentity(h.handleChains))
	mux.HandleFunc("/invitations", h.requireIdentity(h.handleInvitations))
	mux.HandleFunc("/invitations/", h.requireIdentity(h.handleInvitations))
	mux.HandleFunc("/sessions", h.requireIdentity(h.handleSessions))
	mux.HandleFunc("/sessions/", h.requireIdentity(h.handleSessions))
	mux.HandleFunc("/users/", h.requireIdentity(h.handleUsers))
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
