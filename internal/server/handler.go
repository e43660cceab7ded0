package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/simonbystrom/teamboard/internal/team"
)

// Source answers the dashboard queries. team.Aggregator implements it.
type Source interface {
	Teams() []team.Summary
	Team(name string) (*team.TeamConfig, bool)
	Inboxes(name string) map[string][]team.InboxMessage
	Tasks(name string) []team.Task
	Overview() []team.OverviewEntry
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the JSON API.
type Handler struct {
	source Source
}

// NewHandler creates a Handler over source.
func NewHandler(source Source) *Handler {
	return &Handler{source: source}
}

// ListTeams handles GET /api/teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Teams())
}

// GetTeam handles GET /api/teams/{name}.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.source.Team(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Team not found"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetInboxes handles GET /api/teams/{name}/inboxes.
func (h *Handler) GetInboxes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Inboxes(r.PathValue("name")))
}

// GetTasks handles GET /api/tasks/{teamName}.
func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Tasks(r.PathValue("teamName")))
}

// GetOverview handles GET /api/overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Overview())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
