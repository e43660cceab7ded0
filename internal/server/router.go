package server

import (
	"net/http"

	"github.com/simonbystrom/teamboard/internal/hub"
)

// SetupRoutes registers the API, the push channel and the optional static
// directory on mux.
func SetupRoutes(mux *http.ServeMux, h *Handler, registry *hub.Registry, staticDir string) {
	mux.HandleFunc("GET /api/teams", h.ListTeams)
	mux.HandleFunc("GET /api/teams/{name}", h.GetTeam)
	mux.HandleFunc("GET /api/teams/{name}/inboxes", h.GetInboxes)
	mux.HandleFunc("GET /api/tasks/{teamName}", h.GetTasks)
	mux.HandleFunc("GET /api/overview", h.GetOverview)
	mux.HandleFunc("GET /ws", registry.ServeWebSocket)

	var static http.Handler = http.NotFoundHandler()
	if staticDir != "" {
		static = http.FileServer(http.Dir(staticDir))
	}
	// Dashboards open the socket on the page's own URL, so an upgrade
	// request on / joins the push channel too.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if hub.IsWebSocketUpgrade(r) {
			registry.ServeWebSocket(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})
}
