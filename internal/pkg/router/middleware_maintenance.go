package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/goerror"
)

// middlewareMaintenance blocks the routes listed in app.maintenance.endpoints,
// or every routed endpoint when app.maintenance.enabled is set. /health stays
// reachable so orchestrators can still probe the process.
func middlewareMaintenance(cfg config.Config) Middleware {
	endpoints := make(map[string]struct{})
	all := false
	if cfg != nil {
		all = cfg.GetBool("app.maintenance.enabled")
		for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
			endpoint = strings.TrimSpace(endpoint)
			if endpoint == "" {
				continue
			}
			endpoints[endpoint] = struct{}{}
		}
	}

	unavailable := goerror.NewUnavailable(nil, "service is under maintenance").(*goerror.Error)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			_, blocked := endpoints[route]
			if route != healthPath && (all || blocked) {
				writeJSON(w, errorResponse{Message: unavailable.Msg()}, unavailable.StatusCode())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
