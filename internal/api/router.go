package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/halcyon-social/halcyon/appview/internal/api/recovery"
	"github.com/halcyon-social/halcyon/appview/internal/metrics"
)

// NewRouter assembles the HTTP surface: the XRPC query endpoints plus
// health and metrics. httpMetrics and metricsHandler may be nil in tests.
func NewRouter(h *Handler, health *HealthHandler, httpMetrics *metrics.HTTP, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	router.Use(recovery.Middleware)

	route := func(name string, handler http.HandlerFunc) {
		var hd http.Handler = handler
		if httpMetrics != nil {
			hd = httpMetrics.Wrap(name, hd)
		}
		router.Handle("/xrpc/"+name, hd).Methods(methodFor(name))
	}

	route("app.bsky.feed.getTimeline", h.GetTimeline)
	route("app.bsky.feed.getAuthorFeed", h.GetAuthorFeed)
	route("app.bsky.feed.getPostThread", h.GetPostThread)
	route("app.bsky.feed.getPosts", h.GetPosts)
	route("app.bsky.feed.getFeed", h.GetFeed)
	route("app.bsky.actor.getProfile", h.GetProfile)
	route("app.bsky.actor.getProfiles", h.GetProfiles)
	route("app.bsky.actor.getPreferences", h.GetPreferences)
	route("app.bsky.actor.putPreferences", h.PutPreferences)

	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	return router
}

// methodFor distinguishes XRPC procedures (POST) from queries (GET).
func methodFor(nsid string) string {
	switch nsid {
	case "app.bsky.actor.putPreferences":
		return "POST"
	default:
		return "GET"
	}
}
