package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alecgard/planner/internal/board"
	"github.com/alecgard/planner/internal/metrics"
	"github.com/alecgard/planner/internal/ratelimit"
	"github.com/alecgard/planner/internal/team"
	"github.com/alecgard/planner/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users          *user.Store
	Teams          *team.Store
	Boards         *board.Store
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For, X-Real-IP or
	// True-Client-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
	// Health reports backend reachability. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	var ew errorWriter
	var exports ExportRecorder
	var onReject []func()
	if deps.Metrics != nil {
		ew.rejections = deps.Metrics
		exports = deps.Metrics
		onReject = append(onReject, func() { deps.Metrics.IncRateLimitRejection("ip") })
	}
	limited := ratelimit.Middleware(deps.Limiter, ratelimit.ClientIP, onReject...)

	// Handlers.
	users := &usersHandler{errorWriter: ew, users: deps.Users, teams: deps.Teams}
	teams := &teamsHandler{errorWriter: ew, teams: deps.Teams, boards: deps.Boards}
	boards := &boardsHandler{errorWriter: ew, boards: deps.Boards, exports: exports}

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Well-known manifest.
	r.Get("/.well-known/planner.json", WellKnownHandler)

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/api/v1/metrics/summary", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(ar chi.Router) {
		// Reads.
		ar.Get("/users", users.ListUsers)
		ar.Get("/users/{id}", users.GetUser)
		ar.Get("/users/{id}/teams", users.ListUserTeams)

		ar.Get("/teams", teams.ListTeams)
		ar.Get("/teams/{id}", teams.GetTeam)
		ar.Get("/teams/{id}/members", teams.ListMembers)
		ar.Get("/teams/{id}/boards", teams.ListBoards)

		ar.Get("/boards/{id}", boards.GetBoard)
		ar.Get("/boards/{id}/tasks", boards.ListTasks)

		// Mutations (rate limited per client IP).
		ar.Group(func(mr chi.Router) {
			mr.Use(limited)

			mr.Post("/users", users.CreateUser)
			mr.Put("/users/{id}", users.UpdateUser)

			mr.Post("/teams", teams.CreateTeam)
			mr.Put("/teams/{id}", teams.UpdateTeam)
			mr.Post("/teams/{id}/members", teams.AddMembers)
			mr.Delete("/teams/{id}/members", teams.RemoveMembers)

			mr.Post("/boards", boards.CreateBoard)
			mr.Post("/boards/{id}/close", boards.CloseBoard)
			mr.Post("/boards/{id}/export", boards.ExportBoard)

			mr.Post("/tasks", boards.AddTask)
			mr.Put("/tasks/{id}/status", boards.UpdateTaskStatus)
		})
	})

	return r
}
