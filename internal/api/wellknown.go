package api

import "net/http"

// wellKnownManifest is the static JSON manifest for /.well-known/planner.json.
const wellKnownManifest = `{
  "name": "Planner",
  "description": "Team, board and task planning service",
  "version": "0.1.0",
  "api_base": "/api/v1",
  "endpoints": {
    "users": "/api/v1/users",
    "teams": "/api/v1/teams",
    "boards": "/api/v1/boards",
    "tasks": "/api/v1/tasks",
    "metrics_summary": "/api/v1/metrics/summary"
  },
  "task_statuses": ["OPEN", "IN_PROGRESS", "COMPLETE"],
  "health": "/health",
  "metrics": "/metrics"
}`

// WellKnownHandler returns the static planner manifest.
func WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wellKnownManifest))
}
