package api

import (
	"log/slog"
	"net/http"

	"github.com/alecgard/planner/internal/ratelimit"
)

// auditLog emits a structured audit log entry for a mutating request.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}
