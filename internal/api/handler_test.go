package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecgard/planner/internal/board"
	"github.com/alecgard/planner/internal/metrics"
	"github.com/alecgard/planner/internal/ratelimit"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/team"
	"github.com/alecgard/planner/internal/user"
)

type testServer struct {
	handler   http.Handler
	metrics   *metrics.Metrics
	exportDir string
}

func newTestServer(t *testing.T, mutate func(*RouterDeps)) *testServer {
	t.Helper()
	backend := storage.NewMemoryBackend()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exportDir := t.TempDir()

	users := user.NewStore(backend, logger)
	teams := team.NewStore(backend, users, logger)
	boards := board.NewStore(backend, teams, users, board.Options{ExportDir: exportDir}, logger)
	m := metrics.New()

	deps := RouterDeps{
		Users:          users,
		Teams:          teams,
		Boards:         boards,
		Metrics:        m,
		AllowedOrigins: []string{"*"},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &testServer{handler: NewRouter(deps), metrics: m, exportDir: exportDir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// create posts body to path, expects 201 and returns the new id.
func (s *testServer) create(t *testing.T, path string, body any) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, path, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST %s: expected 201, got %d: %s", path, rec.Code, rec.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, rec, &out)
	if out.ID == "" {
		t.Fatalf("POST %s: empty id", path)
	}
	return out.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var env errorEnvelope
	decode(t, rec, &env)
	if env.Error.Code != code {
		t.Errorf("expected code %q, got %q", code, env.Error.Code)
	}
	if message != "" && env.Error.Message != message {
		t.Errorf("expected message %q, got %q", message, env.Error.Message)
	}
}

// ---------------------------------------------------------------------------
// Health check and manifest
// ---------------------------------------------------------------------------

func TestHealthCheck_OK(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.Health = func(context.Context) error { return errors.New("connection refused") }
	})
	rec := s.do(t, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "degraded" {
		t.Errorf("expected status=degraded, got %q", body["status"])
	}
}

func TestWellKnownHandler(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/.well-known/planner.json", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var manifest map[string]interface{}
	decode(t, rec, &manifest)
	for _, field := range []string{"name", "version", "api_base", "endpoints", "health"} {
		if _, ok := manifest[field]; !ok {
			t.Errorf("manifest missing required field %q", field)
		}
	}
}

func TestSecureHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/users", nil)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff header, got %v", rec.Header())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

// ---------------------------------------------------------------------------
// End-to-end planning flow
// ---------------------------------------------------------------------------

func TestPlanningFlow(t *testing.T) {
	s := newTestServer(t, nil)

	john := s.create(t, "/api/v1/users", map[string]string{"name": "john_doe", "display_name": "John Doe"})
	jane := s.create(t, "/api/v1/users", map[string]string{"name": "jane_smith"})

	teamID := s.create(t, "/api/v1/teams", map[string]string{
		"name": "dev_team", "description": "Development team", "admin": john,
	})

	rec := s.do(t, http.MethodPost, "/api/v1/teams/"+teamID+"/members", map[string][]string{"users": {jane}})
	if rec.Code != http.StatusOK {
		t.Fatalf("add members: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/teams/"+teamID+"/members", nil)
	var members []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	decode(t, rec, &members)
	if len(members) != 2 || members[0].ID != john || members[1].Name != "jane_smith" {
		t.Fatalf("unexpected members %+v", members)
	}
	if members[1].DisplayName != "jane_smith" {
		t.Errorf("display name should default to name, got %q", members[1].DisplayName)
	}

	boardID := s.create(t, "/api/v1/boards", map[string]string{"name": "Sprint 1", "team_id": teamID})
	taskID := s.create(t, "/api/v1/tasks", map[string]string{
		"title": "Login page", "user_id": jane, "board_id": boardID,
	})
	// No board id: falls back to the open board.
	fallbackID := s.create(t, "/api/v1/tasks", map[string]string{"title": "Signup page", "user_id": john})

	rec = s.do(t, http.MethodGet, "/api/v1/boards/"+boardID+"/tasks", nil)
	var tasks []board.Task
	decode(t, rec, &tasks)
	if len(tasks) != 2 || tasks[1].ID != fallbackID || tasks[1].BoardID != boardID {
		t.Fatalf("unexpected tasks %+v", tasks)
	}

	// Closing with incomplete tasks is rejected.
	rec = s.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/close", nil)
	expectError(t, rec, http.StatusUnprocessableEntity, "validation_error", "cannot close board: not all tasks are complete")

	for _, id := range []string{taskID, fallbackID} {
		rec = s.do(t, http.MethodPut, "/api/v1/tasks/"+id+"/status", map[string]string{"status": "COMPLETE"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status update: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var task board.Task
		decode(t, rec, &task)
		if task.Status != board.TaskComplete {
			t.Errorf("expected COMPLETE, got %s", task.Status)
		}
	}

	rec = s.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var closed board.Board
	decode(t, rec, &closed)
	if closed.Status != board.BoardClosed || closed.EndTime == nil {
		t.Errorf("expected closed board with end time, got %+v", closed)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var export struct {
		OutFile string `json:"out_file"`
	}
	decode(t, rec, &export)
	if export.OutFile != board.ReportFileName(closed) {
		t.Errorf("expected out_file %q, got %q", board.ReportFileName(closed), export.OutFile)
	}
	f, err := os.Open(filepath.Join(s.exportDir, export.OutFile))
	if err != nil {
		t.Fatalf("opening report: %v", err)
	}
	defer f.Close()
	counts, err := board.ParseReportCounts(f)
	if err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if counts.Total != 2 || counts.Complete != 2 {
		t.Errorf("unexpected counts %+v", counts)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+jane+"/teams", nil)
	var teams []map[string]any
	decode(t, rec, &teams)
	if len(teams) != 1 || teams[0]["name"] != "dev_team" {
		t.Errorf("unexpected user teams %+v", teams)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/teams/"+teamID+"/boards", nil)
	var boards []map[string]string
	decode(t, rec, &boards)
	if len(boards) != 1 || boards[0]["id"] != boardID || boards[0]["name"] != "Sprint 1" {
		t.Errorf("unexpected boards %+v", boards)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.create(t, "/api/v1/users", map[string]string{"name": "bob_wilson"})

	rec := s.do(t, http.MethodPut, "/api/v1/users/"+id, map[string]string{"display_name": "Bob W."})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var u userView
	decode(t, rec, &u)
	if u.DisplayName != "Bob W." || u.Name != "bob_wilson" {
		t.Errorf("unexpected user %+v", u)
	}

	rec = s.do(t, http.MethodPut, "/api/v1/users/"+id, map[string]string{"name": "robert"})
	expectError(t, rec, http.StatusUnprocessableEntity, "validation_error", "")
}

func TestCreateAcceptsZonelessCreationTime(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.create(t, "/api/v1/users", map[string]string{
		"name": "legacy_user", "creation_time": "2024-01-15T10:30:00.123456",
	})

	rec := s.do(t, http.MethodGet, "/api/v1/users/"+id, nil)
	var u map[string]string
	decode(t, rec, &u)
	if u["creation_time"] != "2024-01-15T10:30:00.123456Z" {
		t.Errorf("unexpected creation_time %q", u["creation_time"])
	}

	rec = s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"name": "bad_time", "creation_time": "15/01/2024"})
	expectError(t, rec, http.StatusBadRequest, "invalid_body", "")
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.create(t, "/api/v1/users", map[string]string{"name": "alice_johnson"})
	s.create(t, "/api/v1/teams", map[string]string{"name": "qa_team", "admin": admin})

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		code    string
		message string
	}{
		{"blank user name", http.MethodPost, "/api/v1/users", map[string]string{"name": "  "},
			http.StatusUnprocessableEntity, "validation_error", ""},
		{"duplicate user", http.MethodPost, "/api/v1/users", map[string]string{"name": "alice_johnson"},
			http.StatusConflict, "conflict", ""},
		{"malformed user id", http.MethodGet, "/api/v1/users/missing", nil,
			http.StatusUnprocessableEntity, "validation_error", "user id must be a valid UUID"},
		{"unknown user", http.MethodGet, "/api/v1/users/00000000-0000-4000-8000-000000000000", nil,
			http.StatusNotFound, "not_found", "user with id 00000000-0000-4000-8000-000000000000 not found"},
		{"duplicate team", http.MethodPost, "/api/v1/teams", map[string]string{"name": "qa_team", "admin": admin},
			http.StatusConflict, "conflict", "team name must be unique"},
		{"unknown team", http.MethodGet, "/api/v1/teams/missing", nil,
			http.StatusNotFound, "not_found", "team not found"},
		{"board for unknown team", http.MethodPost, "/api/v1/boards", map[string]string{"name": "b", "team_id": "nope"},
			http.StatusUnprocessableEntity, "validation_error", "team id does not exist"},
		{"close unknown board", http.MethodPost, "/api/v1/boards/nope/close", nil,
			http.StatusNotFound, "not_found", "board not found"},
		{"task without open board", http.MethodPost, "/api/v1/tasks", map[string]string{"title": "t", "user_id": admin},
			http.StatusUnprocessableEntity, "validation_error", "no open boards available to add a task"},
		{"bad status", http.MethodPut, "/api/v1/tasks/nope/status", map[string]string{"status": "DONE"},
			http.StatusUnprocessableEntity, "validation_error", "status must be one of: OPEN, IN_PROGRESS, COMPLETE"},
		{"malformed body", http.MethodPost, "/api/v1/users", "{not json",
			http.StatusBadRequest, "invalid_body", "failed to parse request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			expectError(t, rec, tt.status, tt.code, tt.message)
		})
	}

	sum, err := s.metrics.Summarize()
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Rejections["validation"] == 0 || sum.Rejections["not_found"] == 0 || sum.Rejections["duplicate"] == 0 {
		t.Errorf("expected rejections recorded by kind, got %v", sum.Rejections)
	}
}

func TestRemoveAdminRejected(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.create(t, "/api/v1/users", map[string]string{"name": "john_doe"})
	teamID := s.create(t, "/api/v1/teams", map[string]string{"name": "dev_team", "admin": admin})

	rec := s.do(t, http.MethodDelete, "/api/v1/teams/"+teamID+"/members", map[string][]string{"users": {admin}})
	expectError(t, rec, http.StatusUnprocessableEntity, "validation_error", "cannot remove team admin from team")
}

// ---------------------------------------------------------------------------
// Rate limiting and metrics
// ---------------------------------------------------------------------------

func TestMutationsRateLimited(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.Limiter = ratelimit.New(2, time.Minute)
	})

	s.create(t, "/api/v1/users", map[string]string{"name": "u1"})
	s.create(t, "/api/v1/users", map[string]string{"name": "u2"})
	rec := s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"name": "u3"})
	expectError(t, rec, http.StatusTooManyRequests, "rate_limited", "")

	// Reads are not limited.
	if rec := s.do(t, http.MethodGet, "/api/v1/users", nil); rec.Code != http.StatusOK {
		t.Errorf("read: expected 200, got %d", rec.Code)
	}

	sum, err := s.metrics.Summarize()
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.RateLimit.Rejections != 1 {
		t.Errorf("expected 1 rate limit rejection, got %v", sum.RateLimit.Rejections)
	}
}

// postFrom sends a user create from RemoteAddr 192.0.2.10 with the given
// X-Forwarded-For header.
func (s *testServer) postFrom(t *testing.T, fwd, name string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"name":"`+name+`"}`))
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("X-Forwarded-For", fwd)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.Limiter = ratelimit.New(2, time.Minute)
	})

	codes := []int{
		s.postFrom(t, "203.0.113.1", "f1"),
		s.postFrom(t, "203.0.113.2", "f2"),
		s.postFrom(t, "203.0.113.3", "f3"),
	}
	want := []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: expected %d, got %d", i+1, want[i], codes[i])
		}
	}
}

func TestRateLimitTrustProxy(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.Limiter = ratelimit.New(2, time.Minute)
		d.TrustProxy = true
	})

	if code := s.postFrom(t, "203.0.113.1", "p1"); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := s.postFrom(t, "203.0.113.1", "p2"); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := s.postFrom(t, "203.0.113.1", "p3"); code != http.StatusTooManyRequests {
		t.Errorf("same forwarded client: expected 429, got %d", code)
	}
	if code := s.postFrom(t, "203.0.113.2", "p4"); code != http.StatusCreated {
		t.Errorf("other forwarded client: expected 201, got %d", code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.create(t, "/api/v1/users", map[string]string{"name": "john_doe"})
	s.do(t, http.MethodGet, "/api/v1/users/"+id, nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `path_pattern="/api/v1/users/{id}"`) {
		t.Errorf("expected route pattern label in exposition")
	}

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sum metrics.Summary
	decode(t, rec, &sum)
	if sum.HTTP.TotalRequests < 2 {
		t.Errorf("expected at least 2 requests counted, got %v", sum.HTTP.TotalRequests)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "abc-123", true},
		{"too long replaced", strings.Repeat("a", maxRequestIDLength+1), false},
		{"control chars replaced", "bad\x01id", false},
		{"missing assigned", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if tt.keep && got != tt.header {
				t.Errorf("expected request id %q, got %q", tt.header, got)
			}
			if !tt.keep && (got == "" || got == tt.header) {
				t.Errorf("expected a generated request id, got %q", got)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.AllowedOrigins = []string{"https://planner.test"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil)
	req.Header.Set("Origin", "https://planner.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://planner.test" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Origin", "https://elsewhere.test")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin should get no CORS headers, got %q", got)
	}
}
