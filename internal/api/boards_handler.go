package api

import (
	"net/http"

	"github.com/alecgard/planner/internal/board"
	"github.com/go-chi/chi/v5"
)

// ExportRecorder counts written board reports.
type ExportRecorder interface {
	IncExport()
}

// boardsHandler groups board and task HTTP handlers.
type boardsHandler struct {
	errorWriter
	boards  *board.Store
	exports ExportRecorder
}

// CreateBoard handles POST /api/v1/boards.
func (h *boardsHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req board.CreateBoardInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	b, err := h.boards.Create(r.Context(), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "board.create", "board", b.ID, "team_id", b.TeamID, "name", b.Name)
	writeJSON(w, http.StatusCreated, map[string]string{"id": b.ID})
}

// GetBoard handles GET /api/v1/boards/{id}.
func (h *boardsHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.boards.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListTasks handles GET /api/v1/boards/{id}/tasks.
func (h *boardsHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.boards.Tasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CloseBoard handles POST /api/v1/boards/{id}/close.
func (h *boardsHandler) CloseBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.boards.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "board.close", "board", b.ID)
	writeJSON(w, http.StatusOK, b)
}

// ExportBoard handles POST /api/v1/boards/{id}/export.
func (h *boardsHandler) ExportBoard(w http.ResponseWriter, r *http.Request) {
	res, err := h.boards.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if h.exports != nil {
		h.exports.IncExport()
	}

	auditLog(r, "board.export", "board", chi.URLParam(r, "id"), "out_file", res.FileName)
	writeJSON(w, http.StatusOK, res)
}

// AddTask handles POST /api/v1/tasks.
func (h *boardsHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req board.AddTaskInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.boards.AddTask(r.Context(), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "task.create", "task", t.ID, "board_id", t.BoardID, "user_id", t.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": t.ID})
}

// UpdateTaskStatus handles PUT /api/v1/tasks/{id}/status.
func (h *boardsHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.boards.UpdateTaskStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "task.status", "task", t.ID, "status", t.Status.String())
	writeJSON(w, http.StatusOK, t)
}
