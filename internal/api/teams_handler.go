package api

import (
	"net/http"
	"time"

	"github.com/alecgard/planner/internal/board"
	"github.com/alecgard/planner/internal/team"
	"github.com/go-chi/chi/v5"
)

// teamsHandler groups team and membership HTTP handlers.
type teamsHandler struct {
	errorWriter
	teams  *team.Store
	boards *board.Store
}

type teamView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Admin        string    `json:"admin"`
	Members      []string  `json:"members"`
	CreationTime time.Time `json:"creation_time"`
}

func newTeamView(t *team.Team) teamView {
	members := t.Members
	if members == nil {
		members = []string{}
	}
	return teamView{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		Admin:        t.Admin,
		Members:      members,
		CreationTime: t.CreationTime.Time,
	}
}

// membersRequest is the body of the add and remove member routes.
type membersRequest struct {
	Users []string `json:"users"`
}

// CreateTeam handles POST /api/v1/teams.
func (h *teamsHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req team.CreateTeamInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.teams.Create(r.Context(), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "team.create", "team", t.ID, "name", t.Name, "admin", t.Admin)
	writeJSON(w, http.StatusCreated, map[string]string{"id": t.ID})
}

// ListTeams handles GET /api/v1/teams.
func (h *teamsHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]teamView, len(teams))
	for i, t := range teams {
		out[i] = newTeamView(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTeam handles GET /api/v1/teams/{id}.
func (h *teamsHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.teams.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTeamView(t))
}

// UpdateTeam handles PUT /api/v1/teams/{id}.
func (h *teamsHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req team.UpdateTeamInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.teams.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "team.update", "team", t.ID)
	writeJSON(w, http.StatusOK, newTeamView(t))
}

// ListMembers handles GET /api/v1/teams/{id}/members.
func (h *teamsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	users, err := h.teams.Members(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	type memberView struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	out := make([]memberView, len(users))
	for i, u := range users {
		out[i] = memberView{ID: u.ID, Name: u.Name, DisplayName: u.DisplayName}
	}
	writeJSON(w, http.StatusOK, out)
}

// AddMembers handles POST /api/v1/teams/{id}/members.
func (h *teamsHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	var req membersRequest
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.teams.AddMembers(r.Context(), chi.URLParam(r, "id"), req.Users)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "team.members.add", "team", t.ID, "users", req.Users)
	writeJSON(w, http.StatusOK, newTeamView(t))
}

// RemoveMembers handles DELETE /api/v1/teams/{id}/members.
func (h *teamsHandler) RemoveMembers(w http.ResponseWriter, r *http.Request) {
	var req membersRequest
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	t, err := h.teams.RemoveMembers(r.Context(), chi.URLParam(r, "id"), req.Users)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "team.members.remove", "team", t.ID, "users", req.Users)
	writeJSON(w, http.StatusOK, newTeamView(t))
}

// ListBoards handles GET /api/v1/teams/{id}/boards.
func (h *teamsHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boards.ListByTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	type boardBrief struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]boardBrief, len(boards))
	for i, b := range boards {
		out[i] = boardBrief{ID: b.ID, Name: b.Name}
	}
	writeJSON(w, http.StatusOK, out)
}
