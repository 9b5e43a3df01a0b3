package api

import (
	"net/http"
	"time"

	"github.com/alecgard/planner/internal/team"
	"github.com/alecgard/planner/internal/user"
	"github.com/go-chi/chi/v5"
)

// usersHandler groups user HTTP handlers.
type usersHandler struct {
	errorWriter
	users *user.Store
	teams *team.Store
}

type userView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	CreationTime time.Time `json:"creation_time"`
}

func newUserView(u *user.User) userView {
	return userView{ID: u.ID, Name: u.Name, DisplayName: u.DisplayName, CreationTime: u.CreationTime.Time}
}

// CreateUser handles POST /api/v1/users.
func (h *usersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req user.CreateUserInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	u, err := h.users.Create(r.Context(), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "user.create", "user", u.ID, "name", u.Name)
	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID})
}

// ListUsers handles GET /api/v1/users.
func (h *usersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = newUserView(u)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *usersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

// UpdateUser handles PUT /api/v1/users/{id}.
func (h *usersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateUserInput
	if err := readJSON(r, &req); err != nil {
		invalidBody(w)
		return
	}

	u, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	auditLog(r, "user.update", "user", u.ID)
	writeJSON(w, http.StatusOK, newUserView(u))
}

// ListUserTeams handles GET /api/v1/users/{id}/teams.
func (h *usersHandler) ListUserTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	type userTeamView struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Description  string    `json:"description"`
		CreationTime time.Time `json:"creation_time"`
	}
	out := make([]userTeamView, len(teams))
	for i, t := range teams {
		out[i] = userTeamView{ID: t.ID, Name: t.Name, Description: t.Description, CreationTime: t.CreationTime.Time}
	}
	writeJSON(w, http.StatusOK, out)
}
