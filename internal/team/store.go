package team

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/isotime"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/user"
	"github.com/alecgard/planner/internal/validate"
	"github.com/google/uuid"
)

// UserDirectory is the read side of the user store that teams depend on.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Lookup(ctx context.Context, ids []string) (map[string]*user.User, error)
}

// Store owns the teams collection.
type Store struct {
	mu     sync.Mutex
	teams  *storage.Collection[Team]
	users  UserDirectory
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a team store persisting to backend and checking user
// references against users.
func NewStore(backend storage.Backend, users UserDirectory, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		teams:  storage.NewCollection[Team](backend, storage.Teams),
		users:  users,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create validates the input and persists a team whose only member is its
// admin.
func (s *Store) Create(ctx context.Context, in CreateTeamInput) (*Team, error) {
	name, err := validate.Title(in.Name, "team name")
	if err != nil {
		return nil, err
	}
	description, err := validate.Description(in.Description, "description")
	if err != nil {
		return nil, err
	}
	admin, err := validate.Required(in.Admin, "admin user id")
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, admin, "admin user does not exist"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}
	for _, t := range teams {
		if t.Name == name {
			return nil, apperr.Duplicate("team name must be unique")
		}
	}

	created := s.now().UTC()
	if in.CreationTime != nil && !in.CreationTime.IsZero() {
		created = in.CreationTime.UTC()
	}
	t := Team{
		ID:           s.newID(),
		Name:         name,
		Description:  description,
		Admin:        admin,
		Members:      []string{admin},
		CreationTime: isotime.New(created),
	}
	if err := s.teams.Save(ctx, append(teams, t)); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	s.logger.Info("team created", "team_id", t.ID, "name", t.Name, "admin", admin)
	return &t, nil
}

// List returns all teams in insertion order.
func (s *Store) List(ctx context.Context) ([]*Team, error) {
	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	out := make([]*Team, len(teams))
	for i := range teams {
		out[i] = &teams[i]
	}
	return out, nil
}

// GetByID returns the team with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*Team, error) {
	id, err := validate.Required(id, "team id")
	if err != nil {
		return nil, err
	}
	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting team by id: %w", err)
	}
	i := indexOf(teams, id)
	if i < 0 {
		return nil, apperr.NotFound("team not found")
	}
	return &teams[i], nil
}

// Exists reports whether a team with the given id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	teams, err := s.teams.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("checking team: %w", err)
	}
	return indexOf(teams, id) >= 0, nil
}

// Update applies each supplied field independently. A new admin must exist
// and joins the members if not already one; the previous admin keeps its
// membership.
func (s *Store) Update(ctx context.Context, id string, in UpdateTeamInput) (*Team, error) {
	id, err := validate.Required(id, "team id")
	if err != nil {
		return nil, err
	}
	name := trimmed(in.Name)
	if err := validate.MaxLength(name, "team name", validate.MaxNameLength); err != nil {
		return nil, err
	}
	description := trimmed(in.Description)
	if err := validate.MaxLength(description, "description", validate.MaxDescriptionLength); err != nil {
		return nil, err
	}
	admin := trimmed(in.Admin)

	s.mu.Lock()
	defer s.mu.Unlock()

	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating team: %w", err)
	}
	i := indexOf(teams, id)
	if i < 0 {
		return nil, apperr.NotFound("team not found")
	}
	t := &teams[i]

	if name != "" {
		for _, other := range teams {
			if other.Name == name && other.ID != id {
				return nil, apperr.Duplicate("team name must be unique")
			}
		}
	}
	if admin != "" {
		if err := s.requireUser(ctx, admin, "admin user does not exist"); err != nil {
			return nil, err
		}
		if !t.HasMember(admin) {
			if len(t.Members)+1 > validate.MaxTeamMembers {
				return nil, apperr.Validation("cannot set admin: team would exceed %d member limit", validate.MaxTeamMembers)
			}
			t.Members = append(t.Members, admin)
		}
		t.Admin = admin
	}
	if name != "" {
		t.Name = name
	}
	if description != "" {
		t.Description = description
	}

	if err := s.teams.Save(ctx, teams); err != nil {
		return nil, fmt.Errorf("updating team: %w", err)
	}
	s.logger.Info("team updated", "team_id", id)
	return t, nil
}

// AddMembers adds userIDs to the team. Every id must reference an existing
// user and the resulting member set must stay within the member limit; on
// any failure membership is unchanged.
func (s *Store) AddMembers(ctx context.Context, id string, userIDs []string) (*Team, error) {
	id, err := validate.Required(id, "team id")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("adding team members: %w", err)
	}
	i := indexOf(teams, id)
	if i < 0 {
		return nil, apperr.NotFound("team not found")
	}

	found, err := s.users.Lookup(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("adding team members: %w", err)
	}
	for _, uid := range userIDs {
		if _, ok := found[uid]; !ok {
			return nil, apperr.Validation("user %s does not exist", uid)
		}
	}

	members := union(teams[i].Members, userIDs)
	if len(members) > validate.MaxTeamMembers {
		return nil, apperr.Validation("cannot add users: team would exceed %d member limit", validate.MaxTeamMembers)
	}
	teams[i].Members = members

	if err := s.teams.Save(ctx, teams); err != nil {
		return nil, fmt.Errorf("adding team members: %w", err)
	}
	s.logger.Info("team members added", "team_id", id, "count", len(userIDs))
	return &teams[i], nil
}

// RemoveMembers removes userIDs from the team. The admin can never be
// removed this way. Ids that are not members are ignored.
func (s *Store) RemoveMembers(ctx context.Context, id string, userIDs []string) (*Team, error) {
	id, err := validate.Required(id, "team id")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("removing team members: %w", err)
	}
	i := indexOf(teams, id)
	if i < 0 {
		return nil, apperr.NotFound("team not found")
	}

	remove := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if uid == teams[i].Admin {
			return nil, apperr.Validation("cannot remove team admin from team")
		}
		remove[uid] = struct{}{}
	}

	kept := make([]string, 0, len(teams[i].Members))
	for _, m := range teams[i].Members {
		if _, ok := remove[m]; !ok {
			kept = append(kept, m)
		}
	}
	teams[i].Members = kept

	if err := s.teams.Save(ctx, teams); err != nil {
		return nil, fmt.Errorf("removing team members: %w", err)
	}
	s.logger.Info("team members removed", "team_id", id, "count", len(userIDs))
	return &teams[i], nil
}

// Members resolves the team's member ids to users, in membership order.
// Ids that no longer resolve are skipped.
func (s *Store) Members(ctx context.Context, id string) ([]*user.User, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := s.users.Lookup(ctx, t.Members)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	out := make([]*user.User, 0, len(t.Members))
	for _, m := range t.Members {
		if u, ok := found[m]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// ListForUser returns the teams userID is a member of. The user must exist.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Team, error) {
	userID, err := validate.ID(userID, "user id")
	if err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user teams: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("user with id %s not found", userID)
	}

	teams, err := s.teams.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing user teams: %w", err)
	}
	out := make([]*Team, 0)
	for i := range teams {
		if teams[i].HasMember(userID) {
			out = append(out, &teams[i])
		}
	}
	return out, nil
}

func (s *Store) requireUser(ctx context.Context, id, msg string) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking user %s: %w", id, err)
	}
	if !ok {
		return apperr.Validation("%s", msg)
	}
	return nil
}

// union appends the ids in add that are not already in members, preserving
// order and dropping duplicates.
func union(members, add []string) []string {
	seen := make(map[string]struct{}, len(members)+len(add))
	out := make([]string, 0, len(members)+len(add))
	for _, list := range [][]string{members, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func indexOf(teams []Team, id string) int {
	for i := range teams {
		if teams[i].ID == id {
			return i
		}
	}
	return -1
}
