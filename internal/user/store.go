package user

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
	"github.com/alecgard/planner/internal/validate"
	"github.com/google/uuid"
)

// Store owns the users collection. All mutations hold mu across the whole
// load-modify-save cycle.
type Store struct {
	mu     sync.Mutex
	users  *storage.Collection[User]
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a user store persisting to backend.
func NewStore(backend storage.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		users:  storage.NewCollection[User](backend, storage.Users),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create validates the input, enforces global name uniqueness and persists a
// new user.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	name, err := validate.Name(in.Name, "user name")
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if err := validate.MaxLength(displayName, "display name", validate.MaxDisplayNameLength); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = name
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	for _, u := range users {
		if u.Name == name {
			return nil, apperr.Duplicate("user name must be unique")
		}
	}

	created := s.now().UTC()
	if in.CreationTime != nil && !in.CreationTime.IsZero() {
		created = in.CreationTime.UTC()
	}
	u := User{
		ID:           s.newID(),
		Name:         name,
		DisplayName:  displayName,
		CreationTime: isotime.New(created),
	}
	if err := s.users.Save(ctx, append(users, u)); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "name", u.Name)
	return &u, nil
}

// List returns all users in insertion order.
func (s *Store) List(ctx context.Context) ([]*User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]*User, len(users))
	for i := range users {
		out[i] = &users[i]
	}
	return out, nil
}

// GetByID returns the user with the given id. The id must be a well-formed
// UUID.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	id, err := validate.ID(id, "user id")
	if err != nil {
		return nil, err
	}
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	i := indexOf(users, id)
	if i < 0 {
		return nil, apperr.NotFound("user with id %s not found", id)
	}
	return &users[i], nil
}

// Update applies a display name change. Supplying a name that differs from
// the stored one is rejected: user names never change.
func (s *Store) Update(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	id, err := validate.ID(id, "user id")
	if err != nil {
		return nil, err
	}
	var displayName string
	if in.DisplayName != nil {
		displayName = strings.TrimSpace(*in.DisplayName)
		if err := validate.MaxLength(displayName, "display name", validate.MaxDisplayNameUpdateLength); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	i := indexOf(users, id)
	if i < 0 {
		return nil, apperr.NotFound("user with id %s not found", id)
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" && name != users[i].Name {
			return nil, apperr.Validation("user name cannot be updated")
		}
	}
	if displayName == "" || displayName == users[i].DisplayName {
		return &users[i], nil
	}

	users[i].DisplayName = displayName
	if err := s.users.Save(ctx, users); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	s.logger.Info("user updated", "user_id", id)
	return &users[i], nil
}

// Exists reports whether a user with the given id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return indexOf(users, id) >= 0, nil
}

// Lookup resolves ids to users. Ids that do not resolve are absent from the
// result.
func (s *Store) Lookup(ctx context.Context, ids []string) (map[string]*User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("looking up users: %w", err)
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make(map[string]*User, len(ids))
	for i := range users {
		if _, ok := want[users[i].ID]; ok {
			out[users[i].ID] = &users[i]
		}
	}
	return out, nil
}

func indexOf(users []User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
