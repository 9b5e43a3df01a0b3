package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/isotime"
	"github.com/alecgard/planner/internal/storage"
)

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(storage.NewMemoryBackend(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, CreateUserInput{Name: "alice", DisplayName: "Alice A."})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.Name != "alice" || u.DisplayName != "Alice A." {
		t.Errorf("unexpected user %+v", u)
	}
	if u.CreationTime.IsZero() {
		t.Error("expected creation time to be stamped")
	}
}

func TestCreateDefaultsDisplayName(t *testing.T) {
	s := newTestStore(t)
	u, err := s.Create(context.Background(), CreateUserInput{Name: "bob", DisplayName: "   "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.DisplayName != "bob" {
		t.Errorf("expected display name to default to name, got %q", u.DisplayName)
	}
}

func TestCreateKeepsSuppliedCreationTime(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	u, err := s.Create(context.Background(), CreateUserInput{Name: "carol", CreationTime: isotime.Ptr(ts)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !u.CreationTime.Equal(ts) {
		t.Errorf("expected creation time %v, got %v", ts, u.CreationTime)
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateUserInput
	}{
		{"missing name", CreateUserInput{}},
		{"blank name", CreateUserInput{Name: "  "}},
		{"invalid charset", CreateUserInput{Name: "john doe"}},
		{"name too long", CreateUserInput{Name: strings.Repeat("x", 65)}},
		{"display name too long", CreateUserInput{Name: "dave", DisplayName: strings.Repeat("d", 65)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := s.Create(context.Background(), tt.input)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateUserInput{Name: "alice"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := s.Create(ctx, CreateUserInput{Name: "alice", DisplayName: "Another Alice"})
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	users, _ := s.List(ctx)
	if len(users) != 1 {
		t.Errorf("expected 1 user after failed duplicate, got %d", len(users))
	}
}

func TestListInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"zed", "amy", "mia"}
	for _, n := range names {
		if _, err := s.Create(ctx, CreateUserInput{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != len(names) {
		t.Fatalf("expected %d users, got %d", len(names), len(users))
	}
	for i, n := range names {
		if users[i].Name != n {
			t.Errorf("position %d: got %q, want %q", i, users[i].Name, n)
		}
	}
}

func TestListEmpty(t *testing.T) {
	users, err := newTestStore(t).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", users)
	}
}

func TestGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, _ := s.Create(ctx, CreateUserInput{Name: "alice"})

	got, err := s.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "alice" {
		t.Errorf("expected alice, got %q", got.Name)
	}

	if _, err := s.GetByID(ctx, "not-a-uuid"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for malformed id, got %v", err)
	}
	if _, err := s.GetByID(ctx, "550e8400-e29b-41d4-a716-446655440000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown id, got %v", err)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, _ := s.Create(ctx, CreateUserInput{Name: "alice"})

	long := strings.Repeat("a", 128)
	updated, err := s.Update(ctx, created.ID, UpdateUserInput{DisplayName: &long})
	if err != nil {
		t.Fatalf("Update with 128-char display name: %v", err)
	}
	if updated.DisplayName != long {
		t.Error("display name not updated")
	}

	got, _ := s.GetByID(ctx, created.ID)
	if got.DisplayName != long {
		t.Error("update not persisted")
	}

	tooLong := strings.Repeat("a", 129)
	if _, err := s.Update(ctx, created.ID, UpdateUserInput{DisplayName: &tooLong}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for 129 chars, got %v", err)
	}
}

func TestUpdateNameIsImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, _ := s.Create(ctx, CreateUserInput{Name: "alice", DisplayName: "Alice"})

	_, err := s.Update(ctx, created.ID, UpdateUserInput{Name: strPtr("alicia"), DisplayName: strPtr("Alicia")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for name change, got %v", err)
	}
	got, _ := s.GetByID(ctx, created.ID)
	if got.Name != "alice" || got.DisplayName != "Alice" {
		t.Errorf("rejected update must not mutate, got %+v", got)
	}

	// Supplying the unchanged name is accepted.
	if _, err := s.Update(ctx, created.ID, UpdateUserInput{Name: strPtr("alice"), DisplayName: strPtr("Al")}); err != nil {
		t.Errorf("unexpected error with same name: %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), "550e8400-e29b-41d4-a716-446655440000", UpdateUserInput{DisplayName: strPtr("x")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestExistsAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, CreateUserInput{Name: "alice"})
	b, _ := s.Create(ctx, CreateUserInput{Name: "bob"})

	ok, err := s.Exists(ctx, a.ID)
	if err != nil || !ok {
		t.Errorf("expected alice to exist, got %v, %v", ok, err)
	}
	ok, _ = s.Exists(ctx, "missing")
	if ok {
		t.Error("expected missing id not to exist")
	}

	found, err := s.Lookup(ctx, []string{a.ID, "missing", b.ID})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(found) != 2 || found[a.ID].Name != "alice" || found[b.ID].Name != "bob" {
		t.Errorf("unexpected lookup result %v", found)
	}
}

func TestConcurrentCreatesKeepEveryUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(ctx, CreateUserInput{Name: fmt.Sprintf("user-%d", i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Create: %v", err)
	}

	users, _ := s.List(ctx)
	if len(users) != n {
		t.Errorf("expected %d users, got %d (lost update)", n, len(users))
	}
}

func TestConcurrentDuplicateCreatesAdmitOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(ctx, CreateUserInput{Name: "same"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Errorf("expected exactly one successful create, got %d", succeeded)
	}
}

func TestListReadsZonelessTimestamps(t *testing.T) {
	backend := storage.NewMemoryBackend()
	ctx := context.Background()
	doc := `{"users": [{"id": "6f1c2d1e-8b1a-4c47-9d55-0e2f3a4b5c6d", "name": "legacy", "display_name": "Legacy", "creation_time": "2024-01-15T10:30:00.123456"}]}`
	if err := backend.Save(ctx, storage.Users, []byte(doc)); err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if want := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC); !users[0].CreationTime.Equal(want) {
		t.Errorf("creation time = %v, want %v", users[0].CreationTime, want)
	}
}
