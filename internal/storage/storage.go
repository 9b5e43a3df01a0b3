// Package storage persists planner collections.
//
// A collection is a named, whole document (users, teams, boards, tasks) that
// is loaded and saved in one piece. Backends only move bytes; Collection adds
// the JSON envelope and typed decoding on top. Callers are responsible for
// serializing read-modify-write cycles on the same collection.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecgard/planner/internal/apperr"
)

// Collection names used by the stores.
const (
	Users  = "users"
	Teams  = "teams"
	Boards = "boards"
	Tasks  = "tasks"
)

// AllCollections lists every collection the planner owns.
var AllCollections = []string{Users, Teams, Boards, Tasks}

// Backend loads and saves raw collection documents. Save must replace the
// stored document atomically. Load returns nil, nil for a collection that was
// never saved.
type Backend interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, data []byte) error
	Close() error
}

// Collection is a typed view over one named document of a Backend. The
// document shape is {"<name>": [ ... ]}.
type Collection[T any] struct {
	backend Backend
	name    string
}

// NewCollection returns a typed view of the named collection.
func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{backend: backend, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Load returns every record in the collection, in stored order. An absent
// collection yields an empty, non-nil slice.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	data, err := c.backend.Load(ctx, c.name)
	if err != nil {
		return nil, apperr.Storage(err, "loading %s", c.name)
	}
	if len(data) == 0 {
		return []T{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Storage(err, "decoding %s", c.name)
	}
	raw, ok := doc[c.name]
	if !ok || string(raw) == "null" {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperr.Storage(err, "decoding %s records", c.name)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save replaces the whole collection with items.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(map[string][]T{c.name: items}, "", "  ")
	if err != nil {
		return apperr.Storage(err, "encoding %s", c.name)
	}
	if err := c.backend.Save(ctx, c.name, data); err != nil {
		return apperr.Storage(err, "saving %s", c.name)
	}
	return nil
}

// Reset clears the named collections.
func Reset(ctx context.Context, backend Backend, names ...string) error {
	for _, name := range names {
		data := []byte(fmt.Sprintf("{%q: []}", name))
		if err := backend.Save(ctx, name, data); err != nil {
			return apperr.Storage(err, "resetting %s", name)
		}
	}
	return nil
}
