// Package store holds the in-memory project table shared by every pipeline
// leg. All mutation goes through Update, which applies pure patches to a
// copy of the record under the write lock.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

var ErrNotFound = errors.New("project not found")

// Patch transforms a project record. Patches must not retain or mutate the
// slices of their input beyond what Clone already copied.
type Patch func(types.Project) types.Project

// Guard inspects the current record before patches run; a non-nil error
// aborts the update without changing anything.
type Guard func(types.Project) error

type Store struct {
	mu    sync.RWMutex
	order []string // most recent first
	byID  map[string]types.Project
	now   func() time.Time
}

func New() *Store {
	return &Store{byID: make(map[string]types.Project), now: time.Now}
}

// Insert adds a project at the front of the list.
func (s *Store) Insert(p types.Project) types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Clone()
	ts := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts
	s.byID[p.ID] = p
	s.order = append([]string{p.ID}, s.order...)
	return p.Clone()
}

func (s *Store) Get(id string) (types.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return types.Project{}, false
	}
	return p.Clone(), true
}

// List returns snapshots in insertion order, most recent first.
func (s *Store) List() []types.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// FindClip locates a clip by id across all projects.
func (s *Store) FindClip(clipID string) (types.Project, types.Clip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		p := s.byID[id]
		if c, _, ok := p.ClipByID(clipID); ok {
			return p.Clone(), c, true
		}
	}
	return types.Project{}, types.Clip{}, false
}

func (s *Store) Update(id string, patches ...Patch) (types.Project, error) {
	return s.UpdateIf(id, nil, patches...)
}

// UpdateIf applies patches atomically when guard accepts the current record.
func (s *Store) UpdateIf(id string, guard Guard, patches ...Patch) (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok {
		return types.Project{}, ErrNotFound
	}
	if guard != nil {
		if err := guard(cur.Clone()); err != nil {
			return cur.Clone(), err
		}
	}
	next := Apply(cur.Clone(), patches...)
	next.ID = cur.ID
	next.SourceURL = cur.SourceURL
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now().UTC()
	s.byID[id] = next
	return next.Clone(), nil
}

// Apply folds patches over p in order.
func Apply(p types.Project, patches ...Patch) types.Project {
	for _, fn := range patches {
		if fn != nil {
			p = fn(p)
		}
	}
	return p
}
