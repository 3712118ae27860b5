package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// MemoryStore is an in-memory implementation of port.CommitStore and
// port.ReleaseStore, used in tests and for local development without Postgres.
// It honors the same (repository, sha) uniqueness and version-claim guarantees
// as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	commits  map[string]*domain.Commit  // keyed by record id
	releases map[string]*domain.Release // keyed by version
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commits:  make(map[string]*domain.Commit),
		releases: make(map[string]*domain.Release),
	}
}

// --- Commits ---

func (s *MemoryStore) Insert(_ context.Context, c *domain.Commit) (*domain.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.commits {
		if existing.Repository == c.Repository && existing.Sha == c.Sha {
			return nil, port.ErrCommitExists
		}
	}

	saved := *c
	saved.ID = uuid.New().String()
	s.commits[saved.ID] = &saved

	out := saved
	return &out, nil
}

func (s *MemoryStore) FindByShaAndRepo(_ context.Context, repository, sha string) (*domain.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.commits {
		if c.Repository == repository && c.Sha == sha {
			out := *c
			return &out, nil
		}
	}
	return nil, port.ErrCommitNotFound
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commits[id]
	if !ok {
		return nil, port.ErrCommitNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) UpdateSummary(_ context.Context, id, summary, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commits[id]
	if !ok {
		return port.ErrCommitNotFound
	}
	c.Summary = summary
	c.SummaryStatus = status
	return nil
}

func (s *MemoryStore) AssignVersion(_ context.Context, id, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commits[id]
	if !ok {
		return port.ErrCommitNotFound
	}
	if c.Version != "" {
		return nil
	}
	c.Version = version
	return nil
}

func (s *MemoryStore) DeleteAllForRepository(_ context.Context, repository string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, c := range s.commits {
		if c.Repository == repository {
			delete(s.commits, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) ListByRepository(_ context.Context, repository string) ([]domain.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c *domain.Commit) bool {
		return c.Repository == repository
	}), nil
}

func (s *MemoryStore) ListByVersion(_ context.Context, repository, version string) ([]domain.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c *domain.Commit) bool {
		return c.Repository == repository && c.Version == version
	}), nil
}

func (s *MemoryStore) ListOrderedByTimestamp(_ context.Context, repository, cursor string, limit int) ([]domain.Commit, string, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	all := s.collect(func(c *domain.Commit) bool {
		return c.Repository == repository
	})
	s.mu.RUnlock()

	start := 0
	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		for i, c := range all {
			if c.Timestamp.Before(ts) || (c.Timestamp.Equal(ts) && c.ID < id) {
				start = i
				break
			}
			start = len(all)
		}
	}

	page := all[start:]
	next := ""
	if len(page) > limit {
		page = page[:limit]
		last := page[len(page)-1]
		next = encodeCursor(last.Timestamp, last.ID)
	}
	return page, next, nil
}

// collect returns matching commits sorted newest first. Callers hold the lock.
func (s *MemoryStore) collect(match func(*domain.Commit) bool) []domain.Commit {
	var out []domain.Commit
	for _, c := range s.commits {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// --- Releases ---

func (s *MemoryStore) CreateIfAbsent(_ context.Context, r *domain.Release) (*domain.Release, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.releases[r.Version]; ok {
		out := *existing
		return &out, false, nil
	}

	saved := *r
	saved.ID = uuid.New().String()
	s.releases[saved.Version] = &saved

	out := saved
	return &out, true, nil
}

func (s *MemoryStore) GetByVersion(_ context.Context, repository, version string) (*domain.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.releases[version]
	if !ok || r.Repository != repository {
		return nil, port.ErrReleaseNotFound
	}
	out := *r
	return &out, nil
}

func (s *MemoryStore) ListReleases(_ context.Context, repository string) ([]domain.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Release
	for _, r := range s.releases {
		if r.Repository == repository {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}
