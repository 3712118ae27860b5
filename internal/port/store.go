package port

import (
	"context"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
)

// CommitStore is the durable table of commit records, keyed by (repository, sha).
// The store is a dumb persistence layer: it enforces the (repository, sha)
// uniqueness constraint but owns no other business rules.
type CommitStore interface {
	// FindByShaAndRepo returns the commit for (repository, sha), or ErrCommitNotFound.
	FindByShaAndRepo(ctx context.Context, repository, sha string) (*domain.Commit, error)

	// GetByID returns a commit by its record id, or ErrCommitNotFound.
	GetByID(ctx context.Context, id string) (*domain.Commit, error)

	// Insert persists a new commit record and returns it with its assigned id.
	// A prior record with the same (repository, sha) yields ErrCommitExists.
	Insert(ctx context.Context, c *domain.Commit) (*domain.Commit, error)

	// UpdateSummary sets the generated summary and status for a commit.
	UpdateSummary(ctx context.Context, id, summary, status string) error

	// AssignVersion claims a commit for a release. Commits already carrying a
	// version are never touched; the call is a no-op for them.
	AssignVersion(ctx context.Context, id, version string) error

	// DeleteAllForRepository wipes every commit for one repository and returns
	// the number of deleted records. Other repositories are untouched.
	DeleteAllForRepository(ctx context.Context, repository string) (int64, error)

	// ListByRepository returns all commits for a repository.
	ListByRepository(ctx context.Context, repository string) ([]domain.Commit, error)

	// ListByVersion returns the commits claimed by a release, newest first.
	ListByVersion(ctx context.Context, repository, version string) ([]domain.Commit, error)

	// ListOrderedByTimestamp returns one page of commits newest-first using
	// cursor-based pagination. An empty cursor starts at the newest commit;
	// the returned cursor is empty when no further page exists.
	ListOrderedByTimestamp(ctx context.Context, repository, cursor string, limit int) ([]domain.Commit, string, error)
}

// ReleaseStore persists release records. Releases are immutable once created.
type ReleaseStore interface {
	// CreateIfAbsent inserts a release, or returns the existing record when the
	// version is already known. The bool reports whether a row was created.
	CreateIfAbsent(ctx context.Context, r *domain.Release) (*domain.Release, bool, error)

	// GetByVersion returns a release by version, or ErrReleaseNotFound.
	GetByVersion(ctx context.Context, repository, version string) (*domain.Release, error)

	// ListReleases returns all releases for a repository, newest first by date.
	ListReleases(ctx context.Context, repository string) ([]domain.Release, error)
}
