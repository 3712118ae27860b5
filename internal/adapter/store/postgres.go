package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

const commitColumns = `id, repository, sha, message, COALESCE(title, ''), COALESCE(summary, ''),
	author, author_email, url, "timestamp", created_at, summary_status, COALESCE(version, '')`

// PostgresStore handles all relational database operations.
// It implements port.CommitStore and port.ReleaseStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB, used for running migrations.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Commits ---

// Insert persists a new commit record. The unique (repository, sha) index
// turns a concurrent double-ingest into ErrCommitExists instead of a
// duplicate row.
func (s *PostgresStore) Insert(ctx context.Context, c *domain.Commit) (*domain.Commit, error) {
	query := `INSERT INTO commits (repository, sha, message, title, summary, author, author_email, url, "timestamp", created_at, summary_status, version)
	          VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
	          RETURNING ` + commitColumns

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, query,
		c.Repository, c.Sha, c.Message, c.Title, c.Summary,
		c.Author, c.AuthorEmail, c.URL, c.Timestamp, createdAt, c.SummaryStatus, c.Version,
	)

	saved, err := scanCommit(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, port.ErrCommitExists
		}
		return nil, fmt.Errorf("insert commit: %w", err)
	}
	return saved, nil
}

// FindByShaAndRepo returns the commit for (repository, sha).
func (s *PostgresStore) FindByShaAndRepo(ctx context.Context, repository, sha string) (*domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE repository = $1 AND sha = $2`

	c, err := scanCommit(s.db.QueryRowContext(ctx, query, repository, sha))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrCommitNotFound
		}
		return nil, fmt.Errorf("find commit: %w", err)
	}
	return c, nil
}

// GetByID returns a commit by its record id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE id = $1`

	c, err := scanCommit(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrCommitNotFound
		}
		return nil, fmt.Errorf("get commit: %w", err)
	}
	return c, nil
}

// UpdateSummary sets the generated summary and status for a commit.
func (s *PostgresStore) UpdateSummary(ctx context.Context, id, summary, status string) error {
	query := `UPDATE commits SET summary = NULLIF($1, ''), summary_status = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, summary, status, id)
	return err
}

// AssignVersion claims a commit for a release. The version guard makes the
// claim conditional: a commit already belonging to a release stays untouched.
func (s *PostgresStore) AssignVersion(ctx context.Context, id, version string) error {
	query := `UPDATE commits SET version = $1 WHERE id = $2 AND version IS NULL`
	_, err := s.db.ExecContext(ctx, query, version, id)
	return err
}

// DeleteAllForRepository wipes every commit for one repository.
func (s *PostgresStore) DeleteAllForRepository(ctx context.Context, repository string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commits WHERE repository = $1`, repository)
	if err != nil {
		return 0, fmt.Errorf("delete commits: %w", err)
	}
	return res.RowsAffected()
}

// ListByRepository returns all commits for a repository, newest first.
func (s *PostgresStore) ListByRepository(ctx context.Context, repository string) ([]domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits
	          WHERE repository = $1 ORDER BY "timestamp" DESC, id DESC`
	return s.queryCommits(ctx, query, repository)
}

// ListByVersion returns the commits claimed by a release, newest first.
func (s *PostgresStore) ListByVersion(ctx context.Context, repository, version string) ([]domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits
	          WHERE repository = $1 AND version = $2 ORDER BY "timestamp" DESC, id DESC`
	return s.queryCommits(ctx, query, repository, version)
}

// ListOrderedByTimestamp returns one page of commits newest-first using
// keyset pagination on (timestamp, id).
func (s *PostgresStore) ListOrderedByTimestamp(ctx context.Context, repository, cursor string, limit int) ([]domain.Commit, string, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + commitColumns + ` FROM commits WHERE repository = $1`
	args := []interface{}{repository}

	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("list commits: %w", err)
		}
		query += ` AND ("timestamp", id) < ($2, $3)`
		args = append(args, ts, id)
	}

	query += fmt.Sprintf(` ORDER BY "timestamp" DESC, id DESC LIMIT %d`, limit+1)

	commits, err := s.queryCommits(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(commits) > limit {
		commits = commits[:limit]
		last := commits[len(commits)-1]
		next = encodeCursor(last.Timestamp, last.ID)
	}
	return commits, next, nil
}

func (s *PostgresStore) queryCommits(ctx context.Context, query string, args ...interface{}) ([]domain.Commit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var commits []domain.Commit
	for rows.Next() {
		var c domain.Commit
		if err := rows.Scan(
			&c.ID, &c.Repository, &c.Sha, &c.Message, &c.Title, &c.Summary,
			&c.Author, &c.AuthorEmail, &c.URL, &c.Timestamp, &c.CreatedAt,
			&c.SummaryStatus, &c.Version,
		); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func scanCommit(row *sql.Row) (*domain.Commit, error) {
	var c domain.Commit
	err := row.Scan(
		&c.ID, &c.Repository, &c.Sha, &c.Message, &c.Title, &c.Summary,
		&c.Author, &c.AuthorEmail, &c.URL, &c.Timestamp, &c.CreatedAt,
		&c.SummaryStatus, &c.Version,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Releases ---

const releaseColumns = `id, version, tag_sha, date, repository, created_at`

// CreateIfAbsent inserts a release, or returns the existing record when the
// version is already known. Re-creating a release is idempotent.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, r *domain.Release) (*domain.Release, bool, error) {
	query := `INSERT INTO releases (version, tag_sha, date, repository)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (version) DO NOTHING
	          RETURNING ` + releaseColumns

	var created domain.Release
	err := s.db.QueryRowContext(ctx, query, r.Version, r.TagSha, r.Date, r.Repository).Scan(
		&created.ID, &created.Version, &created.TagSha, &created.Date, &created.Repository, &created.CreatedAt,
	)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create release: %w", err)
	}

	existing, err := s.GetByVersion(ctx, r.Repository, r.Version)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByVersion returns a release by version.
func (s *PostgresStore) GetByVersion(ctx context.Context, repository, version string) (*domain.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE repository = $1 AND version = $2`

	var r domain.Release
	err := s.db.QueryRowContext(ctx, query, repository, version).Scan(
		&r.ID, &r.Version, &r.TagSha, &r.Date, &r.Repository, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrReleaseNotFound
		}
		return nil, fmt.Errorf("get release: %w", err)
	}
	return &r, nil
}

// ListReleases returns all releases for a repository, newest first by date.
func (s *PostgresStore) ListReleases(ctx context.Context, repository string) ([]domain.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE repository = $1 ORDER BY date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var releases []domain.Release
	for rows.Next() {
		var r domain.Release
		if err := rows.Scan(&r.ID, &r.Version, &r.TagSha, &r.Date, &r.Repository, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

// --- Cursor encoding ---

// encodeCursor packs a (timestamp, id) pagination position into an opaque string.
func encodeCursor(ts time.Time, id string) string {
	return fmt.Sprintf("%d_%s", ts.UnixNano(), id)
}

func decodeCursor(cursor string) (time.Time, string, error) {
	nanos, id, ok := strings.Cut(cursor, "_")
	if !ok {
		return time.Time{}, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor %q", cursor)
	}
	return time.Unix(0, n).UTC(), id, nil
}
