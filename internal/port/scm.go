package port

import (
	"context"
	"time"
)

// RepoCommit is a commit as reported by the source-repository API.
type RepoCommit struct {
	Sha         string
	Message     string
	Author      string
	AuthorEmail string
	URL         string
	Timestamp   time.Time
}

// SourceRepo abstracts the hosted repository query API (GitHub REST).
// Authenticated access raises the practical rate limit; unauthenticated
// access works with a much lower one.
type SourceRepo interface {
	// ListCommits returns one page of branch history, newest first.
	// A page shorter than perPage signals end-of-data.
	ListCommits(ctx context.Context, repo, branch string, page, perPage int) ([]RepoCommit, error)

	// GetCommit fetches a single commit by sha, including its authored timestamp.
	GetCommit(ctx context.Context, repo, sha string) (*RepoCommit, error)

	// CompareRange resolves the ordered set of commit shas reachable from head
	// but not from base (the base...head compare range).
	CompareRange(ctx context.Context, repo, base, head string) ([]string, error)
}
