package domain

import "time"

// Release represents one tagged version. Identified by its version string and
// immutable once created; commits link to it via Commit.Version.
type Release struct {
	ID         string    `json:"id"         db:"id"`
	Version    string    `json:"version"    db:"version"`
	TagSha     string    `json:"tag_sha"    db:"tag_sha"`
	Date       time.Time `json:"date"       db:"date"`
	Repository string    `json:"repository" db:"repository"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ReleaseWithCommits is a release annotated with its linked commits,
// newest release first in listings.
type ReleaseWithCommits struct {
	Release
	Commits []CommitDigest `json:"commits"`
}
