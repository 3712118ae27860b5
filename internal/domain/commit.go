package domain

import "time"

// Commit represents one commit observed on the tracked branch.
// Identity is (repository, sha); a sha alone is not unique across repositories.
type Commit struct {
	ID            string    `json:"id"             db:"id"`
	Repository    string    `json:"repository"     db:"repository"`
	Sha           string    `json:"sha"            db:"sha"`
	Message       string    `json:"message"        db:"message"`
	Title         string    `json:"title,omitempty"   db:"title"`
	Summary       string    `json:"summary,omitempty" db:"summary"`
	Author        string    `json:"author"         db:"author"`
	AuthorEmail   string    `json:"author_email"   db:"author_email"`
	URL           string    `json:"url"            db:"url"`
	Timestamp     time.Time `json:"timestamp"      db:"timestamp"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	SummaryStatus string    `json:"summary_status" db:"summary_status"` // pending, completed, failed
	Version       string    `json:"version,omitempty" db:"version"`     // empty until claimed by a release
}

// ShortSha returns the first 7 characters of the commit sha, used as the
// correlation key in batch summary responses.
func (c *Commit) ShortSha() string {
	return ShortSha(c.Sha)
}

// ShortSha shortens a full commit hash to its 7-character form.
func ShortSha(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Summary status constants.
const (
	SummaryPending   = "pending"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
)

// Ingestion outcome constants.
const (
	IngestSaved   = "saved"
	IngestSkipped = "skipped"
	IngestFailed  = "failed"

	ReasonAlreadyExists = "already_exists"
)

// IngestResult is the per-commit outcome of an ingestion batch.
type IngestResult struct {
	Sha      string `json:"sha"`
	Status   string `json:"status"` // saved, skipped, failed
	Reason   string `json:"reason,omitempty"`
	CommitID string `json:"commit_id,omitempty"`
}

// CommitDigest is the short display-oriented projection of a commit,
// used when listing releases with their linked commits.
type CommitDigest struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Digest projects a commit to its display shape. Commits without a generated
// title fall back to the first line of the raw message.
func (c *Commit) Digest() CommitDigest {
	title := c.Title
	if title == "" {
		title = firstLine(c.Message)
	}
	return CommitDigest{
		Title:     title,
		Summary:   c.Summary,
		Author:    c.Author,
		URL:       c.URL,
		Timestamp: c.Timestamp,
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return s[:i]
		}
	}
	return s
}
