package domain

import "time"

// PushEvent is the subset of a GitHub push webhook payload the service
// consumes. Only distinct commits on the tracked branch are ingested.
type PushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []PushCommit `json:"commits"`
}

// PushCommit is one commit entry inside a push event.
type PushCommit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	Distinct  bool      `json:"distinct"`
	Timestamp time.Time `json:"timestamp"`
	Author    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
}

// TrackedRef reports whether ref points at a branch the service ingests.
// Only the default main/master branch is tracked.
func TrackedRef(ref string) bool {
	return ref == "refs/heads/main" || ref == "refs/heads/master"
}
