package port

import "context"

// BatchInput is one (sha, message) pair submitted for batch summarization.
type BatchInput struct {
	Sha     string
	Message string
}

// CommitSummary is the generated title/description pair for one commit.
// Description is free multi-line text; lines starting with "-" render as
// bullet points downstream.
type CommitSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summarizer abstracts the AI backend that turns commit messages into
// generated summaries. Implementations can target OpenAI, Ollama, or any
// chat-completions compatible API.
type Summarizer interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// SummarizeCommit generates a prose summary for a single commit message.
	SummarizeCommit(ctx context.Context, message string) (string, error)

	// SummarizeBatch generates title/description pairs for an ordered list of
	// commits in one logical request. The returned map is keyed by short sha
	// (first 7 hex characters). An empty or unparsable model response is an
	// error, never a success with empty content.
	SummarizeBatch(ctx context.Context, commits []BatchInput) (map[string]CommitSummary, error)
}
