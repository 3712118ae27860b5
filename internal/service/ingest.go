package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// IngestService turns raw commit events into stored commit records.
// New commits are inserted pending and get a fire-and-forget summarization
// job; known commits are reported as skipped, which is not an error.
type IngestService struct {
	store      port.CommitStore
	scm        port.SourceRepo
	ai         port.Summarizer
	summaries  *SummaryService
	repository string
	branch     string

	// schedule dispatches an async summarization job for a new commit.
	// Replaceable in tests to observe scheduling synchronously.
	schedule func(commitID string)
}

// NewIngestService creates a new ingestion service for one tracked repository.
func NewIngestService(store port.CommitStore, scm port.SourceRepo, ai port.Summarizer, summaries *SummaryService, repository, branch string) *IngestService {
	s := &IngestService{
		store:      store,
		scm:        scm,
		ai:         ai,
		summaries:  summaries,
		repository: repository,
		branch:     branch,
	}
	s.schedule = s.scheduleSummary
	return s
}

// Ingest processes a batch of commit events sequentially in input order.
// The returned outcomes enumerate saved, skipped, and failed commits; a
// single failing event never aborts the batch. An empty batch short-circuits
// without touching the store.
func (s *IngestService) Ingest(ctx context.Context, events []port.RepoCommit) ([]domain.IngestResult, error) {
	if len(events) == 0 {
		return nil, nil
	}

	results := make([]domain.IngestResult, 0, len(events))
	for _, ev := range events {
		results = append(results, s.ingestOne(ctx, ev))
	}
	return results, nil
}

func (s *IngestService) ingestOne(ctx context.Context, ev port.RepoCommit) domain.IngestResult {
	existing, err := s.store.FindByShaAndRepo(ctx, s.repository, ev.Sha)
	if err == nil {
		return domain.IngestResult{
			Sha:      ev.Sha,
			Status:   domain.IngestSkipped,
			Reason:   domain.ReasonAlreadyExists,
			CommitID: existing.ID,
		}
	}
	if !errors.Is(err, port.ErrCommitNotFound) {
		return domain.IngestResult{Sha: ev.Sha, Status: domain.IngestFailed, Reason: err.Error()}
	}

	c := &domain.Commit{
		Repository:    s.repository,
		Sha:           ev.Sha,
		Message:       ev.Message,
		Author:        ev.Author,
		AuthorEmail:   ev.AuthorEmail,
		URL:           ev.URL,
		Timestamp:     ev.Timestamp,
		CreatedAt:     time.Now().UTC(),
		SummaryStatus: domain.SummaryPending,
	}

	saved, err := s.store.Insert(ctx, c)
	if errors.Is(err, port.ErrCommitExists) {
		// Lost a race with a concurrent ingestion of the same event.
		return domain.IngestResult{Sha: ev.Sha, Status: domain.IngestSkipped, Reason: domain.ReasonAlreadyExists}
	}
	if err != nil {
		return domain.IngestResult{Sha: ev.Sha, Status: domain.IngestFailed, Reason: err.Error()}
	}

	s.schedule(saved.ID)
	slog.Info("commit ingested", "sha", domain.ShortSha(ev.Sha), "commit_id", saved.ID)
	return domain.IngestResult{Sha: ev.Sha, Status: domain.IngestSaved, CommitID: saved.ID}
}

// scheduleSummary runs summarization out-of-band: the ingesting request
// neither blocks on nor observes its completion.
func (s *IngestService) scheduleSummary(commitID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.summaries.SummarizeCommit(ctx, commitID); err != nil {
			slog.Error("async summarization failed", "commit_id", commitID, "error", err)
		}
	}()
}

// ShaError records one commit that could not be saved during regeneration.
type ShaError struct {
	Sha string `json:"sha"`
	Err string `json:"error"`
}

// RegenerateResult reports the outcome of a full regeneration run.
type RegenerateResult struct {
	Deleted int64      `json:"deleted"`
	Fetched int        `json:"fetched"`
	Saved   int        `json:"saved"`
	Errors  []ShaError `json:"errors,omitempty"`
}

// RegenerateAll wipes the repository's stored commits, refetches the complete
// branch history, summarizes the whole set in one batch call, and reinserts
// every commit with its resolved title/summary already attached. Per-commit
// save failures are collected, not fatal; a failed or unparsable batch leaves
// every commit stored with status failed.
//
// The delete-then-refetch sequence is not atomic. A crash mid-run leaves a
// partially empty store; re-running the regeneration recovers.
func (s *IngestService) RegenerateAll(ctx context.Context) (*RegenerateResult, error) {
	deleted, err := s.store.DeleteAllForRepository(ctx, s.repository)
	if err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}
	slog.Info("commit store wiped", "repository", s.repository, "deleted", deleted)

	history, err := s.fetchFullHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("regenerate: fetch history: %w", err)
	}

	res := &RegenerateResult{Deleted: deleted, Fetched: len(history)}
	if len(history) == 0 {
		return res, nil
	}

	batch := make([]port.BatchInput, 0, len(history))
	for _, rc := range history {
		batch = append(batch, port.BatchInput{Sha: rc.Sha, Message: rc.Message})
	}

	summaries, err := s.ai.SummarizeBatch(ctx, batch)
	if err != nil {
		// Every commit in the batch goes in without a summary, status failed,
		// so a later regeneration can retry them.
		slog.Error("batch summarization failed", "commits", len(batch), "error", err)
		summaries = nil
	}

	now := time.Now().UTC()
	for _, rc := range history {
		c := &domain.Commit{
			Repository:    s.repository,
			Sha:           rc.Sha,
			Message:       rc.Message,
			Author:        rc.Author,
			AuthorEmail:   rc.AuthorEmail,
			URL:           rc.URL,
			Timestamp:     rc.Timestamp,
			CreatedAt:     now,
			SummaryStatus: domain.SummaryFailed,
		}
		if sum, ok := matchSummary(summaries, rc.Sha); ok {
			c.Title = cleanTitle(sum.Title)
			c.Summary = sum.Description
			c.SummaryStatus = domain.SummaryCompleted
		}

		if _, err := s.store.Insert(ctx, c); err != nil {
			res.Errors = append(res.Errors, ShaError{Sha: rc.Sha, Err: err.Error()})
			continue
		}
		res.Saved++
	}

	slog.Info("regeneration complete",
		"repository", s.repository,
		"deleted", res.Deleted, "fetched", res.Fetched, "saved", res.Saved, "errors", len(res.Errors),
	)
	return res, nil
}

// matchSummary correlates a batch summary to a commit by short sha. Models
// occasionally return keys shorter than 7 characters, so any key that is a
// prefix of the full sha also matches.
func matchSummary(summaries map[string]port.CommitSummary, sha string) (port.CommitSummary, bool) {
	if sum, ok := summaries[domain.ShortSha(sha)]; ok {
		return sum, true
	}
	for key, sum := range summaries {
		if key != "" && strings.HasPrefix(sha, key) {
			return sum, true
		}
	}
	return port.CommitSummary{}, false
}

// fetchFullHistory pages through the branch history until a short page
// signals end-of-data.
func (s *IngestService) fetchFullHistory(ctx context.Context) ([]port.RepoCommit, error) {
	const perPage = 100

	var all []port.RepoCommit
	for page := 1; ; page++ {
		commits, err := s.scm.ListCommits(ctx, s.repository, s.branch, page, perPage)
		if err != nil {
			return nil, err
		}
		all = append(all, commits...)
		if len(commits) < perPage {
			return all, nil
		}
	}
}
