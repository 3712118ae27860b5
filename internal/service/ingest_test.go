package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-digest/internal/adapter/store"
	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

const testRepo = "acme/widgets"

func newIngestFixture() (*IngestService, *store.MemoryStore, *fakeSummarizer, *fakeSourceRepo, *[]string) {
	memStore := store.NewMemoryStore()
	summarizer := &fakeSummarizer{}
	source := &fakeSourceRepo{}
	summaries := NewSummaryService(memStore, summarizer)

	svc := NewIngestService(memStore, source, summarizer, summaries, testRepo, "main")

	// Capture scheduled jobs instead of spawning goroutines.
	scheduled := &[]string{}
	svc.schedule = func(commitID string) {
		*scheduled = append(*scheduled, commitID)
	}
	return svc, memStore, summarizer, source, scheduled
}

func event(sha, message string) port.RepoCommit {
	return port.RepoCommit{
		Sha:         sha,
		Message:     message,
		Author:      "Ana",
		AuthorEmail: "ana@example.com",
		URL:         "https://github.com/" + testRepo + "/commit/" + sha,
		Timestamp:   time.Unix(1000, 0).UTC(),
	}
}

func TestIngestSavesNewCommitPending(t *testing.T) {
	svc, memStore, _, _, scheduled := newIngestFixture()

	results, err := svc.Ingest(context.Background(), []port.RepoCommit{event("abc1234def", "fix: null pointer")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.IngestSaved, results[0].Status)
	assert.NotEmpty(t, results[0].CommitID)

	saved, err := memStore.GetByID(context.Background(), results[0].CommitID)
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryPending, saved.SummaryStatus)
	assert.Equal(t, testRepo, saved.Repository)
	assert.False(t, saved.CreatedAt.IsZero())

	require.Len(t, *scheduled, 1, "one summarization job per new commit")
	assert.Equal(t, results[0].CommitID, (*scheduled)[0])
}

func TestIngestTwiceIsIdempotent(t *testing.T) {
	svc, memStore, _, _, scheduled := newIngestFixture()
	ctx := context.Background()
	ev := event("abc1234def", "fix: null pointer")

	first, err := svc.Ingest(ctx, []port.RepoCommit{ev})
	require.NoError(t, err)
	require.Equal(t, domain.IngestSaved, first[0].Status)

	second, err := svc.Ingest(ctx, []port.RepoCommit{ev})
	require.NoError(t, err)
	require.Equal(t, domain.IngestSkipped, second[0].Status)
	assert.Equal(t, domain.ReasonAlreadyExists, second[0].Reason)

	all, err := memStore.ListByRepository(ctx, testRepo)
	require.NoError(t, err)
	assert.Len(t, all, 1, "exactly one record per (repository, sha)")
	assert.Len(t, *scheduled, 1, "skipped commits never reschedule summarization")
}

func TestIngestEmptyBatchShortCircuits(t *testing.T) {
	svc, _, _, _, scheduled := newIngestFixture()

	results, err := svc.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, *scheduled)
}

func TestIngestMixedBatchReportsPerCommitOutcomes(t *testing.T) {
	svc, _, _, _, _ := newIngestFixture()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []port.RepoCommit{event("aaa111", "first")})
	require.NoError(t, err)

	results, err := svc.Ingest(ctx, []port.RepoCommit{
		event("aaa111", "first"),
		event("bbb222", "second"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.IngestSkipped, results[0].Status)
	assert.Equal(t, domain.IngestSaved, results[1].Status)
}

func TestRegenerateAllBatchRoundTrip(t *testing.T) {
	svc, memStore, summarizer, source, _ := newIngestFixture()
	ctx := context.Background()

	// Stale record that the wipe must remove, plus one for another repository
	// that must survive.
	_, err := memStore.Insert(ctx, &domain.Commit{
		Repository: testRepo, Sha: "stale01", Message: "old",
		Timestamp: time.Unix(1, 0), SummaryStatus: domain.SummaryCompleted,
	})
	require.NoError(t, err)
	other, err := memStore.Insert(ctx, &domain.Commit{
		Repository: "acme/other", Sha: "keep01", Message: "keep",
		Timestamp: time.Unix(1, 0), SummaryStatus: domain.SummaryCompleted,
	})
	require.NoError(t, err)

	source.pages = [][]port.RepoCommit{{
		event("abc1234def", "fix: null pointer"),
		event("fff9999aaa", "docs: typo"),
	}}

	// Key shorter than 7 chars still correlates, per the tolerant prefix match.
	summarizer.batch = func(commits []port.BatchInput) (map[string]port.CommitSummary, error) {
		require.Len(t, commits, 2)
		return map[string]port.CommitSummary{
			"abc123": {
				Title:       "- Fix null pointer dereference",
				Description: "- Guards against null input\n- Adds regression test",
			},
		}, nil
	}

	res, err := svc.RegenerateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Saved)
	assert.Empty(t, res.Errors)

	matched, err := memStore.FindByShaAndRepo(ctx, testRepo, "abc1234def")
	require.NoError(t, err)
	assert.Equal(t, "Fix null pointer dereference", matched.Title)
	assert.Equal(t, domain.SummaryCompleted, matched.SummaryStatus)
	lines := strings.Split(matched.Summary, "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "- "), "summary lines are dash bullets: %q", line)
	}

	// The commit with no summary in the batch response stays retryable.
	unmatched, err := memStore.FindByShaAndRepo(ctx, testRepo, "fff9999aaa")
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryFailed, unmatched.SummaryStatus)
	assert.Empty(t, unmatched.Summary)

	// Other repositories are untouched by the wipe.
	kept, err := memStore.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep01", kept.Sha)
}

func TestRegenerateAllBatchFailureMarksAllFailed(t *testing.T) {
	svc, memStore, summarizer, source, _ := newIngestFixture()
	ctx := context.Background()

	source.pages = [][]port.RepoCommit{{
		event("abc1234def", "fix: null pointer"),
		event("fff9999aaa", "docs: typo"),
	}}
	summarizer.batch = func([]port.BatchInput) (map[string]port.CommitSummary, error) {
		return nil, errors.New("decode response: invalid character")
	}

	res, err := svc.RegenerateAll(ctx)
	require.NoError(t, err, "a failed batch does not abort the run")
	assert.Equal(t, 2, res.Saved)

	all, err := memStore.ListByRepository(ctx, testRepo)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.Equal(t, domain.SummaryFailed, c.SummaryStatus)
	}
}

func TestRegenerateAllPaginatesUntilShortPage(t *testing.T) {
	svc, _, summarizer, source, _ := newIngestFixture()

	// One full page of 100, then a short page ends the fetch.
	full := make([]port.RepoCommit, 100)
	for i := range full {
		full[i] = event(fmt.Sprintf("full%03dsha", i), fmt.Sprintf("commit %d", i))
	}
	source.pages = [][]port.RepoCommit{full, {event("tail001", "the last one")}}

	summarizer.batch = func(commits []port.BatchInput) (map[string]port.CommitSummary, error) {
		assert.Len(t, commits, 101, "whole history goes through one batch call")
		return map[string]port.CommitSummary{"tail001": {Title: "Last", Description: "- last"}}, nil
	}

	res, err := svc.RegenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 101, res.Fetched)
	assert.Equal(t, 101, res.Saved)
	assert.Equal(t, 1, summarizer.batchCalls)
}

func TestRegenerateAllCollectsPerCommitSaveErrors(t *testing.T) {
	svc, memStore, summarizer, source, _ := newIngestFixture()
	ctx := context.Background()

	// Duplicate sha in the fetched history: the second insert fails but the
	// run continues.
	source.pages = [][]port.RepoCommit{{
		event("abc1234def", "fix: null pointer"),
		event("abc1234def", "fix: null pointer"),
		event("fff9999aaa", "docs: typo"),
	}}
	summarizer.batch = func([]port.BatchInput) (map[string]port.CommitSummary, error) {
		return map[string]port.CommitSummary{"abc1234": {Title: "Fix", Description: "- fix"}}, nil
	}

	res, err := svc.RegenerateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Saved)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "abc1234def", res.Errors[0].Sha)

	all, err := memStore.ListByRepository(ctx, testRepo)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
