package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// fakeSummarizer implements port.Summarizer with programmable behavior.
type fakeSummarizer struct {
	perCommit func(message string) (string, error)
	batch     func(commits []port.BatchInput) (map[string]port.CommitSummary, error)

	perCommitCalls int
	batchCalls     int
}

func (f *fakeSummarizer) ModelName() string { return "fake-model" }

func (f *fakeSummarizer) SummarizeCommit(_ context.Context, message string) (string, error) {
	f.perCommitCalls++
	if f.perCommit != nil {
		return f.perCommit(message)
	}
	return "summary of: " + message, nil
}

func (f *fakeSummarizer) SummarizeBatch(_ context.Context, commits []port.BatchInput) (map[string]port.CommitSummary, error) {
	f.batchCalls++
	if f.batch != nil {
		return f.batch(commits)
	}
	return nil, errors.New("batch not configured")
}

// fakeSourceRepo implements port.SourceRepo from fixed data.
type fakeSourceRepo struct {
	pages      [][]port.RepoCommit
	commits    map[string]port.RepoCommit   // by sha
	ranges     map[string][]string          // "base...head" -> shas
	compareErr error
}

func (f *fakeSourceRepo) ListCommits(_ context.Context, _, _ string, page, _ int) ([]port.RepoCommit, error) {
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return nil, nil
}

func (f *fakeSourceRepo) GetCommit(_ context.Context, _, sha string) (*port.RepoCommit, error) {
	c, ok := f.commits[sha]
	if !ok {
		return nil, fmt.Errorf("unknown sha %s", sha)
	}
	return &c, nil
}

func (f *fakeSourceRepo) CompareRange(_ context.Context, _, base, head string) ([]string, error) {
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	shas, ok := f.ranges[base+"..."+head]
	if !ok {
		return nil, fmt.Errorf("unknown range %s...%s", base, head)
	}
	return shas, nil
}
