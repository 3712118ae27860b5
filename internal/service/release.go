package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// ReleaseService reconciles tagged versions with stored commits.
//
// Reconciliation resolves the exact commit range between the previous release
// tag and the new tag through the source repository's compare API, so it stays
// correct under non-linear history (cherry-picks, rebases). A timestamp window
// is kept as fallback for the first release of a repository and for compare
// failures; it assumes commit timestamps are monotonic with tag order.
type ReleaseService struct {
	commits    port.CommitStore
	releases   port.ReleaseStore
	scm        port.SourceRepo
	repository string
}

// NewReleaseService creates a release service for one tracked repository.
func NewReleaseService(commits port.CommitStore, releases port.ReleaseStore, scm port.SourceRepo, repository string) *ReleaseService {
	return &ReleaseService{commits: commits, releases: releases, scm: scm, repository: repository}
}

// SyncResult reports the outcome of one tag sync.
type SyncResult struct {
	ReleaseID   string `json:"release_id"`
	Version     string `json:"version"`
	CommitCount int    `json:"commit_count"`
}

// SyncTag records a newly observed tag as a release and claims the commits it
// introduced. Release creation is idempotent on version, and a commit already
// claimed by a release is never reassigned, so re-syncing any tag is safe.
func (s *ReleaseService) SyncTag(ctx context.Context, version, tagSha string) (*SyncResult, error) {
	tagCommit, err := s.scm.GetCommit(ctx, s.repository, tagSha)
	if err != nil {
		return nil, fmt.Errorf("sync %s: resolve tag commit: %w", version, err)
	}
	tagDate := tagCommit.Timestamp

	all, err := s.releases.ListReleases(ctx, s.repository)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", version, err)
	}
	prev := previousRelease(all, version, tagSha, tagDate)

	rel, created, err := s.releases.CreateIfAbsent(ctx, &domain.Release{
		Version:    version,
		TagSha:     tagSha,
		Date:       tagDate,
		Repository: s.repository,
	})
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", version, err)
	}
	if !created {
		slog.Info("release already exists", "version", version, "release_id", rel.ID)
	}

	stored, err := s.commits.ListByRepository(ctx, s.repository)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", version, err)
	}

	selected := s.selectByRange(ctx, stored, prev, tagSha)
	if selected == nil {
		selected = selectByWindow(stored, prev, tagDate)
	}

	count := 0
	for _, c := range selected {
		if err := s.commits.AssignVersion(ctx, c.ID, rel.Version); err != nil {
			slog.Error("assign version failed", "sha", c.ShortSha(), "version", version, "error", err)
			continue
		}
		count++
	}

	slog.Info("release synced", "version", version, "tag", domain.ShortSha(tagSha), "commits", count)
	return &SyncResult{ReleaseID: rel.ID, Version: rel.Version, CommitCount: count}, nil
}

// previousRelease finds the most recent release preceding the tag being
// synced. The current tag is excluded so re-processing the same tag never
// picks itself as its own predecessor.
func previousRelease(releases []domain.Release, version, tagSha string, tagDate time.Time) *domain.Release {
	var prev *domain.Release
	for i := range releases {
		r := &releases[i]
		if r.TagSha == tagSha || r.Version == version {
			continue
		}
		if r.Date.After(tagDate) {
			continue
		}
		if prev == nil || r.Date.After(prev.Date) {
			prev = r
		}
	}
	return prev
}

// selectByRange picks the unclaimed stored commits whose shas fall in the
// prev...tag compare range. A nil return means the range could not be
// resolved and the caller should use the timestamp fallback.
func (s *ReleaseService) selectByRange(ctx context.Context, stored []domain.Commit, prev *domain.Release, tagSha string) []domain.Commit {
	if prev == nil {
		return nil
	}

	shas, err := s.scm.CompareRange(ctx, s.repository, prev.TagSha, tagSha)
	if err != nil {
		slog.Warn("compare range failed, falling back to timestamp window",
			"base", domain.ShortSha(prev.TagSha), "head", domain.ShortSha(tagSha), "error", err)
		return nil
	}

	inRange := make(map[string]bool, len(shas))
	for _, sha := range shas {
		inRange[sha] = true
	}

	selected := []domain.Commit{}
	for _, c := range stored {
		if c.Version == "" && inRange[c.Sha] {
			selected = append(selected, c)
		}
	}
	return selected
}

// selectByWindow picks the unclaimed stored commits authored in
// (prevRelease.Date, tagDate]. With no previous release the window opens at
// the epoch, claiming everything up to the tag.
func selectByWindow(stored []domain.Commit, prev *domain.Release, tagDate time.Time) []domain.Commit {
	var lower time.Time
	if prev != nil {
		lower = prev.Date
	}

	selected := []domain.Commit{}
	for _, c := range stored {
		if c.Version != "" {
			continue
		}
		if c.Timestamp.After(lower) && !c.Timestamp.After(tagDate) {
			selected = append(selected, c)
		}
	}
	return selected
}

// ListReleases returns all releases for the tracked repository, newest first,
// each annotated with its linked commits in display shape.
func (s *ReleaseService) ListReleases(ctx context.Context) ([]domain.ReleaseWithCommits, error) {
	releases, err := s.releases.ListReleases(ctx, s.repository)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}

	out := make([]domain.ReleaseWithCommits, 0, len(releases))
	for _, r := range releases {
		commits, err := s.commits.ListByVersion(ctx, s.repository, r.Version)
		if err != nil {
			return nil, fmt.Errorf("list releases: commits for %s: %w", r.Version, err)
		}

		digests := make([]domain.CommitDigest, 0, len(commits))
		for i := range commits {
			digests = append(digests, commits[i].Digest())
		}
		out = append(out, domain.ReleaseWithCommits{Release: r, Commits: digests})
	}
	return out, nil
}
