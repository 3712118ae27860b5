package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// SummaryService runs AI summarization for single commits and owns the
// pending → completed/failed status transitions around it.
type SummaryService struct {
	store port.CommitStore
	ai    port.Summarizer
}

// NewSummaryService creates a new summary service.
func NewSummaryService(store port.CommitStore, ai port.Summarizer) *SummaryService {
	return &SummaryService{store: store, ai: ai}
}

// SummarizeCommit generates and persists the summary for one stored commit.
// Re-running on an already-completed commit is a no-op, so at-least-once job
// delivery is safe. A failed AI call marks the commit failed rather than
// retrying forever; the summarizer adapter already retried rate limits.
func (s *SummaryService) SummarizeCommit(ctx context.Context, commitID string) error {
	c, err := s.store.GetByID(ctx, commitID)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if c.SummaryStatus == domain.SummaryCompleted {
		return nil
	}

	summary, err := s.ai.SummarizeCommit(ctx, c.Message)
	if err != nil {
		if updErr := s.store.UpdateSummary(ctx, commitID, "", domain.SummaryFailed); updErr != nil {
			slog.Error("mark commit failed", "commit", c.ShortSha(), "error", updErr)
		}
		return fmt.Errorf("summarize %s: %w", c.ShortSha(), err)
	}

	if err := s.store.UpdateSummary(ctx, commitID, summary, domain.SummaryCompleted); err != nil {
		return fmt.Errorf("summarize %s: save: %w", c.ShortSha(), err)
	}
	return nil
}

// cleanTitle normalizes a model-generated title: leading bullet markers are
// stripped, only the first line survives, and overly long titles are cut at a
// word boundary around 64 characters.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "-*•")
	s = strings.TrimSpace(s)

	r := []rune(s)
	if len(r) <= 64 {
		return s
	}
	head := r[:64]
	cut := len(head)
	for i := len(head) - 1; i > 0; i-- {
		if head[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(head[:cut]), " .,;:-")
}
