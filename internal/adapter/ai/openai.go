package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
)

const (
	commitSystemPrompt = `You are a release-notes assistant. Summarize the given git commit message as short prose for a changelog reader. Reply with the summary only, no preamble.`

	batchSystemPrompt = `You are a release-notes assistant. You receive a list of git commits, each as "<short-sha>: <message>". Reply with a strict JSON object mapping each short sha to {"title": "...", "description": "..."}. Titles are one short line. Descriptions are multi-line; start each point with "- ". Reply with JSON only.`
)

// OpenAIConfig holds the configuration for a chat-completions endpoint.
type OpenAIConfig struct {
	BaseURL    string // e.g. https://api.openai.com/v1
	Model      string // e.g. gpt-4o-mini
	APIKey     string
	MaxRetries int           // rate-limit retries before giving up
	RetryBase  time.Duration // first backoff delay; doubles per attempt
}

// OpenAIProvider implements port.Summarizer against any OpenAI-compatible
// chat-completions API. Rate-limited calls retry with exponential backoff;
// every other failure propagates to the caller immediately.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	sleep      func(time.Duration)
}

// NewOpenAIProvider creates a new summarizer backed by a chat-completions API.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		sleep:      time.Sleep,
	}
}

// ModelName returns the chat model identifier.
func (o *OpenAIProvider) ModelName() string {
	return o.cfg.Model
}

// SummarizeCommit generates a prose summary for one commit message.
func (o *OpenAIProvider) SummarizeCommit(ctx context.Context, message string) (string, error) {
	content, err := o.chat(ctx, commitSystemPrompt, message, false)
	if err != nil {
		return "", fmt.Errorf("summarize commit: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("summarize commit: %w", port.ErrEmptySummary)
	}
	return content, nil
}

// SummarizeBatch generates title/description pairs for an ordered commit list
// in one request. The response is requested as strict JSON; a fenced code
// block around the JSON is tolerated and stripped before parsing.
func (o *OpenAIProvider) SummarizeBatch(ctx context.Context, commits []port.BatchInput) (map[string]port.CommitSummary, error) {
	var b strings.Builder
	for _, c := range commits {
		fmt.Fprintf(&b, "%s: %s\n\n", domain.ShortSha(c.Sha), c.Message)
	}

	content, err := o.chat(ctx, batchSystemPrompt, b.String(), true)
	if err != nil {
		return nil, fmt.Errorf("summarize batch: %w", err)
	}

	raw := stripCodeFence(content)
	var parsed map[string]port.CommitSummary
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("summarize batch: decode response: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("summarize batch: %w", port.ErrEmptySummary)
	}

	// Normalize keys to the 7-character short form the caller correlates on.
	out := make(map[string]port.CommitSummary, len(parsed))
	for sha, sum := range parsed {
		out[domain.ShortSha(sha)] = sum
	}
	return out, nil
}

// chat sends one system+user exchange and returns the completion text.
// HTTP 429 responses retry with doubling delay up to MaxRetries.
func (o *OpenAIProvider) chat(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	payload := map[string]interface{}{
		"model": o.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": 0.2,
	}
	if jsonMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	delay := o.cfg.RetryBase
	for attempt := 0; ; attempt++ {
		body, status, err := o.post(ctx, "/chat/completions", payload)
		if err != nil {
			return "", err
		}

		if status == http.StatusTooManyRequests {
			if attempt >= o.cfg.MaxRetries {
				return "", fmt.Errorf("after %d attempts: %w", attempt+1, port.ErrRateLimited)
			}
			o.sleep(delay)
			delay *= 2
			continue
		}

		if status != http.StatusOK {
			return "", fmt.Errorf("chat API error (%d): %s", status, string(body))
		}

		var resp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", port.ErrEmptySummary
		}
		return resp.Choices[0].Message.Content, nil
	}
}

// post is a helper for POST requests to the chat endpoint.
func (o *OpenAIProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// stripCodeFence removes a surrounding markdown code fence, if present.
// Models sometimes wrap the requested JSON in ```json ... ``` anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
