package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arturoeanton/go-commit-digest/internal/port"
)

// GitHubProvider implements port.SourceRepo using the GitHub REST API.
// A bearer token raises the rate limit from 60 to 5000 requests/hour;
// an empty token is allowed for public repositories.
type GitHubProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubProvider creates a GitHub-backed source repository client.
func NewGitHubProvider(baseURL, token string) *GitHubProvider {
	return &GitHubProvider{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiCommit mirrors the commit object shape of the GitHub commits API.
type apiCommit struct {
	Sha    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

func (a apiCommit) toPort() port.RepoCommit {
	return port.RepoCommit{
		Sha:         a.Sha,
		Message:     a.Commit.Message,
		Author:      a.Commit.Author.Name,
		AuthorEmail: a.Commit.Author.Email,
		URL:         a.HTMLURL,
		Timestamp:   a.Commit.Author.Date,
	}
}

// ListCommits returns one page of branch history, newest first.
func (g *GitHubProvider) ListCommits(ctx context.Context, repo, branch string, page, perPage int) ([]port.RepoCommit, error) {
	path := fmt.Sprintf("/repos/%s/commits?sha=%s&per_page=%d&page=%d",
		repo, url.QueryEscape(branch), perPage, page)

	var commits []apiCommit
	if err := g.get(ctx, path, &commits); err != nil {
		return nil, fmt.Errorf("github: list commits: %w", err)
	}

	out := make([]port.RepoCommit, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.toPort())
	}
	return out, nil
}

// GetCommit fetches a single commit by sha, including its authored timestamp.
func (g *GitHubProvider) GetCommit(ctx context.Context, repo, sha string) (*port.RepoCommit, error) {
	var c apiCommit
	if err := g.get(ctx, fmt.Sprintf("/repos/%s/commits/%s", repo, sha), &c); err != nil {
		return nil, fmt.Errorf("github: get commit %s: %w", sha, err)
	}
	rc := c.toPort()
	return &rc, nil
}

// CompareRange resolves the ordered set of commit shas in base...head.
func (g *GitHubProvider) CompareRange(ctx context.Context, repo, base, head string) ([]string, error) {
	var compare struct {
		Commits []apiCommit `json:"commits"`
	}
	path := fmt.Sprintf("/repos/%s/compare/%s...%s", repo, url.PathEscape(base), url.PathEscape(head))
	if err := g.get(ctx, path, &compare); err != nil {
		return nil, fmt.Errorf("github: compare %s...%s: %w", base, head, err)
	}

	shas := make([]string, 0, len(compare.Commits))
	for _, c := range compare.Commits {
		shas = append(shas, c.Sha)
	}
	return shas, nil
}

// get is a helper for GET requests against the GitHub API.
func (g *GitHubProvider) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
