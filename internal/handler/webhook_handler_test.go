package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-digest/internal/adapter/store"
	"github.com/arturoeanton/go-commit-digest/internal/port"
	"github.com/arturoeanton/go-commit-digest/internal/service"
)

const (
	testRepo   = "acme/widgets"
	testSecret = "hook-secret"
)

type stubSummarizer struct{}

func (stubSummarizer) ModelName() string { return "stub" }
func (stubSummarizer) SummarizeCommit(context.Context, string) (string, error) {
	return "a summary", nil
}
func (stubSummarizer) SummarizeBatch(context.Context, []port.BatchInput) (map[string]port.CommitSummary, error) {
	return nil, nil
}

func newWebhookApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	summaries := service.NewSummaryService(memStore, stubSummarizer{})
	ingest := service.NewIngestService(memStore, nil, stubSummarizer{}, summaries, testRepo, "main")

	app := fiber.New()
	NewWebhookHandler(ingest, testRepo, testSecret).Register(app)
	return app, memStore
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushPayload(t *testing.T, ref, repo string, commits ...map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"ref":        ref,
		"repository": map[string]string{"full_name": repo},
		"commits":    commits,
	})
	require.NoError(t, err)
	return body
}

func pushCommit(sha string, distinct bool) map[string]interface{} {
	return map[string]interface{}{
		"id":        sha,
		"message":   "fix: something about " + sha,
		"url":       "https://github.com/" + testRepo + "/commit/" + sha,
		"distinct":  distinct,
		"timestamp": "2024-05-01T12:00:00Z",
		"author":    map[string]string{"name": "Ana", "email": "ana@example.com"},
	}
}

func postPush(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestHandlePushIngestsDistinctCommits(t *testing.T) {
	app, memStore := newWebhookApp(t)

	body := pushPayload(t, "refs/heads/main", testRepo,
		pushCommit("abc1234", true),
		pushCommit("ddd5678", false), // replayed, not newly introduced
	)
	resp := postPush(t, app, body, sign(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Processed int `json:"processed"`
		Saved     int `json:"saved"`
		Skipped   int `json:"skipped"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Processed)
	assert.Equal(t, 1, out.Saved)

	_, err := memStore.FindByShaAndRepo(context.Background(), testRepo, "abc1234")
	assert.NoError(t, err)
	_, err = memStore.FindByShaAndRepo(context.Background(), testRepo, "ddd5678")
	assert.ErrorIs(t, err, port.ErrCommitNotFound, "non-distinct commits are not ingested")
}

func TestHandlePushRejectsBadSignature(t *testing.T) {
	app, memStore := newWebhookApp(t)

	body := pushPayload(t, "refs/heads/main", testRepo, pushCommit("abc1234", true))
	resp := postPush(t, app, body, "sha256=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	all, err := memStore.ListByRepository(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandlePushIgnoresUntrackedRef(t *testing.T) {
	app, memStore := newWebhookApp(t)

	body := pushPayload(t, "refs/heads/feature/ui", testRepo, pushCommit("abc1234", true))
	resp := postPush(t, app, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	all, err := memStore.ListByRepository(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandlePushIgnoresOtherRepository(t *testing.T) {
	app, memStore := newWebhookApp(t)

	body := pushPayload(t, "refs/heads/main", "someone/else", pushCommit("abc1234", true))
	resp := postPush(t, app, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	all, err := memStore.ListByRepository(context.Background(), "someone/else")
	require.NoError(t, err)
	assert.Empty(t, all)
}
