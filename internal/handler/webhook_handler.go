package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-digest/internal/domain"
	"github.com/arturoeanton/go-commit-digest/internal/port"
	"github.com/arturoeanton/go-commit-digest/internal/service"
)

// WebhookHandler receives GitHub push events for the tracked repository.
type WebhookHandler struct {
	ingest     *service.IngestService
	repository string
	secret     string
}

// NewWebhookHandler creates a new webhook handler. An empty secret disables
// signature verification.
func NewWebhookHandler(ingest *service.IngestService, repository, secret string) *WebhookHandler {
	return &WebhookHandler{ingest: ingest, repository: repository, secret: secret}
}

// Register sets up webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/webhook/push", h.HandlePush)
}

// HandlePush ingests the distinct commits of a push event. Pushes to other
// branches or repositories are acknowledged and ignored.
func (h *WebhookHandler) HandlePush(c fiber.Ctx) error {
	body := c.Body()

	if h.secret != "" && !h.verifySignature(body, c.Get("X-Hub-Signature-256")) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	var event domain.PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	if !domain.TrackedRef(event.Ref) {
		return c.JSON(fiber.Map{"skipped": "untracked ref", "ref": event.Ref})
	}
	if event.Repository.FullName != h.repository {
		return c.JSON(fiber.Map{"skipped": "untracked repository", "repository": event.Repository.FullName})
	}

	events := make([]port.RepoCommit, 0, len(event.Commits))
	for _, pc := range event.Commits {
		if !pc.Distinct {
			continue
		}
		events = append(events, port.RepoCommit{
			Sha:         pc.ID,
			Message:     pc.Message,
			Author:      pc.Author.Name,
			AuthorEmail: pc.Author.Email,
			URL:         pc.URL,
			Timestamp:   pc.Timestamp,
		})
	}

	results, err := h.ingest.Ingest(c.Context(), events)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	saved, skipped := 0, 0
	for _, r := range results {
		switch r.Status {
		case domain.IngestSaved:
			saved++
		case domain.IngestSkipped:
			skipped++
		}
	}

	slog.Info("push processed", "ref", event.Ref, "saved", saved, "skipped", skipped)
	return c.JSON(fiber.Map{
		"processed": len(results),
		"saved":     saved,
		"skipped":   skipped,
		"results":   results,
	})
}

// verifySignature checks the X-Hub-Signature-256 HMAC over the raw body.
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}
