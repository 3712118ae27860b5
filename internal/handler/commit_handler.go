package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/go-commit-digest/internal/port"
	"github.com/arturoeanton/go-commit-digest/internal/service"
)

// CommitHandler serves commit listings and bulk regeneration.
type CommitHandler struct {
	store      port.CommitStore
	ingest     *service.IngestService
	tracker    *JobTracker
	repository string
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(store port.CommitStore, ingest *service.IngestService, tracker *JobTracker, repository string) *CommitHandler {
	return &CommitHandler{store: store, ingest: ingest, tracker: tracker, repository: repository}
}

// Register sets up commit routes.
func (h *CommitHandler) Register(router fiber.Router) {
	router.Get("/commits", h.List)
	router.Post("/commits/regenerate", h.Regenerate)
}

// List returns one page of commits, newest first. The response carries an
// opaque cursor for the next page when more history exists. Pending and
// failed commits are returned as-is; their status tells consumers the summary
// is absent, not merely late.
func (h *CommitHandler) List(c fiber.Ctx) error {
	cursor := c.Query("cursor")
	limit := queryInt(c, "limit", 50)

	commits, next, err := h.store.ListOrderedByTimestamp(c.Context(), h.repository, cursor, limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{"commits": commits, "count": len(commits)}
	if next != "" {
		resp["next_cursor"] = next
	}
	return c.JSON(resp)
}

// Regenerate starts a full wipe-refetch-resummarize run and returns 202
// immediately. Progress is polled via the jobs endpoint.
func (h *CommitHandler) Regenerate(c fiber.Ctx) error {
	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, "regenerate")

	go func() {
		result, err := h.ingest.RegenerateAll(context.Background())
		if err != nil {
			h.tracker.Fail(jobID, err)
			return
		}
		h.tracker.Complete(jobID, result)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "regeneration started",
	})
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
