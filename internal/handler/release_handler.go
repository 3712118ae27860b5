package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-digest/internal/service"
)

// ReleaseHandler serves release listings and tag syncing.
type ReleaseHandler struct {
	releases *service.ReleaseService
}

// NewReleaseHandler creates a new release handler.
func NewReleaseHandler(releases *service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{releases: releases}
}

// Register sets up release routes.
func (h *ReleaseHandler) Register(router fiber.Router) {
	router.Get("/releases", h.List)
	router.Post("/releases/sync", h.Sync)
}

// List returns all releases, newest first, with their linked commits.
func (h *ReleaseHandler) List(c fiber.Ctx) error {
	releases, err := h.releases.ListReleases(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"releases": releases, "count": len(releases)})
}

// Sync records a tag as a release and claims the commits it introduced.
func (h *ReleaseHandler) Sync(c fiber.Ctx) error {
	var body struct {
		Version string `json:"version"`
		TagSha  string `json:"tag_sha"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.Version == "" || body.TagSha == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "version and tag_sha are required"})
	}

	result, err := h.releases.SyncTag(c.Context(), body.Version, body.TagSha)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}
