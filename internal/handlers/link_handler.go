package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vmorozov/droplink/internal/models"
	"github.com/vmorozov/droplink/internal/services"
)

// LinkHandler serves the owner-facing link management endpoints.
type LinkHandler struct {
	links   *services.LinkService
	baseURL string
}

func NewLinkHandler(links *services.LinkService, baseURL string) *LinkHandler {
	return &LinkHandler{links: links, baseURL: baseURL}
}

func (h *LinkHandler) summary(link models.Link) fiber.Map {
	return fiber.Map{
		"id":         link.LinkID,
		"upload_url": h.baseURL + "/api/upload/" + link.LinkID,
		"status":     link.Status,
		"created_at": link.CreatedAt,
	}
}

// Create allocates a new single-use upload link for the authenticated owner.
func (h *LinkHandler) Create(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("user_id").(string)
	if !ok || ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user"})
	}

	link, err := h.links.Create(c.Context(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create link"})
	}

	return c.Status(fiber.StatusCreated).JSON(h.summary(link))
}

// List returns the owner's links, newest first.
func (h *LinkHandler) List(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("user_id").(string)
	if !ok || ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user"})
	}

	links, err := h.links.ListByOwner(c.Context(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list links"})
	}

	out := make([]fiber.Map, 0, len(links))
	for _, link := range links {
		out = append(out, h.summary(link))
	}
	return c.JSON(out)
}

// Status is the public status lookup. It never mutates the link.
func (h *LinkHandler) Status(c *fiber.Ctx) error {
	link, err := h.links.Status(c.Context(), c.Params("link_id"))
	if errors.Is(err, services.ErrLinkNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch link"})
	}

	return c.JSON(h.summary(link))
}
