package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vmorozov/droplink/internal/models"
	"github.com/vmorozov/droplink/internal/services"
	"github.com/vmorozov/droplink/internal/storage"
)

// TransferHandler is the public upload/download gateway. It translates
// multipart requests and byte streams into lifecycle calls and maps the
// lifecycle errors onto HTTP statuses, without leaking storage detail.
type TransferHandler struct {
	links *services.LinkService
	blobs storage.BlobStore
}

func NewTransferHandler(links *services.LinkService, blobs storage.BlobStore) *TransferHandler {
	return &TransferHandler{links: links, blobs: blobs}
}

// Upload accepts the single file for a link.
func (h *TransferHandler) Upload(c *fiber.Ctx) error {
	linkID := c.Params("link_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to open uploaded file"})
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	_, err = h.links.AcceptUpload(c.Context(), linkID, file, fileHeader.Filename, mimeType, fileHeader.Size)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"message": "File uploaded successfully"})
	case errors.Is(err, services.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	case errors.Is(err, services.ErrAlreadyFulfilled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "File already uploaded"})
	case errors.Is(err, services.ErrLinkExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Link has expired"})
	case errors.Is(err, services.ErrInvalidState):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired link"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload failed"})
	}
}

// Download streams the file out exactly once. The blob is deleted when the
// stream finishes.
func (h *TransferHandler) Download(c *fiber.Ctx) error {
	linkID := c.Params("link_id")

	rc, link, err := h.links.FulfillDownload(c.Context(), linkID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	case errors.Is(err, services.ErrNotReady):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	case errors.Is(err, services.ErrAlreadyFulfilled):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Link already used"})
	case errors.Is(err, services.ErrLinkExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Link has expired"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Download failed"})
	}

	c.Attachment(link.DisplayName)
	if link.MimeType != "" {
		c.Set(fiber.HeaderContentType, link.MimeType)
	}
	// fasthttp closes the stream once the body is written, which is what
	// triggers the blob deletion.
	return c.SendStream(rc, int(link.ByteSize))
}

// Info returns the metadata preview without consuming the download.
func (h *TransferHandler) Info(c *fiber.Ctx) error {
	linkID := c.Params("link_id")

	link, err := h.links.Status(c.Context(), linkID)
	if errors.Is(err, services.ErrLinkNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch link"})
	}

	switch link.Status {
	case models.StatusAwaitingUpload:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "File not uploaded yet"})
	case models.StatusDownloaded:
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Link already used"})
	case models.StatusExpired:
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Link has expired"})
	}

	exists, err := h.blobs.Exists(c.Context(), link.StorageKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check file"})
	}
	if !exists {
		// Uploaded on record, blob gone underneath. Same surface as expiry.
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Link has expired"})
	}

	return c.JSON(fiber.Map{
		"id":         link.LinkID,
		"status":     link.Status,
		"created_at": link.CreatedAt,
		"expired_at": link.ExpiresAt,
		"filename":   link.DisplayName,
		"file_size":  link.ByteSize,
		"mime_type":  link.MimeType,
	})
}
