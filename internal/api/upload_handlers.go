package api

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/storage"
)

// POST /api/upload takes a multipart "file" and returns the blob URL plus the
// metadata clients need to build an attachment.
func (s *Server) uploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		return fail(c, apperrors.ErrValidation)
	}
	if s.blobs == nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage not configured")
	}
	if err := storage.ValidateFileHeader(fh, s.uploadMaxSize); err != nil {
		return fail(c, err)
	}

	f, err := fh.Open()
	if err != nil {
		return s.failLogged(c, err, "open upload")
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return s.failLogged(c, err, "read upload")
	}

	mime := fh.Header.Get("Content-Type")
	key := fmt.Sprintf("uploads/%s%s", uuid.NewString(), filepath.Ext(fh.Filename))
	url, err := s.blobs.Upload(c.Context(), key, mime, data)
	if err != nil {
		return s.failLogged(c, err, "upload file")
	}

	return c.JSON(fiber.Map{
		"url":      url,
		"fileName": fh.Filename,
		"size":     fh.Size,
		"mime":     mime,
		"type":     storage.KindForMime(mime),
	})
}
