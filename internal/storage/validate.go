package storage

import (
	"mime/multipart"
	"strings"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

// ValidateFileHeader rejects empty and oversized uploads before any bytes
// are read.
func ValidateFileHeader(h *multipart.FileHeader, maxSize int64) error {
	if h == nil || h.Size == 0 || h.Size > maxSize {
		return apperrors.ErrValidation
	}
	return nil
}

// KindForMime maps a content type onto an attachment kind; anything
// unrecognized is a generic file.
func KindForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.AttachmentImage
	case strings.HasPrefix(mime, "audio/"):
		return models.AttachmentAudio
	case strings.HasPrefix(mime, "video/"):
		return models.AttachmentVideo
	default:
		return models.AttachmentFile
	}
}
