package service

import (
	"errors"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
)

// AckReason maps a pipeline error onto the human-readable reason carried in
// an error acknowledgement. Internal details never reach the client.
func AckReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return "invalid conversationId"
	case errors.Is(err, apperrors.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	default:
		return "internal error"
	}
}
