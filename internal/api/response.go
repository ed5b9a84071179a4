package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
)

// fail maps a service or store error onto the wire: known sentinels get
// their status and message, anything else is logged by the caller and
// surfaced as a generic 500.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return jsonError(c, fiber.StatusBadRequest, "invalid request")
	case errors.Is(err, apperrors.ErrMissingToken),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrInvalidCredentials):
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
	case errors.Is(err, apperrors.ErrForbidden):
		return jsonError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, apperrors.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "not found")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "server error")
	}
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}
