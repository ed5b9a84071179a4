package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/auth"
)

const localUserID = "user_id"

// AuthRequired validates the bearer identity claim and stashes the caller's
// user id in locals. Failures return 401 with no side effects.
func AuthRequired(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := tokens.Validate(c.Get("Authorization"))
		if err != nil {
			return fail(c, err)
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
