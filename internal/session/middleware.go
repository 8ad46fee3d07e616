package session

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LocalsKey is where the middleware stashes the session id for handlers.
const LocalsKey = "session_id"

// Middleware mints a session cookie on first contact and exposes the
// session id via fiber locals. The cookie carries only the identifier;
// document text stays server-side.
func Middleware(cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(cookieName)
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				HTTPOnly: true,
				SameSite: "Lax",
			})
		}

		c.Locals(LocalsKey, sessionID)
		return c.Next()
	}
}

// FromCtx returns the session id installed by Middleware.
func FromCtx(c *fiber.Ctx) string {
	if sessionID, ok := c.Locals(LocalsKey).(string); ok {
		return sessionID
	}
	return ""
}
