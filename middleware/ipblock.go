package middleware

import (
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// BlockedIPGuard answers 429 while the client IP is blocked after too many
// failed logins
func BlockedIPGuard(blocker *storage.IPBlocker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := blocker.Status(c.IP())
		if !status.Blocked {
			return c.Next()
		}

		minutes := (status.TimeLeft + 59) / 60
		msg := utils.TWithData(Localizer(c), "auth_ip_blocked", map[string]interface{}{"Minutes": minutes})
		return utils.TooManyRequestsError(msg, nil).
			WithContext("blocked", true).
			WithContext("timeLeft", status.TimeLeft).
			WithContext("attempts", status.Attempts)
	}
}
