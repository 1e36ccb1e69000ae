package api

import (
	"time"

	"webmail/config"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// DateTimeHandler exposes the server clock in the configured zone
type DateTimeHandler struct {
	cfg config.DateTimeConfig
	now func() time.Time
}

// NewDateTimeHandler creates a new datetime handler
func NewDateTimeHandler(cfg config.DateTimeConfig) *DateTimeHandler {
	return &DateTimeHandler{cfg: cfg, now: time.Now}
}

// Config handles GET /api/datetime/config
func (h *DateTimeHandler) Config(c *fiber.Ctx) error {
	loc, err := h.cfg.Location()
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	now := h.now()
	return c.JSON(fiber.Map{
		"serverTime":     utils.FormatInZone(now, loc, h.cfg.DateTimeFormat),
		"serverDate":     utils.FormatInZone(now, loc, h.cfg.DateFormat),
		"serverTimeOnly": utils.FormatInZone(now, loc, h.cfg.TimeFormat),
		"timezone":       h.cfg.Timezone,
		"locale":         h.cfg.Locale,
		"formats": fiber.Map{
			"date":     h.cfg.DateFormat,
			"time":     h.cfg.TimeFormat,
			"datetime": h.cfg.DateTimeFormat,
		},
		"mysqlTimezone": utils.UTCOffset(now.In(loc)),
	})
}
