package middleware

import (
	"errors"

	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error returned by a handler as JSON.
// AppErrors keep their status, message and context fields; anything else
// becomes a generic 500 so internal causes never reach the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= fiber.StatusInternalServerError {
			utils.Log.Error("%s %s: %v", c.Method(), c.Path(), appErr)
		} else if appErr.Err != nil {
			utils.Log.Debug("%s %s: %v", c.Method(), c.Path(), appErr)
		}
		return c.Status(appErr.Code).JSON(appErr.Body())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	utils.Log.Error("%s %s: unhandled error: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": utils.T(Localizer(c), "error_internal"),
	})
}

// NotFound answers routes nobody registered
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundError(utils.T(Localizer(c), "error_not_found"), nil)
}
