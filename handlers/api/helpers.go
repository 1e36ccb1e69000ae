package api

import (
	"errors"
	"strconv"

	"webmail/middleware"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// t translates a message for the request language
func t(c *fiber.Ctx, id string) string {
	return utils.T(middleware.Localizer(c), id)
}

// paramID parses a positive integer route parameter
func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.BadRequestError("Invalid "+name, err)
	}
	return id, nil
}

// requireSelf checks that the user named in the route is the caller.
// Users can only act on their own mailbox.
func requireSelf(c *fiber.Ctx, param string) (int64, error) {
	id, err := paramID(c, param)
	if err != nil {
		return 0, err
	}
	if id != middleware.UserID(c) {
		return 0, utils.ForbiddenError(t(c, "auth_access_denied"), nil)
	}
	return id, nil
}

// storeError maps storage errors onto HTTP errors
func storeError(c *fiber.Ctx, err error, notFound string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return utils.NotFoundError(notFound, err)
	case errors.Is(err, storage.ErrDuplicate):
		return utils.ConflictError(err.Error(), err)
	default:
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
}

// parseBody decodes the request body into v and validates it
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return utils.BadRequestError(t(c, "error_invalid_data"), err)
	}
	if appErr := utils.ValidateStruct(v); appErr != nil {
		return appErr
	}
	return nil
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func success() fiber.Map {
	return fiber.Map{"success": true}
}
