package api

import (
	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// StorageHandler reports quota usage
type StorageHandler struct {
	users        *storage.UserStore
	files        *storage.FileStore
	defaultQuota int64
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(users *storage.UserStore, files *storage.FileStore, defaultQuota int64) *StorageHandler {
	return &StorageHandler{users: users, files: files, defaultQuota: defaultQuota}
}

func (h *StorageHandler) info(c *fiber.Ctx, userID int64) (models.StorageInfo, error) {
	used, err := h.files.Usage(userID)
	if err != nil {
		return models.StorageInfo{}, err
	}
	user := middleware.CurrentUser(c)
	if user != nil && user.StorageUsed != used {
		if err := h.users.SetStorageUsed(c.UserContext(), userID, used); err != nil {
			utils.Log.Warn("Could not cache storage usage for user %d: %v", userID, err)
		}
	}
	return models.StorageInfo{Used: used, Quota: quotaOf(user, h.defaultQuota)}, nil
}

// Info handles GET /api/storage/:userId
func (h *StorageHandler) Info(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	info, err := h.info(c, userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(info)
}

// Check handles GET /api/storage/:userId/check
func (h *StorageHandler) Check(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	info, err := h.info(c, userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(fiber.Map{"canReceive": info.Used < info.Quota})
}
