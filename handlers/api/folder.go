package api

import (
	"strings"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// FolderHandler manages custom folders. System folders are static and
// known to clients, so only custom folders are listed.
type FolderHandler struct {
	folders *storage.FolderStore
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folders *storage.FolderStore) *FolderHandler {
	return &FolderHandler{folders: folders}
}

// ListFolders handles GET /api/folders and GET /api/folders/:userId
func (h *FolderHandler) ListFolders(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if c.Params("userId") != "" {
		id, err := requireSelf(c, "userId")
		if err != nil {
			return err
		}
		userID = id
	}

	folders, err := h.folders.ListFolders(c.UserContext(), userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(folders)
}

// reservedFolderName reports whether name would shadow a system or virtual folder key
func reservedFolderName(name string) bool {
	if name == "" {
		return false
	}
	_, ok := models.SystemFolderID(name)
	return ok || strings.EqualFold(name, models.FolderStarred)
}

// CreateFolder creates a custom folder
func (h *FolderHandler) CreateFolder(c *fiber.Ctx) error {
	var in models.FolderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return utils.BadRequestError("Folder name is required", nil)
	}
	if reservedFolderName(name) {
		return utils.BadRequestError("Folder name is reserved", nil)
	}

	userID := middleware.UserID(c)
	folder, err := h.folders.CreateFolder(c.UserContext(), userID, in)
	if err != nil {
		return storeError(c, err, "Folder not found")
	}
	utils.Log.Info("User %d created folder %d (%s)", userID, folder.ID, folder.Name)
	return c.JSON(folder)
}

// UpdateFolder renames or restyles a custom folder
func (h *FolderHandler) UpdateFolder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in models.FolderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if reservedFolderName(strings.TrimSpace(in.Name)) {
		return utils.BadRequestError("Folder name is reserved", nil)
	}

	folder, err := h.folders.UpdateFolder(c.UserContext(), middleware.UserID(c), id, in)
	if err != nil {
		return storeError(c, err, "Folder not found")
	}
	return c.JSON(folder)
}

// DeleteFolder removes a custom folder; its emails go back to the inbox
func (h *FolderHandler) DeleteFolder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	userID := middleware.UserID(c)
	if err := h.folders.DeleteFolder(c.UserContext(), userID, id); err != nil {
		return storeError(c, err, "Folder not found")
	}
	utils.Log.Info("User %d deleted folder %d", userID, id)
	return c.JSON(success())
}
