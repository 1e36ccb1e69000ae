package api

import (
	"errors"
	"strings"

	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SearchHandler handles mailbox search
type SearchHandler struct {
	emails  *storage.EmailStore
	folders *storage.FolderStore
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(emails *storage.EmailStore, folders *storage.FolderStore) *SearchHandler {
	return &SearchHandler{emails: emails, folders: folders}
}

// Search handles GET /api/search/:userId?q&folder
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return utils.BadRequestError("Search query is required", nil)
	}

	var ref *storage.FolderRef
	if folder := strings.TrimSpace(c.Query("folder")); folder != "" && !strings.EqualFold(folder, "all") {
		ref, err = h.folders.ResolveFolder(c.UserContext(), userID, folder)
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON([]interface{}{})
		}
		if err != nil {
			return utils.InternalServerError(t(c, "error_internal"), err)
		}
	}

	results, err := h.emails.Search(c.UserContext(), userID, query, ref)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	utils.Log.Debug("Search by user %d returned %d results", userID, len(results))
	return c.JSON(results)
}
