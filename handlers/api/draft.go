package api

import (
	"errors"

	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// DraftHandler manages the draft open in a user's composer
type DraftHandler struct {
	emails *storage.EmailStore
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(emails *storage.EmailStore) *DraftHandler {
	return &DraftHandler{emails: emails}
}

type activeDraftRequest struct {
	ForceNew models.FlexBool `json:"forceNew"`
}

// CreateActive returns the active draft, starting one when needed
func (h *DraftHandler) CreateActive(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	var req activeDraftRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.BadRequestError(t(c, "error_invalid_data"), err)
		}
	}
	forceNew := bool(req.ForceNew) || c.QueryBool("forceNew")

	draft, err := h.emails.CreateActiveDraft(c.UserContext(), userID, forceNew)
	if err != nil {
		return utils.InternalServerError("Failed to create active draft", err)
	}
	return c.JSON(draft)
}

// GetActive returns the active draft
func (h *DraftHandler) GetActive(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	draft, err := h.emails.GetActiveDraft(c.UserContext(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return utils.NotFoundError("No active draft found", err)
	}
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(draft)
}

// ClearActive closes the active draft without deleting it
func (h *DraftHandler) ClearActive(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	if err := h.emails.ClearActiveDraft(c.UserContext(), userID); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(success())
}
