package api

import (
	"errors"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// BlockedSenderHandler manages the per-user sender block list
type BlockedSenderHandler struct {
	blocked *storage.BlockedSenderStore
}

// NewBlockedSenderHandler creates a new blocked sender handler
func NewBlockedSenderHandler(blocked *storage.BlockedSenderStore) *BlockedSenderHandler {
	return &BlockedSenderHandler{blocked: blocked}
}

// List handles GET /api/blocked-senders/:userId
func (h *BlockedSenderHandler) List(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	senders, err := h.blocked.ListBlockedSenders(c.UserContext(), userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(senders)
}

// Create blocks an address. The email that triggered it, if given, moves to junk.
func (h *BlockedSenderHandler) Create(c *fiber.Ctx) error {
	var in models.BlockedSenderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	userID := middleware.UserID(c)
	sender, err := h.blocked.CreateBlockedSender(c.UserContext(), userID, in.BlockedEmail, in.EmailID)
	if errors.Is(err, storage.ErrDuplicate) {
		return utils.ConflictError("Sender is already blocked", err)
	}
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	utils.Log.Info("User %d blocked %s", userID, sender.BlockedEmail)
	return c.Status(fiber.StatusCreated).JSON(sender)
}

// Delete unblocks an address
func (h *BlockedSenderHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.blocked.DeleteBlockedSender(c.UserContext(), middleware.UserID(c), id); err != nil {
		return storeError(c, err, "Blocked sender not found")
	}
	return c.JSON(success())
}
