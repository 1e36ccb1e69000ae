package api

import (
	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// AliasHandler manages forwarding aliases
type AliasHandler struct {
	aliases *storage.AliasStore
}

// NewAliasHandler creates a new alias handler
func NewAliasHandler(aliases *storage.AliasStore) *AliasHandler {
	return &AliasHandler{aliases: aliases}
}

// ListAliases handles GET /api/aliases/:userId
func (h *AliasHandler) ListAliases(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	aliases, err := h.aliases.ListAliases(c.UserContext(), userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(aliases)
}

func (h *AliasHandler) GetAlias(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	alias, err := h.aliases.GetAlias(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return storeError(c, err, "Alias not found")
	}
	return c.JSON(alias)
}

func (h *AliasHandler) CreateAlias(c *fiber.Ctx) error {
	var in models.AliasInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	alias, err := h.aliases.CreateAlias(c.UserContext(), middleware.UserID(c), in)
	if err != nil {
		return storeError(c, err, "Alias not found")
	}
	return c.Status(fiber.StatusCreated).JSON(alias)
}

func (h *AliasHandler) UpdateAlias(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var upd models.AliasUpdate
	if err := parseBody(c, &upd); err != nil {
		return err
	}
	alias, err := h.aliases.UpdateAlias(c.UserContext(), middleware.UserID(c), id, upd)
	if err != nil {
		return storeError(c, err, "Alias not found")
	}
	return c.JSON(alias)
}

func (h *AliasHandler) DeleteAlias(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.aliases.DeleteAlias(c.UserContext(), middleware.UserID(c), id); err != nil {
		return storeError(c, err, "Alias not found")
	}
	return c.JSON(success())
}

// ToggleAlias flips an alias between active and inactive
func (h *AliasHandler) ToggleAlias(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	alias, err := h.aliases.ToggleAlias(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return storeError(c, err, "Alias not found")
	}
	return c.JSON(alias)
}
