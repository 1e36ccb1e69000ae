package api

import (
	"errors"
	"strings"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// TagHandler handles tags and their attachment to emails
type TagHandler struct {
	tags   *storage.TagStore
	emails *storage.EmailStore
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tags *storage.TagStore, emails *storage.EmailStore) *TagHandler {
	return &TagHandler{tags: tags, emails: emails}
}

// ListTags handles GET /api/tags and GET /api/tags/:userId
func (h *TagHandler) ListTags(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if c.Params("userId") != "" {
		id, err := requireSelf(c, "userId")
		if err != nil {
			return err
		}
		userID = id
	}

	tags, err := h.tags.ListTags(c.UserContext(), userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(tags)
}

// CreateTag creates a tag; names are unique per user
func (h *TagHandler) CreateTag(c *fiber.Ctx) error {
	var in models.TagInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Name) == "" {
		return utils.BadRequestError("Tag name is required", nil)
	}

	tag, err := h.tags.CreateTag(c.UserContext(), middleware.UserID(c), in)
	if errors.Is(err, storage.ErrDuplicate) {
		return utils.ConflictError("A tag with this name already exists", err).WithCode("DUPLICATE_TAG")
	}
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(tag)
}

// UpdateTag renames or recolors a tag
func (h *TagHandler) UpdateTag(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in models.TagInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	tag, err := h.tags.UpdateTag(c.UserContext(), middleware.UserID(c), id, in)
	if errors.Is(err, storage.ErrDuplicate) {
		return utils.ConflictError("A tag with this name already exists", err).WithCode("DUPLICATE_TAG")
	}
	if err != nil {
		return storeError(c, err, "Tag not found")
	}
	return c.JSON(tag)
}

// DeleteTag removes a tag from every email and deletes it
func (h *TagHandler) DeleteTag(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tags.DeleteTag(c.UserContext(), middleware.UserID(c), id); err != nil {
		return storeError(c, err, "Tag not found")
	}
	return c.JSON(success())
}

// emailAndTag loads both route resources, checking the caller owns them
func (h *TagHandler) emailAndTag(c *fiber.Ctx) (int64, int64, error) {
	emailID, err := paramID(c, "emailId")
	if err != nil {
		return 0, 0, err
	}
	tagID, err := paramID(c, "tagId")
	if err != nil {
		return 0, 0, err
	}

	userID := middleware.UserID(c)
	if _, err := h.emails.GetEmail(c.UserContext(), userID, emailID); err != nil {
		return 0, 0, storeError(c, err, "Email not found")
	}
	if _, err := h.tags.GetTag(c.UserContext(), userID, tagID); err != nil {
		return 0, 0, storeError(c, err, "Tag not found")
	}
	return emailID, tagID, nil
}

// AddEmailTag attaches a tag to an email
func (h *TagHandler) AddEmailTag(c *fiber.Ctx) error {
	emailID, tagID, err := h.emailAndTag(c)
	if err != nil {
		return err
	}
	if _, err := h.tags.AddEmailTag(c.UserContext(), emailID, tagID); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(success())
}

// RemoveEmailTag detaches a tag from an email
func (h *TagHandler) RemoveEmailTag(c *fiber.Ctx) error {
	emailID, tagID, err := h.emailAndTag(c)
	if err != nil {
		return err
	}
	if _, err := h.tags.RemoveEmailTag(c.UserContext(), emailID, tagID); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(success())
}

// EmailTags lists the tags on an email
func (h *TagHandler) EmailTags(c *fiber.Ctx) error {
	emailID, err := paramID(c, "emailId")
	if err != nil {
		return err
	}
	if _, err := h.emails.GetEmail(c.UserContext(), middleware.UserID(c), emailID); err != nil {
		return storeError(c, err, "Email not found")
	}

	tags, err := h.tags.TagsForEmail(c.UserContext(), emailID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(tags)
}

// TagEmails lists the caller's emails carrying a tag
func (h *TagHandler) TagEmails(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}
	tagID, err := paramID(c, "tagId")
	if err != nil {
		return err
	}

	emails, err := h.emails.EmailsByTag(c.UserContext(), userID, tagID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(emails)
}
