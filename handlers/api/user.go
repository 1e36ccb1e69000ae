package api

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles profile settings and profile pictures
type UserHandler struct {
	users *storage.UserStore
	files *storage.FileStore
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *storage.UserStore, files *storage.FileStore) *UserHandler {
	return &UserHandler{users: users, files: files}
}

type updateUserRequest struct {
	models.UserUpdate
	// data: URL, uploaded inline by settings forms
	ProfilePicture *string `json:"profilePicture"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=255"`
}

func pictureURL(userID int64, name string) string {
	return fmt.Sprintf("/api/profile-picture/%d/%s", userID, name)
}

// GetUser returns the caller's profile
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := requireSelf(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, t(c, "auth_user_not_found"))
	}
	return c.JSON(user)
}

// UpdateUser applies a partial profile update
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := requireSelf(c, "id")
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Signature != nil {
		sig := utils.SanitizeEmailContent(*req.Signature)
		req.Signature = &sig
	}

	if req.ProfilePicture != nil && strings.HasPrefix(*req.ProfilePicture, "data:") {
		contentType, data, err := utils.DecodeDataURL(*req.ProfilePicture)
		if err != nil {
			return utils.BadRequestError(storage.ErrInvalidImage.Error(), err)
		}
		if err := h.storePicture(c, id, data, contentType); err != nil {
			return err
		}
	}

	user, err := h.users.UpdateUser(c.UserContext(), id, req.UserUpdate)
	if err != nil {
		return storeError(c, err, t(c, "auth_user_not_found"))
	}
	return c.JSON(user)
}

// UpdatePassword changes the password after checking the current one
func (h *UserHandler) UpdatePassword(c *fiber.Ctx) error {
	id, err := requireSelf(c, "id")
	if err != nil {
		return err
	}

	var req passwordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ok, err := h.users.VerifyPassword(c.UserContext(), id, req.CurrentPassword)
	if err != nil {
		return storeError(c, err, t(c, "auth_user_not_found"))
	}
	if !ok {
		return utils.BadRequestError(t(c, "auth_wrong_password"), nil)
	}

	if err := h.users.UpdatePassword(c.UserContext(), id, req.NewPassword); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	utils.Log.Info("User %d changed their password", id)
	return c.JSON(fiber.Map{"success": true, "message": "Password updated successfully"})
}

// UploadProfilePicture stores a multipart profilePicture upload
func (h *UserHandler) UploadProfilePicture(c *fiber.Ctx) error {
	id, err := requireSelf(c, "id")
	if err != nil {
		return err
	}

	fh, err := c.FormFile("profilePicture")
	if err != nil {
		return utils.BadRequestError("No file uploaded", err)
	}
	if fh.Size > storage.MaxProfilePictureSize {
		return utils.BadRequestError(storage.ErrImageTooLarge.Error(), nil)
	}

	f, err := fh.Open()
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxProfilePictureSize+1))
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	if err := h.storePicture(c, id, data, fh.Header.Get("Content-Type")); err != nil {
		return err
	}

	user, err := h.users.GetUser(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, t(c, "auth_user_not_found"))
	}
	return c.JSON(user)
}

func (h *UserHandler) storePicture(c *fiber.Ctx, userID int64, data []byte, contentType string) error {
	name, err := h.files.SaveProfilePicture(userID, data, contentType)
	switch {
	case errors.Is(err, storage.ErrImageTooLarge), errors.Is(err, storage.ErrInvalidImage):
		return utils.BadRequestError(err.Error(), err)
	case err != nil:
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	if err := h.users.SetProfilePicture(c.UserContext(), userID, pictureURL(userID, name)); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return nil
}

// DeleteProfilePicture removes the current picture
func (h *UserHandler) DeleteProfilePicture(c *fiber.Ctx) error {
	id, err := requireSelf(c, "id")
	if err != nil {
		return err
	}

	user := middleware.CurrentUser(c)
	if user == nil {
		if user, err = h.users.GetUser(c.UserContext(), id); err != nil {
			return storeError(c, err, t(c, "auth_user_not_found"))
		}
	}

	if user.ProfilePicture != "" {
		name := path.Base(user.ProfilePicture)
		if err := h.files.DeleteProfilePicture(id, name); err != nil {
			utils.Log.Warn("Failed to delete profile picture %s: %v", name, err)
		}
	}
	if err := h.users.SetProfilePicture(c.UserContext(), id, ""); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	updated, err := h.users.GetUser(c.UserContext(), id)
	if err != nil {
		return storeError(c, err, t(c, "auth_user_not_found"))
	}
	return c.JSON(updated)
}

var pictureTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ServeProfilePicture streams a picture to its owner
func (h *UserHandler) ServeProfilePicture(c *fiber.Ctx) error {
	id, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	name := c.Params("filename")
	data, err := h.files.ReadProfilePicture(id, name)
	switch {
	case errors.Is(err, storage.ErrNotPictureOwner), errors.Is(err, storage.ErrInvalidFilename):
		return utils.ForbiddenError(t(c, "auth_access_denied"), err)
	case errors.Is(err, storage.ErrNotFound):
		return utils.NotFoundError(t(c, "error_not_found"), err)
	case err != nil:
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	contentType, ok := pictureTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=86400")
	return c.Send(data)
}
