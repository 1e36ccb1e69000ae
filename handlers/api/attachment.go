package api

import (
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	maxAttachmentSize  = 5 * 1024 * 1024
	maxAttachmentFiles = 10
)

// AttachmentHandler stores compose uploads in the user's storage folder
type AttachmentHandler struct {
	files        *storage.FileStore
	defaultQuota int64
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(files *storage.FileStore, defaultQuota int64) *AttachmentHandler {
	return &AttachmentHandler{files: files, defaultQuota: defaultQuota}
}

func quotaOf(user *models.User, def int64) int64 {
	if user != nil && user.StorageQuota > 0 {
		return user.StorageQuota
	}
	return def
}

// Upload handles POST /api/attachments/upload/:userId with multipart "files"
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.BadRequestError("No files uploaded", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return utils.BadRequestError("No files uploaded", nil)
	}
	if len(files) > maxAttachmentFiles {
		return utils.BadRequestError("Too many files", nil).
			WithContext("maxFiles", maxAttachmentFiles)
	}

	var uploadSize int64
	for _, fh := range files {
		if fh.Size > maxAttachmentSize {
			return utils.BadRequestError("File "+fh.Filename+" exceeds 5MB limit", nil).
				WithContext("fileSize", fh.Size).
				WithContext("maxSize", maxAttachmentSize)
		}
		uploadSize += fh.Size
	}

	used, err := h.files.Usage(userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	quota := quotaOf(middleware.CurrentUser(c), h.defaultQuota)
	if used+uploadSize > quota {
		return utils.BadRequestError("Upload would exceed storage quota", nil).
			WithContext("currentUsage", used).
			WithContext("quota", quota).
			WithContext("uploadSize", uploadSize)
	}

	attachments := make([]models.Attachment, 0, len(files))
	for _, fh := range files {
		stored, err := h.save(userID, fh)
		if err != nil {
			return utils.InternalServerError(t(c, "error_internal"), err)
		}
		attachments = append(attachments, models.Attachment{
			Filename: fh.Filename,
			Path:     stored.Path,
			Size:     stored.Size,
			MimeType: fh.Header.Get("Content-Type"),
		})
	}

	utils.Log.Info("Uploaded %d attachment(s) for user %d", len(attachments), userID)
	return c.JSON(fiber.Map{"success": true, "attachments": attachments})
}

func (h *AttachmentHandler) save(userID int64, fh *multipart.FileHeader) (*storage.StoredFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	return h.files.SaveFile(userID, fh.Filename, data)
}

func fileParam(c *fiber.Ctx) string {
	name := c.Params("filename")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name
}

// Remove handles DELETE /api/attachments/remove/:userId/:filename. The name
// may be the stored name or the original upload name.
func (h *AttachmentHandler) Remove(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	stored, ok := h.files.FindFile(userID, fileParam(c))
	if !ok {
		return utils.NotFoundError("File not found", nil)
	}
	deleted, err := h.files.DeleteFile(userID, stored)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	if !deleted {
		return utils.NotFoundError("File not found", nil)
	}
	return c.JSON(success())
}

// Download streams a stored attachment back to its owner
func (h *AttachmentHandler) Download(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	stored, ok := h.files.FindFile(userID, fileParam(c))
	if !ok {
		return utils.NotFoundError("File not found", nil)
	}
	data, err := h.files.ReadFile(userID, stored)
	if err != nil {
		return storeError(c, err, "File not found")
	}

	c.Attachment(filepath.Base(stored))
	return c.Send(data)
}
