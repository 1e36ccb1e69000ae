package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// EmailHandler handles stored email CRUD and folder listings
type EmailHandler struct {
	emails   *storage.EmailStore
	folders  *storage.FolderStore
	notifier Notifier
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(emails *storage.EmailStore, folders *storage.FolderStore, notifier Notifier) *EmailHandler {
	return &EmailHandler{emails: emails, folders: folders, notifier: notifier}
}

func logSuspicious(body string) {
	if suspicious, reasons := utils.DetectSuspiciousContent(body); suspicious {
		utils.Log.Warn("Suspicious content sanitized: %s", strings.Join(reasons, ", "))
	}
}

// sanitizeNewEmail cleans user supplied fields before they are stored
func sanitizeNewEmail(in *models.NewEmail) {
	logSuspicious(in.Body)
	in.Body = utils.SanitizeEmailContent(in.Body)
	in.Subject = utils.SanitizeSubject(in.Subject)
	in.FromName = utils.SanitizeText(in.FromName)
	in.FromAddress = utils.SanitizeText(in.FromAddress)
	in.ToAddress = utils.SanitizeText(in.ToAddress)
	in.CcAddress = utils.SanitizeText(in.CcAddress)
	in.BccAddress = utils.SanitizeText(in.BccAddress)
}

func sanitizeEmailUpdate(upd *models.EmailUpdate) {
	clean := func(v *string, fn func(string) string) {
		if v != nil {
			*v = fn(*v)
		}
	}
	if upd.Body != nil {
		logSuspicious(*upd.Body)
	}
	clean(upd.Body, utils.SanitizeEmailContent)
	clean(upd.Subject, utils.SanitizeSubject)
	clean(upd.FromName, utils.SanitizeText)
	clean(upd.FromAddress, utils.SanitizeText)
	clean(upd.ToAddress, utils.SanitizeText)
	clean(upd.CcAddress, utils.SanitizeText)
	clean(upd.BccAddress, utils.SanitizeText)
}

// ListEmails handles GET /api/emails/:userId?folderId&search&limit&offset
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	var folderID int64
	if v := c.Query("folderId"); v != "" {
		if folderID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return utils.BadRequestError("Invalid folderId", err)
		}
	}
	limit := queryInt(c, "limit", 20)
	if limit == 0 {
		limit = 20
	}
	offset := queryInt(c, "offset", 0)

	emails, total, err := h.emails.ListEmails(c.UserContext(), userID, folderID, c.Query("search"), limit, offset)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(models.NewPaginatedEmails(emails, total, limit, offset))
}

// checkFolder makes sure a folderId from the body is a system folder or one
// of the caller's own. Zero and below leave the folder to the store.
func (h *EmailHandler) checkFolder(c *fiber.Ctx, userID, folderID int64) error {
	if folderID <= 0 {
		return nil
	}
	if _, err := h.folders.GetFolder(c.UserContext(), userID, folderID); err != nil {
		return storeError(c, err, "Folder not found")
	}
	return nil
}

// CreateEmail stores an email for the caller
func (h *EmailHandler) CreateEmail(c *fiber.Ctx) error {
	var in models.NewEmail
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.UserID = middleware.UserID(c)
	if err := h.checkFolder(c, in.UserID, int64(in.FolderID)); err != nil {
		return err
	}
	sanitizeNewEmail(&in)

	email, err := h.emails.CreateEmail(c.UserContext(), in)
	if err != nil {
		return storeError(c, err, "Email not found")
	}

	if email.FolderID == models.InboxFolderID && !email.IsDraft {
		NotifyNewEmail(h.notifier, in.UserID, email.ID, email.FromAddress, email.Subject)
	}
	return c.JSON(email)
}

// GetEmail returns one of the caller's emails
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}
	email, err := h.emails.GetEmail(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return storeError(c, err, "Email not found")
	}
	return c.JSON(email)
}

// UpdateEmail applies a partial update
func (h *EmailHandler) UpdateEmail(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}
	var upd models.EmailUpdate
	if err := parseBody(c, &upd); err != nil {
		return err
	}
	userID := middleware.UserID(c)
	if upd.FolderID != nil {
		if err := h.checkFolder(c, userID, int64(*upd.FolderID)); err != nil {
			return err
		}
	}
	sanitizeEmailUpdate(&upd)

	email, err := h.emails.UpdateEmail(c.UserContext(), userID, id, upd)
	if err != nil {
		return storeError(c, err, "Email not found")
	}
	return c.JSON(email)
}

type deleteRequest struct {
	Permanent models.FlexBool `json:"permanent"`
}

// DeleteEmail moves an email to trash or removes it for good
func (h *EmailHandler) DeleteEmail(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}

	var req deleteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.BadRequestError(t(c, "error_invalid_data"), err)
		}
	}
	if c.QueryBool("permanent") {
		req.Permanent = true
	}

	userID := middleware.UserID(c)
	hard, err := h.emails.DeleteEmail(c.UserContext(), userID, id, bool(req.Permanent))
	if err != nil {
		return storeError(c, err, "Email not found")
	}

	NotifyEmailDeleted(h.notifier, userID, id, hard)
	return c.JSON(success())
}

// ToggleStar flips the starred flag
func (h *EmailHandler) ToggleStar(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}

	userID := middleware.UserID(c)
	email, err := h.emails.ToggleStar(c.UserContext(), userID, id)
	if err != nil {
		return storeError(c, err, "Email not found")
	}

	status := "unstarred"
	if email.IsStarred {
		status = "starred"
	}
	NotifyStatusChange(h.notifier, userID, id, status)
	return c.JSON(email)
}

type readRequest struct {
	IsRead *models.FlexBool `json:"isRead"`
}

// MarkRead sets the read flag; a missing isRead means read
func (h *EmailHandler) MarkRead(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}

	var req readRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.BadRequestError(t(c, "error_invalid_data"), err)
		}
	}
	isRead := req.IsRead == nil || bool(*req.IsRead)

	userID := middleware.UserID(c)
	email, err := h.emails.MarkRead(c.UserContext(), userID, id, isRead)
	if err != nil {
		return storeError(c, err, "Email not found")
	}

	status := "unread"
	if isRead {
		status = "read"
	}
	NotifyStatusChange(h.notifier, userID, id, status)
	return c.JSON(email)
}

type moveRequest struct {
	// number for any folder id, or a folder key such as "archive"
	FolderID json.RawMessage `json:"folderId"`
}

func (r moveRequest) target() string {
	return strings.Trim(strings.TrimSpace(string(r.FolderID)), `"`)
}

// MoveEmail moves an email to another folder
func (h *EmailHandler) MoveEmail(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError(t(c, "error_invalid_data"), err)
	}
	target := req.target()
	if target == "" || target == "null" {
		return utils.BadRequestError("folderId is required", nil)
	}

	userID := middleware.UserID(c)
	ref, err := h.folders.ResolveFolderID(c.UserContext(), userID, target)
	if err != nil {
		return storeError(c, err, "Folder not found")
	}
	email, err := h.emails.MoveEmail(c.UserContext(), userID, id, ref)
	if err != nil {
		return storeError(c, err, "Email not found")
	}

	NotifyStatusChange(h.notifier, userID, id, "moved:"+ref.Key)
	return c.JSON(email)
}

// FolderEmails handles GET /api/emails/:userId/folder/:folderType
func (h *EmailHandler) FolderEmails(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20)
	if limit == 0 {
		limit = 20
	}
	offset := queryInt(c, "offset", 0)

	filters := models.EmailFilters{
		FilterBy: strings.ToLower(c.Query("filterBy", models.FilterAll)),
		SortBy:   strings.ToLower(c.Query("sortBy", models.SortDate)),
	}
	if v := c.Query("tagFilter"); v != "" && v != "null" {
		tagID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return utils.BadRequestError("Invalid tagFilter", err)
		}
		filters.TagFilter = &tagID
	}

	ref, err := h.folders.ResolveFolder(c.UserContext(), userID, c.Params("folderType"))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	page, err := h.emails.ListFolder(c.UserContext(), userID, ref, limit, offset, filters)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(page)
}

// Counts returns badge counts keyed by folder
func (h *EmailHandler) Counts(c *fiber.Ctx) error {
	userID, err := requireSelf(c, "userId")
	if err != nil {
		return err
	}

	custom, err := h.folders.ListFolders(c.UserContext(), userID)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	counts, err := h.emails.Counts(c.UserContext(), userID, custom)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(counts)
}

type convertRequest struct {
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	ToAddress   string             `json:"toAddress"`
	CcAddress   string             `json:"ccAddress"`
	BccAddress  string             `json:"bccAddress"`
	Attachments models.Attachments `json:"attachments"`
}

// ConvertToSent turns one of the caller's drafts into a sent email
func (h *EmailHandler) ConvertToSent(c *fiber.Ctx) error {
	id, err := paramID(c, "emailId")
	if err != nil {
		return err
	}
	var req convertRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	userID := middleware.UserID(c)
	draft, err := h.emails.GetEmail(c.UserContext(), userID, id)
	if err != nil {
		return storeError(c, err, "Email not found")
	}
	if !draft.IsDraft {
		return utils.BadRequestError("Email is not a draft", nil)
	}

	content := models.NewEmail{
		UserID:      userID,
		FromAddress: draft.FromAddress,
		FromName:    draft.FromName,
		ToAddress:   req.ToAddress,
		CcAddress:   req.CcAddress,
		BccAddress:  req.BccAddress,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: req.Attachments,
	}
	if content.Attachments == nil {
		content.Attachments = models.Attachments{}
	}
	sanitizeNewEmail(&content)

	email, err := h.emails.ConvertDraftToSent(c.UserContext(), userID, id, &content)
	if errors.Is(err, storage.ErrNotDraft) {
		return utils.BadRequestError("Email is not a draft", err)
	}
	if err != nil {
		return storeError(c, err, "Email not found")
	}
	utils.Log.Info("Draft %d converted to sent email", id)
	return c.JSON(email)
}
