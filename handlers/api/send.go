package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"webmail/config"
	"webmail/mailer"
	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/emersion/go-message/mail"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const signatureSeparator = "<br><br><br><br><br>"

// MailSender submits messages to the relay
type MailSender interface {
	Send(ctx context.Context, creds mailer.Credentials, msg *mailer.Message) (string, error)
	Verify(ctx context.Context, creds mailer.Credentials) error
	RelayCredentials() (mailer.Credentials, bool)
}

// SendHandler stores outgoing mail and submits it over SMTP
type SendHandler struct {
	sessions *session.Store
	emails   *storage.EmailStore
	files    *storage.FileStore
	sender   MailSender
	notifier Notifier
	config   *config.Config
}

// NewSendHandler creates a new send handler
func NewSendHandler(sessions *session.Store, emails *storage.EmailStore, files *storage.FileStore,
	sender MailSender, notifier Notifier, cfg *config.Config) *SendHandler {
	return &SendHandler{
		sessions: sessions,
		emails:   emails,
		files:    files,
		sender:   sender,
		notifier: notifier,
		config:   cfg,
	}
}

type smtpResult struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type sendResponse struct {
	*models.Email
	SMTPResult smtpResult `json:"smtpResult"`
}

// credentials picks the SMTP login: the user's own password kept in the
// session, else the relay account
func (h *SendHandler) credentials(c *fiber.Ctx, user *models.User) mailer.Credentials {
	if sess, err := h.sessions.Get(c); err == nil {
		if secret, ok := sess.Get(middleware.SessionSMTPSecret).(string); ok && secret != "" {
			password, err := utils.DecryptSecret(secret, []byte(h.config.Encryption.Key))
			if err == nil {
				return mailer.Credentials{Username: user.Email, Password: password}
			}
			utils.Log.Warn("Could not decrypt SMTP secret for user %d: %v", user.ID, err)
		}
	}
	if creds, ok := h.sender.RelayCredentials(); ok {
		return creds
	}
	return mailer.Credentials{}
}

// Send handles POST /api/emails/send
func (h *SendHandler) Send(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.UnauthorizedError(t(c, "auth_not_authenticated"), nil)
	}

	var in models.NewEmail
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.ToAddress) == "" {
		return utils.BadRequestError("At least one recipient is required", nil)
	}
	// raw attachment content is needed for submission; storage drops it
	attachments := in.Attachments

	in.UserID = user.ID
	in.FromAddress = user.Email
	in.FolderID = models.FlexInt(models.SentFolderID)
	in.IsDraft = false
	in.IsRead = true
	sanitizeNewEmail(&in)
	in.FromName = user.DisplayName()
	if user.Signature != "" {
		in.Body += signatureSeparator + utils.SanitizeEmailContent(user.Signature)
	}

	email, err := h.emails.CreateEmail(c.UserContext(), in)
	if err != nil {
		return utils.InternalServerError(t(c, "message_send_failed"), err)
	}
	utils.Log.Info("Email %d stored for user %d", email.ID, user.ID)

	result := h.submit(c, user, &in, attachments)
	if result.Sent {
		if err := h.emails.SetMessageID(c.UserContext(), user.ID, email.ID, result.MessageID); err != nil {
			utils.Log.Warn("Could not record Message-ID for email %d: %v", email.ID, err)
		} else {
			email.MessageID = &result.MessageID
		}
	}
	NotifyEmailSent(h.notifier, user.ID, email.ID, result.Sent)

	return c.JSON(sendResponse{Email: email, SMTPResult: result})
}

// submit builds the MIME message and hands it to the relay. Failures are
// reported in the result, never as a request error.
func (h *SendHandler) submit(c *fiber.Ctx, user *models.User, in *models.NewEmail, attachments models.Attachments) smtpResult {
	msg, err := h.buildMessage(user, in, attachments)
	if err != nil {
		utils.Log.Error("Failed to build message for user %d: %v", user.ID, err)
		return smtpResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.config.SMTP.TimeoutDuration()*2)
	defer cancel()

	msgID, err := h.sender.Send(ctx, h.credentials(c, user), msg)
	if err != nil {
		utils.Log.Error("SMTP submission failed for user %d: %v", user.ID, err)
		return smtpResult{Error: err.Error()}
	}
	return smtpResult{Sent: true, MessageID: msgID}
}

func (h *SendHandler) buildMessage(user *models.User, in *models.NewEmail, attachments models.Attachments) (*mailer.Message, error) {
	to, err := mailer.ParseAddressList(in.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	cc, err := mailer.ParseAddressList(in.CcAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid cc address: %w", err)
	}
	bcc, err := mailer.ParseAddressList(in.BccAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid bcc address: %w", err)
	}

	html, inline, err := mailer.ExtractInlineImages(in.Body, h.config.Mail.Domain)
	if err != nil {
		return nil, err
	}

	parts := make([]mailer.Part, 0, len(attachments))
	for _, att := range attachments {
		part, err := h.attachmentPart(user.ID, att)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	return &mailer.Message{
		From:        &mail.Address{Name: in.FromName, Address: user.Email},
		To:          to,
		Cc:          cc,
		Bcc:         bcc,
		Subject:     in.Subject,
		HTML:        html,
		Text:        utils.HTMLToText(html),
		MessageID:   mailer.NewMessageID(h.config.Mail.Domain),
		Date:        time.Now(),
		Attachments: parts,
		Inline:      inline,
	}, nil
}

// attachmentPart loads an attachment from its inline base64 content or from
// the user's storage folder
func (h *SendHandler) attachmentPart(userID int64, att models.Attachment) (mailer.Part, error) {
	var data []byte
	var err error
	switch {
	case att.Content != "":
		content := att.Content
		if strings.HasPrefix(content, "data:") {
			_, data, err = utils.DecodeDataURL(content)
		} else {
			data, err = base64.StdEncoding.DecodeString(content)
		}
	case att.Path != "":
		data, err = h.files.ReadFile(userID, filepath.Base(att.Path))
	default:
		return mailer.Part{}, fmt.Errorf("attachment %s has no content", att.Filename)
	}
	if err != nil {
		return mailer.Part{}, fmt.Errorf("loading attachment %s: %w", att.Filename, err)
	}

	contentType := att.MimeType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	name := att.Filename
	if name == "" {
		name = "attachment"
	}
	return mailer.Part{Filename: name, ContentType: contentType, Data: data}, nil
}

// TestConnection handles GET /api/smtp/test
func (h *SendHandler) TestConnection(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.UnauthorizedError(t(c, "auth_not_authenticated"), nil)
	}

	creds := h.credentials(c, user)
	info := fiber.Map{
		"host": h.config.SMTP.Server,
		"port": h.config.SMTP.GetPort(),
		"user": creds.Username,
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.config.SMTP.TimeoutDuration())
	defer cancel()
	if err := h.sender.Verify(ctx, creds); err != nil {
		utils.Log.Warn("SMTP connection test failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "SMTP connection failed",
			"error":   err.Error(),
			"config":  info,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "SMTP connection working correctly",
		"config":  info,
	})
}
