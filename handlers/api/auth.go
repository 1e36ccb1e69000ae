package api

import (
	"errors"
	"strings"

	"webmail/config"
	"webmail/middleware"
	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler handles login, logout, registration and session checks
type AuthHandler struct {
	sessions *session.Store
	auth     *middleware.Auth
	users    *storage.UserStore
	files    *storage.FileStore
	blocker  *storage.IPBlocker
	tokens   *utils.TokenIssuer
	config   *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Store, auth *middleware.Auth, users *storage.UserStore, files *storage.FileStore,
	blocker *storage.IPBlocker, tokens *utils.TokenIssuer, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		auth:     auth,
		users:    users,
		files:    files,
		blocker:  blocker,
		tokens:   tokens,
		config:   cfg,
	}
}

type loginRequest struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required"`
	StayLoggedIn *bool  `json:"stayLoggedIn"`
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Password  string `json:"password" validate:"required,min=6,max=255"`
}

// Status reports whether the client IP is blocked
func (h *AuthHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.blocker.Status(c.IP()))
}

// Verify returns the logged in user
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	userID, sess, err := h.auth.Identify(c)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	if userID == 0 {
		return utils.UnauthorizedError(t(c, "auth_not_authenticated"), nil)
	}

	user, err := h.users.GetUser(c.UserContext(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		if middleware.SessionUser(sess) != 0 {
			sess.Destroy()
		}
		utils.Log.Info("User %d no longer exists, session cleared", userID)
		return utils.UnauthorizedError(t(c, "auth_user_not_found"), nil)
	}
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	return c.JSON(fiber.Map{
		"authenticated": true,
		"user":          user,
	})
}

// loginAddress turns a bare username into an address on the local domain
func (h *AuthHandler) loginAddress(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if !strings.Contains(username, "@") {
		return username + "@" + h.config.Mail.Domain
	}
	return username
}

// Login authenticates with username or address and password
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ip := c.IP()
	log := utils.Log.WithField("ip", ip)
	email := h.loginAddress(req.Username)

	user, err := h.users.GetUserByEmail(c.UserContext(), email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	if user == nil || !storage.CheckPassword(user, req.Password) {
		log.Warn("Failed login for %s", email)
		return h.loginFailed(c, ip)
	}

	if err := h.blocker.Reset(ip); err != nil {
		log.Warn("Failed to clear login attempts: %v", err)
	}

	stay := user.StayLoggedIn
	if req.StayLoggedIn != nil {
		stay = *req.StayLoggedIn
		if err := h.users.SetStayLoggedIn(c.UserContext(), user.ID, stay); err != nil {
			return utils.InternalServerError(t(c, "error_internal"), err)
		}
		user.StayLoggedIn = stay
	}

	token, err := h.startSession(c, user, req.Password, stay)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	log.Info("User %d logged in", user.ID)
	return c.JSON(fiber.Map{
		"message": t(c, "auth_login_success"),
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx, ip string) error {
	failure, err := h.blocker.RecordFailure(ip)
	if err != nil {
		utils.Log.Error("Failed to record login failure for %s: %v", ip, err)
	}

	if failure.Blocked {
		minutes := int(h.config.Security.BlockDurationValue().Minutes())
		msg := utils.TWithData(middleware.Localizer(c), "auth_ip_blocked", map[string]interface{}{"Minutes": minutes})
		return utils.TooManyRequestsError(msg, nil).
			WithContext("blocked", true).
			WithContext("blockedUntil", failure.BlockedUntil)
	}

	maxAttempts := h.blocker.MaxAttempts()
	remaining := maxAttempts - failure.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return utils.UnauthorizedError(t(c, "auth_invalid_credentials"), nil).
		WithContext("attempts", failure.Attempts).
		WithContext("maxAttempts", maxAttempts).
		WithContext("remaining", remaining)
}

// startSession stores the user in a fresh session and issues an API token.
// The password is kept encrypted so mail can be submitted as the user.
func (h *AuthHandler) startSession(c *fiber.Ctx, user *models.User, password string, stay bool) (string, error) {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return "", err
	}
	if err := sess.Regenerate(); err != nil {
		return "", err
	}

	secret, err := utils.EncryptSecret(password, []byte(h.config.Encryption.Key))
	if err != nil {
		return "", err
	}
	sess.Set(middleware.SessionUserID, user.ID)
	sess.Set(middleware.SessionSMTPSecret, secret)
	if stay {
		sess.SetExpiry(h.config.Session.ExtendedDuration())
	}
	if err := sess.Save(); err != nil {
		return "", err
	}

	return h.tokens.GenerateToken(user.ID, user.Email)
}

// Logout destroys the session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	if err := sess.Destroy(); err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(fiber.Map{"message": t(c, "auth_logout_success")})
}

// Register creates an account on the local domain and logs it in
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.HasSuffix(email, "@"+h.config.Mail.Domain) {
		msg := utils.TWithData(middleware.Localizer(c), "auth_email_domain", map[string]interface{}{"Domain": h.config.Mail.Domain})
		return utils.BadRequestError(msg, nil)
	}

	_, err := h.users.GetUserByEmail(c.UserContext(), email)
	if err == nil {
		return utils.ConflictError(t(c, "auth_email_exists"), nil)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	user, err := h.users.CreateUser(c.UserContext(), models.NewUser{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Password:     req.Password,
		StorageQuota: h.config.Storage.DefaultQuota,
		Language:     middleware.Lang(c),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return utils.ConflictError(t(c, "auth_email_exists"), err)
	}
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	if err := h.files.CreateUserDir(user.ID); err != nil {
		utils.Log.Error("Failed to create storage folder for user %d: %v", user.ID, err)
	}

	token, err := h.startSession(c, user, req.Password, false)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}

	utils.Log.Info("Registered user %d (%s)", user.ID, user.Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": t(c, "auth_register_success"),
		"user":    user,
		"token":   token,
	})
}

// CSRFToken issues a double-submit token
func (h *AuthHandler) CSRFToken(c *fiber.Ctx) error {
	cfg := middleware.DefaultCSRFConfig()
	cfg.CookieSecure = h.config.Session.CookieSecure
	token, err := middleware.GenerateCSRFToken(c, cfg)
	if err != nil {
		return utils.InternalServerError(t(c, "error_internal"), err)
	}
	return c.JSON(fiber.Map{"csrfToken": token})
}
