package middleware

import (
	"context"
	"errors"
	"strings"

	"webmail/models"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys
const (
	SessionUserID     = "user_id"
	SessionSMTPSecret = "smtp_secret"
)

const (
	localsUserID = "userId"
	localsUser   = "user"
)

// UserLookup loads the account behind a session or token
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Auth authenticates requests by session cookie or bearer token
type Auth struct {
	sessions *session.Store
	users    UserLookup
	tokens   *utils.TokenIssuer
}

// NewAuth creates the authenticator. tokens may be nil to accept sessions only.
func NewAuth(sessions *session.Store, users UserLookup, tokens *utils.TokenIssuer) *Auth {
	return &Auth{sessions: sessions, users: users, tokens: tokens}
}

// SessionUser reads the user id stored in a session, 0 when absent
func SessionUser(sess *session.Session) int64 {
	switch v := sess.Get(SessionUserID).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Identify returns the authenticated user id, or 0. The session is returned
// so callers can update or destroy it.
func (a *Auth) Identify(c *fiber.Ctx) (int64, *session.Session, error) {
	sess, err := a.sessions.Get(c)
	if err != nil {
		return 0, nil, err
	}
	if id := SessionUser(sess); id > 0 {
		return id, sess, nil
	}
	if token := bearerToken(c); token != "" && a.tokens != nil {
		id, err := a.tokens.ParseToken(token)
		if err != nil {
			utils.Log.Debug("Rejected bearer token from %s: %v", c.IP(), err)
			return 0, sess, nil
		}
		return id, sess, nil
	}
	return 0, sess, nil
}

// RequireAuth rejects anonymous requests with 401 and stores the user in
// the request locals. Sessions of deleted users are destroyed.
func (a *Auth) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		loc := Localizer(c)

		userID, sess, err := a.Identify(c)
		if err != nil {
			return utils.InternalServerError(utils.T(loc, "error_internal"), err)
		}
		if userID == 0 {
			return utils.UnauthorizedError(utils.T(loc, "auth_not_authenticated"), nil)
		}

		user, err := a.users.GetUser(c.UserContext(), userID)
		if errors.Is(err, storage.ErrNotFound) {
			if SessionUser(sess) != 0 {
				if err := sess.Destroy(); err != nil {
					utils.Log.Warn("Failed to destroy stale session: %v", err)
				}
			}
			return utils.UnauthorizedError(utils.T(loc, "auth_user_not_found"), nil)
		}
		if err != nil {
			return utils.InternalServerError(utils.T(loc, "error_internal"), err)
		}

		c.Locals(localsUserID, user.ID)
		c.Locals(localsUser, user)
		return c.Next()
	}
}

// UserID returns the authenticated user id set by RequireAuth
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(localsUserID).(int64)
	return id
}

// CurrentUser returns the authenticated user set by RequireAuth
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(localsUser).(*models.User)
	return u
}
