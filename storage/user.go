package storage

import (
	"context"
	"fmt"
	"strings"

	"webmail/models"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, username, email, password, firstName, lastName, profilePicture, signature,
	storageUsed, storageQuota, language, theme, avatarShape, sidebarView, emailsPerPage,
	stayLoggedIn, createdAt, updatedAt`

// UserStore manages user rows
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser hashes the password and inserts the user. The username is the
// local part of the address.
func (s *UserStore) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := email
	if at := strings.Index(email, "@"); at > 0 {
		username = email[:at]
	}
	language := in.Language
	if language == "" {
		language = "pt"
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO users
		(username, email, password, firstName, lastName, signature, storageQuota, language)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		username, email, string(hashedPassword), in.FirstName, in.LastName, in.StorageQuota, language)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", translate(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID
func (s *UserStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by address (case-insensitive)
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateUser applies a partial update. Empty strings are ignored except for
// the signature, which may be cleared.
func (s *UserStore) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	sets := []string{}
	args := []interface{}{}

	setString := func(column string, v *string, allowEmpty bool) {
		if v == nil || (*v == "" && !allowEmpty) {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, *v)
	}
	setString("firstName", upd.FirstName, false)
	setString("lastName", upd.LastName, false)
	setString("signature", upd.Signature, true)
	setString("language", upd.Language, false)
	setString("theme", upd.Theme, false)
	setString("avatarShape", upd.AvatarShape, false)
	setString("sidebarView", upd.SidebarView, false)
	if upd.EmailsPerPage != nil && *upd.EmailsPerPage > 0 {
		sets = append(sets, "emailsPerPage = ?")
		args = append(args, *upd.EmailsPerPage)
	}
	if upd.StayLoggedIn != nil {
		sets = append(sets, "stayLoggedIn = ?")
		args = append(args, *upd.StayLoggedIn)
	}

	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("updating user %d: %w", id, translate(err))
		}
	}

	return s.GetUser(ctx, id)
}

// CheckPassword compares a plaintext password with the stored hash
func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// VerifyPassword verifies a password for a user
func (s *UserStore) VerifyPassword(ctx context.Context, id int64, password string) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return CheckPassword(user, password), nil
}

// UpdatePassword updates a user's password
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE users SET password = ? WHERE id = ?", string(hashedPassword), id)
	return translate(err)
}

// SetStayLoggedIn records the user's last "stay logged in" choice
func (s *UserStore) SetStayLoggedIn(ctx context.Context, id int64, stay bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET stayLoggedIn = ? WHERE id = ?", stay, id)
	return translate(err)
}

// SetStorageUsed caches the measured storage usage on the user row
func (s *UserStore) SetStorageUsed(ctx context.Context, id int64, used int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET storageUsed = ? WHERE id = ?", used, id)
	return translate(err)
}

// SetProfilePicture stores the profile picture URL ("" removes it)
func (s *UserStore) SetProfilePicture(ctx context.Context, id int64, url string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET profilePicture = ? WHERE id = ?", url, id)
	return translate(err)
}
