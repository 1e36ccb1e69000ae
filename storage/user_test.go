package storage

import (
	"context"
	"database/sql/driver"
	"testing"

	"webmail/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userCols = []string{"id", "username", "email", "password", "firstName", "lastName", "profilePicture",
	"signature", "storageUsed", "storageQuota", "language", "theme", "avatarShape", "sidebarView",
	"emailsPerPage", "stayLoggedIn", "createdAt", "updatedAt"}

func userRow(id int64, email, hash string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(id, "ana", email, hash, "Ana", "Silva", "", "",
		int64(0), int64(104857600), "pt", "dark", "rounded", "expanded", 20, false, fixedNow, fixedNow)
}

type bcryptArg string

func (p bcryptArg) Match(v driver.Value) bool {
	hash, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

func TestCreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("ana", "ana@mail.test", bcryptArg("secret1"), "Ana", "Silva", int64(104857600), "pt").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WithArgs(int64(1)).
		WillReturnRows(userRow(1, "ana@mail.test", "hash"))

	user, err := store.CreateUser(context.Background(), models.NewUser{
		Email: " Ana@Mail.test ", FirstName: "Ana", LastName: "Silva", Password: "secret1", StorageQuota: 104857600,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@mail.test", user.Email)
	assert.Equal(t, "Ana Silva", user.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserSkipsEmptyButClearsSignature(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	empty := ""
	mock.ExpectExec(`UPDATE users SET signature = \? WHERE id = \?`).
		WithArgs("", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).
		WillReturnRows(userRow(1, "ana@mail.test", "hash"))

	_, err := store.UpdateUser(context.Background(), 1, models.UserUpdate{FirstName: &empty, Signature: &empty})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPassword(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WillReturnRows(userRow(1, "ana@mail.test", string(hash)))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WillReturnRows(userRow(1, "ana@mail.test", string(hash)))

	ok, err := store.VerifyPassword(context.Background(), 1, "correct")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.VerifyPassword(context.Background(), 1, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUserByEmailMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).WithArgs("nobody@mail.test").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := store.GetUserByEmail(context.Background(), "Nobody@mail.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
