package storage

import (
	"context"
	"testing"

	"webmail/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tagCols = []string{"id", "userId", "name", "color", "createdAt", "updatedAt"}

func TestCreateTagDefaultColor(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTagStore(db)

	mock.ExpectExec(`INSERT INTO tags`).
		WithArgs(int64(1), "urgent", models.DefaultTagColor).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(`SELECT .+ FROM tags WHERE id = \? AND userId = \?`).
		WithArgs(int64(3), int64(1)).
		WillReturnRows(sqlmock.NewRows(tagCols).AddRow(int64(3), int64(1), "urgent", models.DefaultTagColor, fixedNow, fixedNow))

	tag, err := store.CreateTag(context.Background(), 1, models.TagInput{Name: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, "#3b82f6", tag.Color)
}

func TestCreateTagDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTagStore(db)

	mock.ExpectExec(`INSERT INTO tags`).WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err := store.CreateTag(context.Background(), 1, models.TagInput{Name: "urgent"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAddEmailTagIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTagStore(db)

	mock.ExpectExec(`INSERT INTO email_tags`).WithArgs(int64(10), int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO email_tags`).WithArgs(int64(10), int64(3)).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	added, err := store.AddEmailTag(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddEmailTag(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestRemoveEmailTagMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTagStore(db)

	mock.ExpectExec(`DELETE FROM email_tags WHERE emailId = \? AND tagId = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := store.RemoveEmailTag(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteTagRemovesLinksFirst(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTagStore(db)

	mock.ExpectQuery(`SELECT .+ FROM tags WHERE id = \? AND userId = \?`).
		WillReturnRows(sqlmock.NewRows(tagCols).AddRow(int64(3), int64(1), "urgent", "#ff0000", fixedNow, fixedNow))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM email_tags WHERE tagId = \?`).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM tags WHERE id = \? AND userId = \?`).WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteTag(context.Background(), 1, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
