package storage

import (
	"database/sql/driver"
	"testing"
	"time"

	"webmail/models"
	"webmail/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

var emailCols = []string{"id", "userId", "folderId", "messageId", "threadId", "fromAddress", "fromName",
	"toAddress", "ccAddress", "bccAddress", "subject", "body", "attachments", "hasAttachments", "isRead",
	"isStarred", "isDraft", "isActiveDraft", "priority", "sentAt", "receivedAt", "createdAt", "updatedAt"}

// emailRows renders emails the way MySQL returns them, encrypted
func emailRows(t *testing.T, cipher *utils.EmailCipher, emails ...models.Email) *sqlmock.Rows {
	t.Helper()
	enc := func(userID int64, s string) string {
		v, err := cipher.Encrypt(userID, s)
		require.NoError(t, err)
		return v
	}
	rows := sqlmock.NewRows(emailCols)
	for _, e := range emails {
		var messageID driver.Value
		if e.MessageID != nil {
			messageID = *e.MessageID
		}
		attachments, err := e.Attachments.Value()
		require.NoError(t, err)
		var sentAt, receivedAt driver.Value
		if e.SentAt != nil {
			sentAt = *e.SentAt
		}
		if e.ReceivedAt != nil {
			receivedAt = *e.ReceivedAt
		}
		priority := e.Priority
		if priority == "" {
			priority = models.PriorityNormal
		}
		rows.AddRow(e.ID, e.UserID, e.FolderID, messageID, e.ThreadID,
			enc(e.UserID, e.FromAddress), e.FromName, enc(e.UserID, e.ToAddress), enc(e.UserID, e.CcAddress),
			enc(e.UserID, e.BccAddress), enc(e.UserID, e.Subject), enc(e.UserID, e.Body),
			attachments, e.HasAttachments, e.IsRead, e.IsStarred, e.IsDraft, e.IsActiveDraft, priority,
			sentAt, receivedAt, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func noTagRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"emailId", "tagId", "name"})
}

// encryptedArg matches a query argument that decrypts to plain
type encryptedArg struct {
	cipher *utils.EmailCipher
	userID int64
	plain  string
}

func (a encryptedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if a.plain == "" {
		return s == ""
	}
	return s != a.plain && a.cipher.Decrypt(a.userID, s) == a.plain
}

type recordingCleaner struct {
	userID int64
	paths  []string
}

func (r *recordingCleaner) CleanupFiles(userID int64, paths []string) error {
	r.userID = userID
	r.paths = append(r.paths, paths...)
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
