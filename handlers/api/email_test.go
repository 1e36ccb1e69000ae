package api

import (
	"net/http"
	"testing"

	"webmail/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var folderCols = []string{"id", "userId", "name", "type", "systemType", "icon", "color", "createdAt", "updatedAt"}

func inboxEmail() models.Email {
	return models.Email{
		ID: 10, UserID: 1, FolderID: models.InboxFolderID,
		FromAddress: "bob@example.com", ToAddress: "ana@mail.test",
		Subject: "Lunch", Body: "<p>Friday?</p>",
	}
}

func TestGetEmailNotOwnedIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT .+ FROM emails WHERE id = \? AND userId = \?`).
		WithArgs(int64(99), int64(1)).
		WillReturnRows(sqlmock.NewRows(emailCols))

	resp := env.do(t, http.MethodGet, "/api/email/99", nil, &u)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetEmailDecrypts(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.expectEmail(t, inboxEmail())

	resp := env.do(t, http.MethodGet, "/api/email/10", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Lunch", body["subject"])
	assert.Equal(t, "bob@example.com", body["fromAddress"])
}

func TestUnknownFolderIsEmptyPage(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT id FROM folders WHERE userId = \? AND LOWER\(name\) = \?`).
		WithArgs(int64(1), "projects").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := env.do(t, http.MethodGet, "/api/emails/1/folder/Projects", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Empty(t, body["emails"])
	assert.Equal(t, float64(0), body["totalCount"])
	assert.Equal(t, false, body["hasMore"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestFolderEmailsRejectsBadTagFilter(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/api/emails/1/folder/inbox?tagFilter=abc", nil, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveEmailToArchive(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	email := inboxEmail()
	moved := email
	moved.FolderID = models.ArchiveFolderID

	env.expectAuth(u)
	env.expectEmail(t, email)
	env.mock.ExpectExec(`UPDATE emails SET folderId = \?`).
		WithArgs(models.ArchiveFolderID, sqlmock.AnyArg(), int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectEmail(t, moved)

	resp := env.do(t, http.MethodPut, "/api/email/10/move", map[string]string{"folderId": "archive"}, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(models.ArchiveFolderID), decode(t, resp)["folderId"])

	require.Len(t, env.notes.sent, 1)
	assert.Equal(t, EventStatusChange, env.notes.sent[0].Type)
	assert.Equal(t, "moved:archive", env.notes.sent[0].Data["status"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestMoveEmailNeedsTarget(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodPost, "/api/email/10/move", map[string]interface{}{}, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteEmailMovesToTrash(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.expectEmail(t, inboxEmail())
	env.mock.ExpectExec(`UPDATE emails SET folderId = \?`).
		WithArgs(models.TrashFolderID, sqlmock.AnyArg(), int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := env.do(t, http.MethodDelete, "/api/emails/10", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["success"])

	require.Len(t, env.notes.sent, 1)
	assert.Equal(t, EventDeleted, env.notes.sent[0].Type)
	assert.Equal(t, false, env.notes.sent[0].Data["permanent"])
}

func TestDeleteEmailPermanentFromQuery(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.expectEmail(t, inboxEmail())
	env.mock.ExpectBegin()
	env.mock.ExpectExec(`DELETE FROM email_tags WHERE emailId = \?`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectExec(`DELETE FROM emails WHERE id = \? AND userId = \?`).
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	resp := env.do(t, http.MethodDelete, "/api/emails/10?permanent=true", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.notes.sent, 1)
	assert.Equal(t, true, env.notes.sent[0].Data["permanent"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestToggleStarReportsStatus(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	email := inboxEmail()
	starred := email
	starred.IsStarred = true

	env.expectAuth(u)
	env.expectEmail(t, email)
	env.mock.ExpectExec(`UPDATE emails SET isStarred = NOT isStarred`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectEmail(t, starred)

	resp := env.do(t, http.MethodPost, "/api/email/10/star", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["isStarred"])
	require.Len(t, env.notes.sent, 1)
	assert.Equal(t, "starred", env.notes.sent[0].Data["status"])
}

func TestToggleStarTwiceRestoresFlag(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	email := inboxEmail()
	starred := email
	starred.IsStarred = true

	env.expectAuth(u)
	env.expectEmail(t, email)
	env.mock.ExpectExec(`UPDATE emails SET isStarred = NOT isStarred`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectEmail(t, starred)

	env.expectAuth(u)
	env.expectEmail(t, starred)
	env.mock.ExpectExec(`UPDATE emails SET isStarred = NOT isStarred`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectEmail(t, email)

	resp := env.do(t, http.MethodPost, "/api/email/10/star", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["isStarred"])

	resp = env.do(t, http.MethodPost, "/api/email/10/star", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, email.IsStarred, decode(t, resp)["isStarred"])

	require.Len(t, env.notes.sent, 2)
	assert.Equal(t, "starred", env.notes.sent[0].Data["status"])
	assert.Equal(t, "unstarred", env.notes.sent[1].Data["status"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestConvertToSentRejectsNonDraft(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.expectEmail(t, inboxEmail())

	resp := env.do(t, http.MethodPut, "/api/emails/10/convert-to-sent",
		map[string]string{"subject": "Hi", "toAddress": "bob@example.com"}, &u)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email is not a draft", decode(t, resp)["error"])
}

func TestCreateInboxEmailNotifies(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	email := inboxEmail()

	env.expectAuth(u)
	env.mock.ExpectQuery(`isDraft = 1 AND isActiveDraft = 1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(emailCols))
	env.mock.ExpectExec(`INSERT INTO emails`).
		WillReturnResult(sqlmock.NewResult(10, 1))
	env.expectEmail(t, email)

	resp := env.do(t, http.MethodPost, "/api/emails", map[string]interface{}{
		"fromAddress": "bob@example.com",
		"toAddress":   "ana@mail.test",
		"subject":     "Lunch",
		"body":        "<p>Friday?</p><script>alert(1)</script>",
		"folderId":    "1",
	}, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{EventNewEmail}, env.notes.types())
	assert.Equal(t, "Lunch", env.notes.sent[0].Data["subject"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCreateEmailInUnknownFolder(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT .+ FROM folders WHERE id = \? AND userId = \?`).
		WithArgs(int64(999), int64(1)).
		WillReturnRows(sqlmock.NewRows(folderCols))

	resp := env.do(t, http.MethodPost, "/api/emails", map[string]interface{}{
		"fromAddress": "bob@example.com",
		"toAddress":   "ana@mail.test",
		"subject":     "Lunch",
		"folderId":    "999",
	}, &u)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Folder not found", decode(t, resp)["error"])
	assert.Empty(t, env.notes.sent)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUpdateEmailIntoForeignFolder(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	env.expectAuth(u)
	// folder 40 belongs to someone else, so the scoped lookup finds nothing
	env.mock.ExpectQuery(`SELECT .+ FROM folders WHERE id = \? AND userId = \?`).
		WithArgs(int64(40), int64(1)).
		WillReturnRows(sqlmock.NewRows(folderCols))

	resp := env.do(t, http.MethodPut, "/api/email/10", map[string]interface{}{"folderId": 40}, &u)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSearchNeedsQuery(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/api/search/1?q=", nil, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchMatchesDecryptedContent(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	other := inboxEmail()
	other.ID = 11
	other.Subject = "Invoice"
	other.Body = "due"

	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT .+ FROM emails WHERE userId = \?`).
		WillReturnRows(env.emailRows(t, inboxEmail(), other))
	env.mock.ExpectQuery(`FROM email_tags et JOIN tags t`).
		WillReturnRows(sqlmock.NewRows([]string{"emailId", "tagId", "name"}))

	resp := env.do(t, http.MethodGet, "/api/search/1?q=lunch&folder=all", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeList(t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, float64(10), list[0].(map[string]interface{})["id"])
}

func TestCreateTagDuplicate(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectExec(`INSERT INTO tags`).
		WithArgs(int64(1), "work", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	resp := env.do(t, http.MethodPost, "/api/tags", map[string]string{"name": "work"}, &u)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_TAG", decode(t, resp)["code"])
}

func TestCreateTagNeedsName(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodPost, "/api/tags", map[string]string{"color": "#fff"}, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFolderRejectsSystemName(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodPost, "/api/folders", map[string]string{"name": "Inbox"}, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFolderRejectsPaddedVirtualName(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodPost, "/api/folders", map[string]string{"name": " starred"}, &u)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Folder name is reserved", decode(t, resp)["error"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRenameFolderToSystemName(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	for _, name := range []string{"Inbox", " trash "} {
		env.expectAuth(u)
		resp := env.do(t, http.MethodPut, "/api/folders/104", map[string]string{"name": name}, &u)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.Equal(t, "Folder name is reserved", decode(t, resp)["error"])
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRenameFolder(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT .+ FROM folders WHERE id = \? AND userId = \?`).
		WithArgs(int64(104), int64(1)).
		WillReturnRows(sqlmock.NewRows(folderCols).
			AddRow(int64(104), int64(1), "Projects", "custom", "", "folder", "#6b7280", fixedNow, fixedNow))
	env.mock.ExpectExec(`UPDATE folders SET name = \?`).
		WithArgs("Clients", int64(104), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(`SELECT .+ FROM folders WHERE id = \? AND userId = \?`).
		WithArgs(int64(104), int64(1)).
		WillReturnRows(sqlmock.NewRows(folderCols).
			AddRow(int64(104), int64(1), "Clients", "custom", "", "folder", "#6b7280", fixedNow, fixedNow))

	resp := env.do(t, http.MethodPut, "/api/folders/104", map[string]string{"name": " Clients "}, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Clients", decode(t, resp)["name"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestListFoldersOwnFolders(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectQuery(`SELECT .+ FROM folders WHERE userId = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(folderCols).
			AddRow(int64(20), int64(1), "Projects", "custom", "", "folder", "#6b7280", fixedNow, fixedNow))

	resp := env.do(t, http.MethodGet, "/api/folders/1", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeList(t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Projects", list[0].(map[string]interface{})["name"])
}
