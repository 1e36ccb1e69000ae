package api

import (
	"errors"
	"net/http"
	"testing"

	"webmail/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectStoreSent queues the queries CreateEmail runs for a sent email
func (e *testEnv) expectStoreSent(t *testing.T, stored models.Email) {
	e.mock.ExpectQuery(`isDraft = 1 AND isActiveDraft = 1`).
		WithArgs(stored.UserID).
		WillReturnRows(sqlmock.NewRows(emailCols))
	e.mock.ExpectExec(`INSERT INTO emails`).
		WillReturnResult(sqlmock.NewResult(stored.ID, 1))
	e.expectEmail(t, stored)
}

func sentEmail() models.Email {
	return models.Email{
		ID: 30, UserID: 1, FolderID: models.SentFolderID,
		FromAddress: "ana@mail.test", ToAddress: "bob@example.com",
		Subject: "Report", Body: "<p>attached</p>", IsRead: true,
	}
}

func TestSendSubmitsAndRecordsMessageID(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	u.Signature = "<b>Ana</b><script>x()</script>"

	env.expectAuth(u)
	env.expectStoreSent(t, sentEmail())
	env.mock.ExpectExec(`UPDATE emails SET messageId = \?`).
		WithArgs("<generated@mail.test>", int64(30), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp := env.do(t, http.MethodPost, "/api/emails/send", map[string]interface{}{
		"toAddress":   "Bob <bob@example.com>, ",
		"fromAddress": "spoof@evil.test",
		"subject":     "Report",
		"body":        "<p>attached</p>",
		"attachments": []map[string]interface{}{
			{"filename": "notes.txt", "content": "aGVsbG8=", "mimetype": "text/plain"},
		},
	}, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	result := body["smtpResult"].(map[string]interface{})
	assert.Equal(t, true, result["sent"])
	assert.Equal(t, "<generated@mail.test>", result["messageId"])
	assert.Equal(t, "<generated@mail.test>", body["messageId"])

	msg := env.sender.msg
	require.NotNil(t, msg)
	assert.Equal(t, "ana@mail.test", msg.From.Address)
	assert.Equal(t, "Ana Silva", msg.From.Name)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "bob@example.com", msg.To[0].Address)
	assert.Contains(t, msg.HTML, signatureSeparator+"<b>Ana</b>")
	assert.NotContains(t, msg.HTML, "<script>")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte("hello"), msg.Attachments[0].Data)

	// bearer clients have no session password, so the relay account is used
	assert.Equal(t, "relay@mail.test", env.sender.creds.Username)
	assert.Equal(t, []string{EventEmailSent}, env.notes.types())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSendReportsRelayFailure(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.sender.err = errors.New("relay down")

	env.expectAuth(u)
	env.expectStoreSent(t, sentEmail())

	resp := env.do(t, http.MethodPost, "/api/emails/send", map[string]interface{}{
		"toAddress": "bob@example.com",
		"subject":   "Report",
		"body":      "<p>attached</p>",
	}, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode(t, resp)["smtpResult"].(map[string]interface{})
	assert.Equal(t, false, result["sent"])
	assert.Equal(t, "relay down", result["error"])
	require.Len(t, env.notes.sent, 1)
	assert.Equal(t, false, env.notes.sent[0].Data["delivered"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSendNeedsRecipient(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodPost, "/api/emails/send", map[string]string{"subject": "x"}, &u)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, env.sender.msg)
}

func TestSMTPConnectionTest(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/api/smtp/test", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "relay@mail.test", body["config"].(map[string]interface{})["user"])

	env.sender.err = errors.New("dial tcp: refused")
	env.expectAuth(u)
	resp = env.do(t, http.MethodGet, "/api/smtp/test", nil, &u)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "dial tcp: refused", decode(t, resp)["error"])
}
