package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTimeConfig(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/datetime/config", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "01/03/2024 07:00:00", body["serverTime"])
	assert.Equal(t, "01/03/2024", body["serverDate"])
	assert.Equal(t, "07:00:00", body["serverTimeOnly"])
	assert.Equal(t, "America/Sao_Paulo", body["timezone"])
	assert.Equal(t, "pt-BR", body["locale"])
	assert.Equal(t, "-03:00", body["mysqlTimezone"])
	assert.Equal(t, "dd/MM/yyyy", body["formats"].(map[string]interface{})["date"])
}

func TestTranslations(t *testing.T) {
	env := newTestEnv(t)

	body := decode(t, env.do(t, http.MethodGet, "/api/i18n/pt", nil, nil))
	assert.Equal(t, "pt", body["language"])
	messages := body["messages"].(map[string]interface{})
	assert.Equal(t, "Senha atual incorreta", messages["auth_wrong_password"])

	body = decode(t, env.do(t, http.MethodGet, "/api/i18n/xx", nil, nil))
	assert.Equal(t, "en", body["language"])
	assert.ElementsMatch(t, []interface{}{"en", "pt"}, body["languages"])
}

func TestNotificationFanOut(t *testing.T) {
	h := NewNotificationHandler()
	idA, chA := h.subscribe(1)
	_, chB := h.subscribe(1)
	_, other := h.subscribe(2)
	assert.Equal(t, 2, h.Subscribers(1))

	NotifyStatusChange(h, 1, 10, "read")

	for _, ch := range []chan Notification{chA, chB} {
		select {
		case n := <-ch:
			assert.Equal(t, EventStatusChange, n.Type)
			assert.Equal(t, "read", n.Data["status"])
			assert.NotEmpty(t, n.ID)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}
	select {
	case <-other:
		t.Fatal("other user received a notification")
	default:
	}

	h.unsubscribe(1, idA)
	assert.Equal(t, 1, h.Subscribers(1))
	_, open := <-chA
	assert.False(t, open)
}

func TestNotifyDropsWhenBufferFull(t *testing.T) {
	h := NewNotificationHandler()
	_, ch := h.subscribe(1)
	for i := 0; i < cap(ch)+5; i++ {
		NotifyEmailDeleted(h, 1, int64(i), false)
	}
	assert.Len(t, ch, cap(ch))
}

func TestWebSocketNeedsUpgrade(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/ws/notifications", nil, &u)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestActiveDraftMissing(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectQuery(`isDraft = 1 AND isActiveDraft = 1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(emailCols))

	resp := env.do(t, http.MethodGet, "/api/drafts/active/1", nil, &u)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No active draft found", decode(t, resp)["error"])
}

func TestBlockSenderTwice(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectBegin()
	env.mock.ExpectExec(`INSERT INTO blocked_senders`).
		WithArgs(int64(1), "spam@example.com").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	env.mock.ExpectRollback()

	resp := env.do(t, http.MethodPost, "/api/blocked-senders", map[string]string{"blockedEmail": "spam@example.com"}, &u)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Sender is already blocked", decode(t, resp)["error"])
}

func TestCreateAlias(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)
	env.mock.ExpectExec(`INSERT INTO aliases`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	env.mock.ExpectQuery(`SELECT .+ FROM aliases WHERE id = \? AND userId = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "userId", "aliasName", "forwardTo", "isActive", "description", "createdAt", "updatedAt"}).
			AddRow(int64(2), int64(1), "sales", "ana@example.com", true, "", fixedNow, fixedNow))

	resp := env.do(t, http.MethodPost, "/api/aliases",
		map[string]string{"aliasName": "Sales", "forwardTo": "ana@example.com"}, &u)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sales", decode(t, resp)["aliasName"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
