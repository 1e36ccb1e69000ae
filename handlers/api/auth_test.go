package api

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp := env.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", decode(t, resp)["status"])
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).
		WithArgs("ana@mail.test").
		WillReturnRows(userRows(u))

	resp := env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "Ana", "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ana@mail.test", user["email"])
	assert.NotContains(t, user, "password")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginFailureCountsAttempts(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).
		WithArgs("ana@mail.test").
		WillReturnRows(userRows(u))

	resp := env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "ana@mail.test", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(1), body["attempts"])
	assert.Equal(t, float64(4), body["maxAttempts"])
	assert.Equal(t, float64(3), body["remaining"])
}

func TestLoginBlocksAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 4; i++ {
		env.mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).
			WillReturnRows(sqlmock.NewRows(userCols))
	}

	var last *http.Response
	for i := 0; i < 4; i++ {
		last = env.do(t, http.MethodPost, "/api/auth/login",
			map[string]string{"username": "nobody", "password": "wrong"}, nil)
	}
	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	assert.Equal(t, true, decode(t, last)["blocked"])

	// blocked before the database is consulted
	resp := env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "ana", "password": testPassword}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NoError(t, env.mock.ExpectationsWereMet())

	status := decode(t, env.do(t, http.MethodGet, "/api/auth/status", nil, nil))
	assert.Equal(t, true, status["blocked"])
}

func TestRegisterRejectsForeignDomain(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "ana@gmail.com", "firstName": "Ana", "lastName": "Silva", "password": testPassword,
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode(t, resp)["error"], "mail.test")
}

func TestRegisterExistingEmail(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).
		WithArgs("ana@mail.test").
		WillReturnRows(userRows(testUser()))

	resp := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "Ana@mail.test", "firstName": "Ana", "lastName": "Silva", "password": testPassword,
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterCreatesUser(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	u.ID = 9
	u.Email = "bia@mail.test"

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).
		WithArgs("bia@mail.test").
		WillReturnRows(sqlmock.NewRows(userCols))
	env.mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(9, 1))
	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(userRows(u))

	resp := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "bia@mail.test", "firstName": "Bia", "lastName": "Souza", "password": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, decode(t, resp)["token"])
	assert.DirExists(t, env.files.UserDir(9))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRegisterValidatesBody(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "bia@mail.test", "password": "123",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesNeedAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/folders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/verify", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyWithToken(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/api/auth/verify", nil, &u)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["authenticated"])
}

func TestOtherUsersMailboxIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	u := testUser()
	env.expectAuth(u)

	resp := env.do(t, http.MethodGet, "/api/emails/2", nil, &u)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
