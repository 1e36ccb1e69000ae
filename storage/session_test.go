package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	var store SessionStorage = NewRedisSessionStorage(client, "sess:")
	defer store.Close()

	val, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("abc", []byte("data"), time.Minute))
	assert.True(t, mr.Exists("sess:abc"))
	assert.Equal(t, time.Minute, mr.TTL("sess:abc"))

	val, err = store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), val)

	mr.FastForward(2 * time.Minute)
	val, err = store.Get("abc")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("x", []byte("1"), 0))
	require.NoError(t, store.Set("y", []byte("2"), 0))
	require.NoError(t, mr.Set("other", "keep"))
	require.NoError(t, store.Delete("x"))
	assert.False(t, mr.Exists("sess:x"))

	require.NoError(t, store.Reset())
	assert.False(t, mr.Exists("sess:y"))
	assert.True(t, mr.Exists("other"))
}

func TestMySQLSessionStorage(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewMySQLSessionStorage(db)
	s.now = func() time.Time { return fixedNow }
	var store SessionStorage = s

	mock.ExpectExec(`INSERT INTO sessions .+ ON DUPLICATE KEY UPDATE`).
		WithArgs("abc", []byte("data"), fixedNow.Add(time.Hour).Unix()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Set("abc", []byte("data"), time.Hour))

	mock.ExpectQuery(`SELECT sess, expire FROM sessions WHERE sid = \?`).WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"sess", "expire"}).AddRow([]byte("data"), fixedNow.Add(time.Hour).Unix()))
	val, err := store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), val)

	mock.ExpectQuery(`SELECT sess, expire FROM sessions`).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"sess", "expire"}).AddRow([]byte("data"), fixedNow.Add(-time.Second).Unix()))
	val, err = store.Get("old")
	require.NoError(t, err)
	assert.Nil(t, val)

	mock.ExpectQuery(`SELECT sess, expire FROM sessions`).WithArgs("none").WillReturnError(sql.ErrNoRows)
	val, err = store.Get("none")
	require.NoError(t, err)
	assert.Nil(t, val)

	mock.ExpectExec(`DELETE FROM sessions WHERE expire <> 0 AND expire <= \?`).WithArgs(fixedNow.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := store.GC(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
