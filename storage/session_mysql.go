package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
)

// SessionStorage is a fiber.Storage that can purge expired sessions
type SessionStorage interface {
	fiber.Storage
	GC(ctx context.Context) (int64, error)
}

const sessionQueryTimeout = 5 * time.Second

// MySQLSessionStorage is a fiber.Storage backed by the sessions table.
// An expire of 0 means the row never expires.
type MySQLSessionStorage struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMySQLSessionStorage creates a session storage on db
func NewMySQLSessionStorage(db *sqlx.DB) *MySQLSessionStorage {
	return &MySQLSessionStorage{db: db, now: time.Now}
}

func sessionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), sessionQueryTimeout)
}

// Get returns the session data, or nil when missing or expired
func (s *MySQLSessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := sessionContext()
	defer cancel()

	var row struct {
		Sess   []byte `db:"sess"`
		Expire int64  `db:"expire"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT sess, expire FROM sessions WHERE sid = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Expire != 0 && row.Expire <= s.now().Unix() {
		return nil, nil
	}
	return row.Sess, nil
}

// Set stores session data for exp; exp 0 keeps it forever
func (s *MySQLSessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := sessionContext()
	defer cancel()

	var expire int64
	if exp > 0 {
		expire = s.now().Add(exp).Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (sid, sess, expire) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE sess = VALUES(sess), expire = VALUES(expire)",
		key, val, expire)
	return err
}

// Delete removes a session
func (s *MySQLSessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := sessionContext()
	defer cancel()
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE sid = ?", key)
	return err
}

// Reset removes all sessions
func (s *MySQLSessionStorage) Reset() error {
	ctx, cancel := sessionContext()
	defer cancel()
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions")
	return err
}

// Close is a no-op; the pool is owned by the caller
func (s *MySQLSessionStorage) Close() error {
	return nil
}

// GC deletes expired sessions and returns how many were removed
func (s *MySQLSessionStorage) GC(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expire <> 0 AND expire <= ?", s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
