package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"webmail/config"
	"webmail/utils"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key would be violated
	ErrDuplicate = errors.New("duplicate entry")
)

const mysqlDuplicateEntry = 1062

// OpenDB opens the MySQL connection pool and checks connectivity
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}

	return db, nil
}

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				username VARCHAR(50) NOT NULL,
				email VARCHAR(255) NOT NULL,
				password VARCHAR(255) NOT NULL,
				firstName VARCHAR(100) NOT NULL DEFAULT '',
				lastName VARCHAR(100) NOT NULL DEFAULT '',
				profilePicture VARCHAR(500) NOT NULL DEFAULT '',
				signature TEXT NOT NULL,
				storageUsed BIGINT NOT NULL DEFAULT 0,
				storageQuota BIGINT NOT NULL DEFAULT 104857600,
				language VARCHAR(10) NOT NULL DEFAULT 'pt',
				theme VARCHAR(20) NOT NULL DEFAULT 'dark',
				avatarShape VARCHAR(20) NOT NULL DEFAULT 'rounded',
				sidebarView VARCHAR(20) NOT NULL DEFAULT 'expanded',
				emailsPerPage INT NOT NULL DEFAULT 20,
				stayLoggedIn TINYINT(1) NOT NULL DEFAULT 0,
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				updatedAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_users_username (username),
				UNIQUE KEY uq_users_email (email)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			// Custom folder ids start above the static system folder range
			`CREATE TABLE IF NOT EXISTS folders (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				userId BIGINT NOT NULL,
				name VARCHAR(100) NOT NULL,
				type VARCHAR(20) NOT NULL DEFAULT 'custom',
				systemType VARCHAR(50) NOT NULL DEFAULT '',
				icon VARCHAR(50) NOT NULL DEFAULT 'folder',
				color VARCHAR(7) NOT NULL DEFAULT '#6b7280',
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				updatedAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_folders_user_name (userId, name),
				KEY idx_folders_user (userId)
			) ENGINE=InnoDB AUTO_INCREMENT=100 DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS emails (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				userId BIGINT NOT NULL,
				folderId BIGINT NOT NULL,
				messageId VARCHAR(255) NULL,
				threadId VARCHAR(255) NOT NULL DEFAULT '',
				fromAddress TEXT NOT NULL,
				fromName VARCHAR(255) NOT NULL DEFAULT '',
				toAddress TEXT NOT NULL,
				ccAddress TEXT NOT NULL,
				bccAddress TEXT NOT NULL,
				subject TEXT NOT NULL,
				body MEDIUMTEXT NOT NULL,
				attachments JSON NULL,
				hasAttachments TINYINT(1) NOT NULL DEFAULT 0,
				isRead TINYINT(1) NOT NULL DEFAULT 0,
				isStarred TINYINT(1) NOT NULL DEFAULT 0,
				isDraft TINYINT(1) NOT NULL DEFAULT 0,
				isActiveDraft TINYINT(1) NOT NULL DEFAULT 0,
				priority VARCHAR(20) NOT NULL DEFAULT 'normal',
				sentAt DATETIME(3) NULL,
				receivedAt DATETIME(3) NULL,
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				updatedAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_emails_message_id (messageId),
				KEY idx_emails_user_folder (userId, folderId),
				KEY idx_emails_user_starred (userId, isStarred)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS tags (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				userId BIGINT NOT NULL,
				name VARCHAR(50) NOT NULL,
				color VARCHAR(7) NOT NULL DEFAULT '#3b82f6',
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				updatedAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_tags_user_name (userId, name)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS email_tags (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				emailId BIGINT NOT NULL,
				tagId BIGINT NOT NULL,
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_email_tags (emailId, tagId),
				KEY idx_email_tags_tag (tagId)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS aliases (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				userId BIGINT NOT NULL,
				aliasName VARCHAR(100) NOT NULL,
				forwardTo VARCHAR(255) NOT NULL,
				isActive TINYINT(1) NOT NULL DEFAULT 1,
				description TEXT NOT NULL,
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				updatedAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
				UNIQUE KEY uq_aliases_name (aliasName),
				KEY idx_aliases_user (userId)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS blocked_senders (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				userId BIGINT NOT NULL,
				blockedEmail VARCHAR(255) NOT NULL,
				createdAt DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
				KEY idx_blocked_user (userId)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				sid VARCHAR(128) NOT NULL PRIMARY KEY,
				sess BLOB NOT NULL,
				expire BIGINT NOT NULL DEFAULT 0,
				KEY idx_sessions_expire (expire)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
}

// Migrate applies outstanding schema migrations in order and records each
// applied version in schema_migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT NOT NULL PRIMARY KEY,
		appliedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration v%d: %w", m.version, err)
			}
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("recording migration v%d: %w", m.version, err)
		}
		utils.Log.Info("Applied migration v%d", m.version)
	}

	return nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// translate maps driver errors to the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
