package storage

import (
	"context"
	"fmt"
	"strings"

	"webmail/models"

	"github.com/jmoiron/sqlx"
)

// BlockedSenderStore manages blocked sender addresses
type BlockedSenderStore struct {
	db *sqlx.DB
}

// NewBlockedSenderStore creates a new blocked sender store
func NewBlockedSenderStore(db *sqlx.DB) *BlockedSenderStore {
	return &BlockedSenderStore{db: db}
}

// ListBlockedSenders returns the user's blocked senders, newest first
func (s *BlockedSenderStore) ListBlockedSenders(ctx context.Context, userID int64) ([]models.BlockedSender, error) {
	senders := []models.BlockedSender{}
	err := s.db.SelectContext(ctx, &senders,
		"SELECT id, userId, blockedEmail, createdAt FROM blocked_senders WHERE userId = ? ORDER BY createdAt DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing blocked senders: %w", err)
	}
	return senders, nil
}

// CreateBlockedSender blocks an address and, when emailID is set, moves that
// email to junk.
func (s *BlockedSenderStore) CreateBlockedSender(ctx context.Context, userID int64, address string, emailID *int64) (*models.BlockedSender, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "INSERT INTO blocked_senders (userId, blockedEmail) VALUES (?, ?)",
		userID, strings.ToLower(strings.TrimSpace(address)))
	if err != nil {
		return nil, fmt.Errorf("blocking sender: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if emailID != nil {
		if _, err := tx.ExecContext(ctx, "UPDATE emails SET folderId = ? WHERE id = ? AND userId = ?",
			models.JunkFolderID, *emailID, userID); err != nil {
			return nil, fmt.Errorf("moving email %d to junk: %w", *emailID, err)
		}
	}

	var sender models.BlockedSender
	if err := tx.GetContext(ctx, &sender, "SELECT id, userId, blockedEmail, createdAt FROM blocked_senders WHERE id = ?", id); err != nil {
		return nil, translate(err)
	}
	return &sender, tx.Commit()
}

// DeleteBlockedSender unblocks an address
func (s *BlockedSenderStore) DeleteBlockedSender(ctx context.Context, userID, id int64) error {
	return checkAffected(s.db.ExecContext(ctx, "DELETE FROM blocked_senders WHERE id = ? AND userId = ?", id, userID))
}
