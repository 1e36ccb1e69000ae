package storage

import (
	"context"
	"fmt"
	"strings"

	"webmail/models"
	"webmail/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetActiveDraft returns the draft currently open in the user's composer
func (s *EmailStore) GetActiveDraft(ctx context.Context, userID int64) (*models.Email, error) {
	emails, err := s.query(ctx, "userId = ? AND isDraft = 1 AND isActiveDraft = 1 ORDER BY updatedAt DESC LIMIT 1", userID)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, ErrNotFound
	}
	return &emails[0], nil
}

// CreateActiveDraft returns the active draft, or starts a new empty one when
// there is none or forceNew is set. Starting a draft drops empty leftovers.
func (s *EmailStore) CreateActiveDraft(ctx context.Context, userID int64, forceNew bool) (*models.Email, error) {
	if !forceNew {
		if draft, err := s.GetActiveDraft(ctx, userID); err == nil {
			return draft, nil
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE emails SET isActiveDraft = 0 WHERE userId = ? AND isActiveDraft = 1", userID); err != nil {
		return nil, fmt.Errorf("clearing active drafts: %w", err)
	}
	if err := s.cleanupEmptyDrafts(ctx, tx, userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	messageID := "draft-" + uuid.NewString()
	res, err := tx.ExecContext(ctx, `INSERT INTO emails
		(userId, folderId, messageId, threadId, fromAddress, fromName, toAddress, ccAddress, bccAddress, subject, body,
		isRead, isDraft, isActiveDraft, priority, receivedAt, createdAt, updatedAt)
		VALUES (?, ?, ?, '', '', '', '', '', '', '', '', 1, 1, 1, ?, ?, ?, ?)`,
		userID, models.DraftsFolderID, messageID, models.PriorityNormal, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating draft: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	utils.Log.Debug("Created active draft %d for user %d", id, userID)
	return s.GetEmail(ctx, userID, id)
}

// ClearActiveDraft detaches the composer from its draft; the draft stays
func (s *EmailStore) ClearActiveDraft(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE emails SET isActiveDraft = 0 WHERE userId = ? AND isActiveDraft = 1", userID)
	return translate(err)
}

// ConvertDraftToSent turns a draft into a sent email. Non-nil content
// replaces the draft's addresses, subject, body and attachments.
func (s *EmailStore) ConvertDraftToSent(ctx context.Context, userID, draftID int64, content *models.NewEmail) (*models.Email, error) {
	draft, err := s.GetEmail(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if !draft.IsDraft {
		return nil, ErrNotDraft
	}

	now := s.now().UTC()
	sets := []string{"folderId = ?", "isDraft = 0", "isActiveDraft = 0", "isRead = 1", "sentAt = ?", "updatedAt = ?"}
	args := []interface{}{models.SentFolderID, now, now}

	if content != nil {
		enc, err := s.encryptedFields(userID, content.FromAddress, content.ToAddress, content.CcAddress,
			content.BccAddress, content.Subject, content.Body)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "fromAddress = ?", "toAddress = ?", "ccAddress = ?", "bccAddress = ?", "subject = ?", "body = ?", "fromName = ?", "threadId = ?")
		args = append(args, enc...)
		args = append(args, content.FromName, utils.GenerateThreadID(content.Subject))
		if content.Attachments != nil {
			attachments := content.Attachments.Stored()
			sets = append(sets, "attachments = ?", "hasAttachments = ?")
			args = append(args, attachments, len(attachments) > 0)
		}
		if content.MessageID != "" && !strings.HasPrefix(content.MessageID, "draft-") {
			sets = append(sets, "messageId = ?")
			args = append(args, content.MessageID)
		}
	}

	args = append(args, draftID, userID)
	if _, err := s.db.ExecContext(ctx, "UPDATE emails SET "+strings.Join(sets, ", ")+" WHERE id = ? AND userId = ?", args...); err != nil {
		return nil, fmt.Errorf("converting draft %d: %w", draftID, translate(err))
	}
	return s.GetEmail(ctx, userID, draftID)
}

// cleanupEmptyDrafts removes non-active drafts with no subject, body or
// recipients. Empty fields are stored unencrypted so they compare equal to ''.
func (s *EmailStore) cleanupEmptyDrafts(ctx context.Context, db sqlx.ExtContext, userID int64) error {
	var ids []int64
	err := sqlx.SelectContext(ctx, db, &ids, `SELECT id FROM emails
		WHERE userId = ? AND isDraft = 1 AND isActiveDraft = 0
		AND subject = '' AND body = '' AND toAddress = ''`, userID)
	if err != nil {
		return fmt.Errorf("finding empty drafts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM email_tags WHERE emailId IN (?)", ids)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, db.Rebind(query), args...); err != nil {
		return fmt.Errorf("removing tags of empty drafts: %w", err)
	}

	query, args, err = sqlx.In("DELETE FROM emails WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, db.Rebind(query), args...); err != nil {
		return fmt.Errorf("removing empty drafts: %w", err)
	}

	utils.Log.Debug("Cleaned up %d empty drafts for user %d", len(ids), userID)
	return nil
}
