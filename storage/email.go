package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webmail/models"
	"webmail/utils"

	"github.com/jmoiron/sqlx"
)

const emailColumns = `id, userId, folderId, messageId, threadId, fromAddress, fromName, toAddress,
	ccAddress, bccAddress, subject, body, attachments, hasAttachments, isRead, isStarred, isDraft,
	isActiveDraft, priority, sentAt, receivedAt, createdAt, updatedAt`

// ErrNotDraft is returned when converting an email that is not a draft
var ErrNotDraft = errors.New("email is not a draft")

// AttachmentCleaner removes attachment files referenced by deleted emails
type AttachmentCleaner interface {
	CleanupFiles(userID int64, paths []string) error
}

// EmailStore manages emails. Address, subject and body columns are
// encrypted with the user's key before they reach MySQL.
type EmailStore struct {
	db     *sqlx.DB
	cipher *utils.EmailCipher
	files  AttachmentCleaner
	now    func() time.Time
}

// NewEmailStore creates a new email store
func NewEmailStore(db *sqlx.DB, cipher *utils.EmailCipher, files AttachmentCleaner) *EmailStore {
	return &EmailStore{db: db, cipher: cipher, files: files, now: time.Now}
}

func (s *EmailStore) encrypt(userID int64, value string) (string, error) {
	return s.cipher.Encrypt(userID, value)
}

func (s *EmailStore) decrypt(e *models.Email) {
	e.FromAddress = s.cipher.Decrypt(e.UserID, e.FromAddress)
	e.ToAddress = s.cipher.Decrypt(e.UserID, e.ToAddress)
	e.CcAddress = s.cipher.Decrypt(e.UserID, e.CcAddress)
	e.BccAddress = s.cipher.Decrypt(e.UserID, e.BccAddress)
	e.Subject = s.cipher.Decrypt(e.UserID, e.Subject)
	e.Body = s.cipher.Decrypt(e.UserID, e.Body)
}

// encryptedFields encrypts the sensitive fields in column order:
// fromAddress, toAddress, ccAddress, bccAddress, subject, body
func (s *EmailStore) encryptedFields(userID int64, values ...string) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	for i, v := range values {
		enc, err := s.encrypt(userID, v)
		if err != nil {
			return nil, fmt.Errorf("encrypting email field: %w", err)
		}
		out[i] = enc
	}
	return out, nil
}

// query loads, decrypts and tag-enriches emails
func (s *EmailStore) query(ctx context.Context, where string, args ...interface{}) ([]models.Email, error) {
	emails := []models.Email{}
	if err := s.db.SelectContext(ctx, &emails, "SELECT "+emailColumns+" FROM emails WHERE "+where, args...); err != nil {
		return nil, fmt.Errorf("loading emails: %w", err)
	}
	for i := range emails {
		s.decrypt(&emails[i])
	}
	if err := s.enrich(ctx, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (s *EmailStore) enrich(ctx context.Context, emails []models.Email) error {
	ids := make([]int64, len(emails))
	for i := range emails {
		ids[i] = emails[i].ID
	}
	tags, err := tagsByEmail(ctx, s.db, ids)
	if err != nil {
		return err
	}
	for i := range emails {
		emails[i].Tags = []string{}
		emails[i].TagIDs = nil
		for _, t := range tags[emails[i].ID] {
			emails[i].Tags = append(emails[i].Tags, t.Name)
			emails[i].TagIDs = append(emails[i].TagIDs, t.TagID)
		}
	}
	return nil
}

// GetEmail returns an email owned by the user
func (s *EmailStore) GetEmail(ctx context.Context, userID, id int64) (*models.Email, error) {
	emails, err := s.query(ctx, "id = ? AND userId = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, ErrNotFound
	}
	return &emails[0], nil
}

// ListEmails lists the user's emails, optionally restricted to a folder and
// a search term, newest first. It also returns the unpaginated total.
func (s *EmailStore) ListEmails(ctx context.Context, userID int64, folderID int64, search string, limit, offset int) ([]models.Email, int, error) {
	where := "userId = ?"
	args := []interface{}{userID}
	if folderID > 0 {
		where += " AND folderId = ?"
		args = append(args, folderID)
	}

	emails, err := s.query(ctx, where, args...)
	if err != nil {
		return nil, 0, err
	}

	matched := emails[:0]
	for _, e := range emails {
		if MatchesQuery(&e, search) {
			matched = append(matched, e)
		}
	}
	SortByFolder(matched, "")

	return paginate(matched, limit, offset), len(matched), nil
}

// CreateEmail stores a new email. A sent email (isDraft false) replaces the
// user's active draft if there is one. Saving a draft whose messageId starts
// with "draft-" updates the active draft instead of inserting.
func (s *EmailStore) CreateEmail(ctx context.Context, in models.NewEmail) (*models.Email, error) {
	isDraft := bool(in.IsDraft)

	active, err := s.GetActiveDraft(ctx, in.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if !isDraft && active != nil {
		utils.Log.Debug("Converting active draft %d to sent email for user %d", active.ID, in.UserID)
		return s.ConvertDraftToSent(ctx, in.UserID, active.ID, &in)
	}
	if isDraft && active != nil && strings.HasPrefix(in.MessageID, "draft-") {
		return s.updateDraftContent(ctx, active, in)
	}
	if isDraft {
		if err := s.cleanupEmptyDrafts(ctx, s.db, in.UserID); err != nil {
			return nil, err
		}
	}

	folderID := int64(in.FolderID)
	if folderID == 0 {
		folderID = models.SentFolderID
		if isDraft {
			folderID = models.DraftsFolderID
		}
	}

	now := s.now().UTC()
	var sentAt *time.Time
	if !isDraft {
		sentAt = &now
	}
	receivedAt := now
	if in.ReceivedAt != nil {
		receivedAt = in.ReceivedAt.UTC()
	}
	var messageID *string
	if in.MessageID != "" {
		messageID = &in.MessageID
	}
	threadID := in.ThreadID
	if threadID == "" {
		threadID = utils.GenerateThreadID(in.Subject)
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	enc, err := s.encryptedFields(in.UserID, in.FromAddress, in.ToAddress, in.CcAddress, in.BccAddress, in.Subject, in.Body)
	if err != nil {
		return nil, err
	}
	attachments := in.Attachments.Stored()

	args := []interface{}{in.UserID, folderID, messageID, threadID, enc[0], in.FromName, enc[1], enc[2], enc[3], enc[4], enc[5],
		attachments, len(attachments) > 0, bool(in.IsRead), bool(in.IsStarred), isDraft, priority, sentAt, receivedAt, now, now}
	res, err := s.db.ExecContext(ctx, `INSERT INTO emails
		(userId, folderId, messageId, threadId, fromAddress, fromName, toAddress, ccAddress, bccAddress, subject, body,
		attachments, hasAttachments, isRead, isStarred, isDraft, priority, sentAt, receivedAt, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("creating email: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetEmail(ctx, in.UserID, id)
}

func (s *EmailStore) updateDraftContent(ctx context.Context, draft *models.Email, in models.NewEmail) (*models.Email, error) {
	upd := models.EmailUpdate{
		FromAddress: &in.FromAddress,
		FromName:    &in.FromName,
		ToAddress:   &in.ToAddress,
		CcAddress:   &in.CcAddress,
		BccAddress:  &in.BccAddress,
		Subject:     &in.Subject,
		Body:        &in.Body,
	}
	if in.Attachments != nil {
		upd.Attachments = &in.Attachments
	}
	if in.Priority != "" {
		upd.Priority = &in.Priority
	}
	return s.UpdateEmail(ctx, draft.UserID, draft.ID, upd)
}

// UpdateEmail applies a partial update. Attachments are kept when omitted and
// hasAttachments follows the stored attachment list.
func (s *EmailStore) UpdateEmail(ctx context.Context, userID, id int64, upd models.EmailUpdate) (*models.Email, error) {
	if _, err := s.GetEmail(ctx, userID, id); err != nil {
		return nil, err
	}

	sets := []string{"updatedAt = ?"}
	args := []interface{}{s.now().UTC()}

	encrypted := []struct {
		column string
		value  *string
	}{
		{"fromAddress", upd.FromAddress},
		{"toAddress", upd.ToAddress},
		{"ccAddress", upd.CcAddress},
		{"bccAddress", upd.BccAddress},
		{"subject", upd.Subject},
		{"body", upd.Body},
	}
	for _, f := range encrypted {
		if f.value == nil {
			continue
		}
		enc, err := s.encrypt(userID, *f.value)
		if err != nil {
			return nil, fmt.Errorf("encrypting %s: %w", f.column, err)
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, enc)
	}

	if upd.FolderID != nil && *upd.FolderID > 0 {
		sets = append(sets, "folderId = ?")
		args = append(args, int64(*upd.FolderID))
	}
	if upd.MessageID != nil {
		var messageID interface{}
		if *upd.MessageID != "" {
			messageID = *upd.MessageID
		}
		sets = append(sets, "messageId = ?")
		args = append(args, messageID)
	}
	if upd.ThreadID != nil {
		sets = append(sets, "threadId = ?")
		args = append(args, *upd.ThreadID)
	}
	if upd.FromName != nil {
		sets = append(sets, "fromName = ?")
		args = append(args, *upd.FromName)
	}
	if upd.Attachments != nil {
		attachments := upd.Attachments.Stored()
		sets = append(sets, "attachments = ?", "hasAttachments = ?")
		args = append(args, attachments, len(attachments) > 0)
	}
	if upd.IsRead != nil {
		sets = append(sets, "isRead = ?")
		args = append(args, bool(*upd.IsRead))
	}
	if upd.IsStarred != nil {
		sets = append(sets, "isStarred = ?")
		args = append(args, bool(*upd.IsStarred))
	}
	if upd.IsDraft != nil {
		sets = append(sets, "isDraft = ?")
		args = append(args, bool(*upd.IsDraft))
	}
	if upd.Priority != nil && *upd.Priority != "" {
		sets = append(sets, "priority = ?")
		args = append(args, *upd.Priority)
	}

	args = append(args, id, userID)
	if _, err := s.db.ExecContext(ctx, "UPDATE emails SET "+strings.Join(sets, ", ")+" WHERE id = ? AND userId = ?", args...); err != nil {
		return nil, fmt.Errorf("updating email %d: %w", id, translate(err))
	}
	return s.GetEmail(ctx, userID, id)
}

// DeleteEmail moves an email to trash, or deletes it for good when permanent
// is set or the email already sits in drafts, junk or trash. Hard deletes
// also drop tag links and attachment files. The returned flag reports a hard
// delete.
func (s *EmailStore) DeleteEmail(ctx context.Context, userID, id int64, permanent bool) (bool, error) {
	email, err := s.GetEmail(ctx, userID, id)
	if err != nil {
		return false, err
	}

	switch email.FolderID {
	case models.DraftsFolderID, models.JunkFolderID, models.TrashFolderID:
		permanent = true
	}

	if !permanent {
		_, err := s.db.ExecContext(ctx, "UPDATE emails SET folderId = ?, updatedAt = ? WHERE id = ? AND userId = ?",
			models.TrashFolderID, s.now().UTC(), id, userID)
		if err != nil {
			return false, fmt.Errorf("moving email %d to trash: %w", id, err)
		}
		return false, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM email_tags WHERE emailId = ?", id); err != nil {
		return false, fmt.Errorf("removing email tags: %w", err)
	}
	if err := checkAffected(tx.ExecContext(ctx, "DELETE FROM emails WHERE id = ? AND userId = ?", id, userID)); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	if paths := email.Attachments.Paths(); len(paths) > 0 && s.files != nil {
		if err := s.files.CleanupFiles(userID, paths); err != nil {
			utils.Log.Warn("Failed to remove attachments of email %d: %v", id, err)
		}
	}
	return true, nil
}

// MoveEmail moves an email to a folder. Moving to starred only stars it.
func (s *EmailStore) MoveEmail(ctx context.Context, userID, id int64, target *FolderRef) (*models.Email, error) {
	if _, err := s.GetEmail(ctx, userID, id); err != nil {
		return nil, err
	}

	var err error
	if target.Starred {
		_, err = s.db.ExecContext(ctx, "UPDATE emails SET isStarred = 1, updatedAt = ? WHERE id = ? AND userId = ?",
			s.now().UTC(), id, userID)
	} else {
		_, err = s.db.ExecContext(ctx, "UPDATE emails SET folderId = ?, updatedAt = ? WHERE id = ? AND userId = ?",
			target.ID, s.now().UTC(), id, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("moving email %d: %w", id, err)
	}
	return s.GetEmail(ctx, userID, id)
}

// ToggleStar flips isStarred
func (s *EmailStore) ToggleStar(ctx context.Context, userID, id int64) (*models.Email, error) {
	if _, err := s.GetEmail(ctx, userID, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE emails SET isStarred = NOT isStarred, updatedAt = ? WHERE id = ? AND userId = ?",
		s.now().UTC(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("toggling star on email %d: %w", id, err)
	}
	return s.GetEmail(ctx, userID, id)
}

// MarkRead sets isRead
func (s *EmailStore) MarkRead(ctx context.Context, userID, id int64, isRead bool) (*models.Email, error) {
	if _, err := s.GetEmail(ctx, userID, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE emails SET isRead = ?, updatedAt = ? WHERE id = ? AND userId = ?",
		isRead, s.now().UTC(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("marking email %d read: %w", id, err)
	}
	return s.GetEmail(ctx, userID, id)
}

// SetMessageID records the Message-ID assigned by the SMTP submission
func (s *EmailStore) SetMessageID(ctx context.Context, userID, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE emails SET messageId = ? WHERE id = ? AND userId = ?", messageID, id, userID)
	return translate(err)
}

// ListFolder returns one page of a folder listing. A nil ref (unknown
// folder) yields an empty page.
func (s *EmailStore) ListFolder(ctx context.Context, userID int64, ref *FolderRef, limit, offset int, filters models.EmailFilters) (*models.PaginatedEmails, error) {
	if ref == nil {
		return models.NewPaginatedEmails(nil, 0, limit, offset), nil
	}

	var emails []models.Email
	var err error
	if ref.Starred {
		emails, err = s.query(ctx, "userId = ? AND isStarred = 1", userID)
	} else {
		emails, err = s.query(ctx, "userId = ? AND folderId = ?", userID, ref.ID)
	}
	if err != nil {
		return nil, err
	}

	SortByFolder(emails, ref.Key)
	filtered := ApplyEmailFilters(emails, filters)
	return models.NewPaginatedEmails(paginate(filtered, limit, offset), len(filtered), limit, offset), nil
}

// Search finds emails whose subject, body, sender or recipients contain the
// query, optionally within one folder, newest first.
func (s *EmailStore) Search(ctx context.Context, userID int64, query string, ref *FolderRef) ([]models.Email, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Email{}, nil
	}

	where := "userId = ?"
	args := []interface{}{userID}
	if ref != nil {
		if ref.Starred {
			where += " AND isStarred = 1"
		} else {
			where += " AND folderId = ?"
			args = append(args, ref.ID)
		}
	}

	emails, err := s.query(ctx, where, args...)
	if err != nil {
		return nil, err
	}

	results := []models.Email{}
	for _, e := range emails {
		if MatchesQuery(&e, query) {
			results = append(results, e)
		}
	}
	SortByFolder(results, "")
	return results, nil
}

// EmailsByTag lists the user's emails carrying a tag, newest first
func (s *EmailStore) EmailsByTag(ctx context.Context, userID, tagID int64) ([]models.Email, error) {
	emails, err := s.query(ctx, "userId = ? AND id IN (SELECT emailId FROM email_tags WHERE tagId = ?)", userID, tagID)
	if err != nil {
		return nil, err
	}
	SortByFolder(emails, "")
	return emails, nil
}

type folderCountRow struct {
	FolderID int64 `db:"folderId"`
	Total    int   `db:"total"`
	Unread   int   `db:"unread"`
	Drafts   int   `db:"drafts"`
}

// Counts returns badge counts per folder key: unread for inbox and junk,
// drafts for drafts, all emails for custom folders, plus starred.
func (s *EmailStore) Counts(ctx context.Context, userID int64, custom []models.Folder) (map[string]int, error) {
	var rows []folderCountRow
	err := s.db.SelectContext(ctx, &rows, `SELECT folderId, COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN isRead = 0 THEN 1 ELSE 0 END), 0) AS unread,
		COALESCE(SUM(CASE WHEN isDraft = 1 THEN 1 ELSE 0 END), 0) AS drafts
		FROM emails WHERE userId = ? GROUP BY folderId`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting emails: %w", err)
	}

	byFolder := make(map[int64]folderCountRow, len(rows))
	for _, r := range rows {
		byFolder[r.FolderID] = r
	}

	counts := map[string]int{}
	for _, f := range models.SystemFolders(userID) {
		r := byFolder[f.ID]
		switch f.SystemType {
		case models.FolderInbox, models.FolderJunk:
			counts[f.SystemType] = r.Unread
		case models.FolderDrafts:
			counts[f.SystemType] = r.Drafts
		default:
			counts[f.SystemType] = 0
		}
	}
	for _, f := range custom {
		counts[strings.ToLower(f.Name)] = byFolder[f.ID].Total
	}

	var starred int
	if err := s.db.GetContext(ctx, &starred, "SELECT COUNT(*) FROM emails WHERE userId = ? AND isStarred = 1", userID); err != nil {
		return nil, fmt.Errorf("counting starred emails: %w", err)
	}
	counts[models.FolderStarred] = starred

	return counts, nil
}
