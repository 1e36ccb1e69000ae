package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webmail/models"

	"github.com/jmoiron/sqlx"
)

const tagColumns = "id, userId, name, color, createdAt, updatedAt"

// TagStore manages tags and their email associations
type TagStore struct {
	db *sqlx.DB
}

// NewTagStore creates a new tag store
func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

// ListTags returns the user's tags ordered by name
func (s *TagStore) ListTags(ctx context.Context, userID int64) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := s.db.SelectContext(ctx, &tags, "SELECT "+tagColumns+" FROM tags WHERE userId = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// GetTag retrieves a tag owned by the user
func (s *TagStore) GetTag(ctx context.Context, userID, id int64) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.GetContext(ctx, &tag, "SELECT "+tagColumns+" FROM tags WHERE id = ? AND userId = ?", id, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

// CreateTag creates a tag. A name already used by the user yields ErrDuplicate.
func (s *TagStore) CreateTag(ctx context.Context, userID int64, in models.TagInput) (*models.Tag, error) {
	color := in.Color
	if color == "" {
		color = models.DefaultTagColor
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO tags (userId, name, color) VALUES (?, ?, ?)",
		userID, strings.TrimSpace(in.Name), color)
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetTag(ctx, userID, id)
}

// UpdateTag renames or recolors a tag
func (s *TagStore) UpdateTag(ctx context.Context, userID, id int64, in models.TagInput) (*models.Tag, error) {
	if _, err := s.GetTag(ctx, userID, id); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []interface{}{}
	if name := strings.TrimSpace(in.Name); name != "" {
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if in.Color != "" {
		sets = append(sets, "color = ?")
		args = append(args, in.Color)
	}
	if len(sets) > 0 {
		args = append(args, id, userID)
		_, err := s.db.ExecContext(ctx, "UPDATE tags SET "+strings.Join(sets, ", ")+" WHERE id = ? AND userId = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("updating tag %d: %w", id, translate(err))
		}
	}
	return s.GetTag(ctx, userID, id)
}

// DeleteTag removes the tag and its email associations
func (s *TagStore) DeleteTag(ctx context.Context, userID, id int64) error {
	if _, err := s.GetTag(ctx, userID, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM email_tags WHERE tagId = ?", id); err != nil {
		return fmt.Errorf("removing email tags: %w", err)
	}
	if err := checkAffected(tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ? AND userId = ?", id, userID)); err != nil {
		return err
	}
	return tx.Commit()
}

// AddEmailTag links a tag to an email. It reports false when the link
// already existed.
func (s *TagStore) AddEmailTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	_, err := s.db.ExecContext(ctx, "INSERT INTO email_tags (emailId, tagId) VALUES (?, ?)", emailID, tagID)
	if err != nil {
		if err = translate(err); errors.Is(err, ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("adding email tag: %w", err)
	}
	return true, nil
}

// RemoveEmailTag unlinks a tag from an email
func (s *TagStore) RemoveEmailTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	err := checkAffected(s.db.ExecContext(ctx, "DELETE FROM email_tags WHERE emailId = ? AND tagId = ?", emailID, tagID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("removing email tag: %w", err)
	}
	return true, nil
}

// TagsForEmail lists the tags attached to an email
func (s *TagStore) TagsForEmail(ctx context.Context, emailID int64) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := s.db.SelectContext(ctx, &tags, `SELECT t.id, t.userId, t.name, t.color, t.createdAt, t.updatedAt
		FROM tags t JOIN email_tags et ON et.tagId = t.id
		WHERE et.emailId = ? ORDER BY t.name`, emailID)
	if err != nil {
		return nil, fmt.Errorf("listing email tags: %w", err)
	}
	return tags, nil
}

type emailTagRow struct {
	EmailID int64  `db:"emailId"`
	TagID   int64  `db:"tagId"`
	Name    string `db:"name"`
}

// tagsByEmail loads tag ids and names for a batch of emails
func tagsByEmail(ctx context.Context, db *sqlx.DB, emailIDs []int64) (map[int64][]emailTagRow, error) {
	out := map[int64][]emailTagRow{}
	if len(emailIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT et.emailId, et.tagId, t.name
		FROM email_tags et JOIN tags t ON t.id = et.tagId
		WHERE et.emailId IN (?) ORDER BY t.name`, emailIDs)
	if err != nil {
		return nil, err
	}

	var rows []emailTagRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("loading email tags: %w", err)
	}
	for _, r := range rows {
		out[r.EmailID] = append(out[r.EmailID], r)
	}
	return out, nil
}
