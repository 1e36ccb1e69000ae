package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"webmail/models"

	"github.com/jmoiron/sqlx"
)

const (
	defaultFolderColor = "#6b7280"
	defaultFolderIcon  = "folder"

	folderColumns = "id, userId, name, type, systemType, icon, color, createdAt, updatedAt"
)

// FolderStore manages custom folders. System folders are static and never stored.
type FolderStore struct {
	db *sqlx.DB
}

// NewFolderStore creates a new folder store
func NewFolderStore(db *sqlx.DB) *FolderStore {
	return &FolderStore{db: db}
}

// ListFolders returns the user's custom folders ordered by name
func (s *FolderStore) ListFolders(ctx context.Context, userID int64) ([]models.Folder, error) {
	folders := []models.Folder{}
	err := s.db.SelectContext(ctx, &folders,
		"SELECT "+folderColumns+" FROM folders WHERE userId = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return folders, nil
}

// GetFolder returns a folder owned by the user. System ids resolve to the
// static system folders.
func (s *FolderStore) GetFolder(ctx context.Context, userID, id int64) (*models.Folder, error) {
	if key, ok := models.SystemFolderKey(id); ok {
		for _, f := range models.SystemFolders(userID) {
			if f.SystemType == key {
				return &f, nil
			}
		}
	}

	var folder models.Folder
	err := s.db.GetContext(ctx, &folder,
		"SELECT "+folderColumns+" FROM folders WHERE id = ? AND userId = ?", id, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &folder, nil
}

// CreateFolder creates a custom folder
func (s *FolderStore) CreateFolder(ctx context.Context, userID int64, in models.FolderInput) (*models.Folder, error) {
	color := in.Color
	if color == "" {
		color = defaultFolderColor
	}
	icon := in.Icon
	if icon == "" {
		icon = defaultFolderIcon
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO folders (userId, name, type, icon, color) VALUES (?, ?, ?, ?, ?)",
		userID, strings.TrimSpace(in.Name), models.FolderTypeCustom, icon, color)
	if err != nil {
		return nil, fmt.Errorf("creating folder: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetFolder(ctx, userID, id)
}

// UpdateFolder renames or restyles a custom folder
func (s *FolderStore) UpdateFolder(ctx context.Context, userID, id int64, in models.FolderInput) (*models.Folder, error) {
	if models.IsSystemFolderID(id) {
		return nil, ErrNotFound
	}
	if _, err := s.GetFolder(ctx, userID, id); err != nil {
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
	if in.Icon != "" {
		sets = append(sets, "icon = ?")
		args = append(args, in.Icon)
	}
	if len(sets) > 0 {
		args = append(args, id, userID)
		_, err := s.db.ExecContext(ctx,
			"UPDATE folders SET "+strings.Join(sets, ", ")+" WHERE id = ? AND userId = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("updating folder %d: %w", id, translate(err))
		}
	}
	return s.GetFolder(ctx, userID, id)
}

// DeleteFolder moves the folder's emails to the inbox and removes it
func (s *FolderStore) DeleteFolder(ctx context.Context, userID, id int64) error {
	if models.IsSystemFolderID(id) {
		return ErrNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE emails SET folderId = ? WHERE folderId = ? AND userId = ?",
		models.InboxFolderID, id, userID); err != nil {
		return fmt.Errorf("moving emails out of folder %d: %w", id, err)
	}
	if err := checkAffected(tx.ExecContext(ctx,
		"DELETE FROM folders WHERE id = ? AND userId = ?", id, userID)); err != nil {
		return err
	}
	return tx.Commit()
}

// FolderRef is a resolved folder key
type FolderRef struct {
	ID      int64
	Key     string
	Starred bool
}

// ResolveFolder maps a folder key (system type, "starred" or custom folder
// name, case-insensitive) to a folder. Unknown keys return ErrNotFound.
func (s *FolderStore) ResolveFolder(ctx context.Context, userID int64, key string) (*FolderRef, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == models.FolderStarred {
		return &FolderRef{Key: key, Starred: true}, nil
	}
	if id, ok := models.SystemFolderID(key); ok {
		return &FolderRef{ID: id, Key: key}, nil
	}

	var id int64
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM folders WHERE userId = ? AND LOWER(name) = ? LIMIT 1", userID, key)
	if err != nil {
		return nil, translate(err)
	}
	return &FolderRef{ID: id, Key: key}, nil
}

// ResolveFolderID resolves a move target given either a numeric id or a key
func (s *FolderStore) ResolveFolderID(ctx context.Context, userID int64, target string) (*FolderRef, error) {
	target = strings.TrimSpace(target)
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		folder, err := s.GetFolder(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return &FolderRef{ID: folder.ID, Key: strings.ToLower(folder.Name)}, nil
	}
	return s.ResolveFolder(ctx, userID, target)
}
