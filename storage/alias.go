package storage

import (
	"context"
	"fmt"
	"strings"

	"webmail/models"

	"github.com/jmoiron/sqlx"
)

const aliasColumns = "id, userId, aliasName, forwardTo, isActive, description, createdAt, updatedAt"

// AliasStore manages forwarding aliases
type AliasStore struct {
	db *sqlx.DB
}

// NewAliasStore creates a new alias store
func NewAliasStore(db *sqlx.DB) *AliasStore {
	return &AliasStore{db: db}
}

// ListAliases returns the user's aliases ordered by name
func (s *AliasStore) ListAliases(ctx context.Context, userID int64) ([]models.Alias, error) {
	aliases := []models.Alias{}
	err := s.db.SelectContext(ctx, &aliases, "SELECT "+aliasColumns+" FROM aliases WHERE userId = ? ORDER BY aliasName", userID)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}
	return aliases, nil
}

// GetAlias retrieves an alias owned by the user
func (s *AliasStore) GetAlias(ctx context.Context, userID, id int64) (*models.Alias, error) {
	var alias models.Alias
	err := s.db.GetContext(ctx, &alias, "SELECT "+aliasColumns+" FROM aliases WHERE id = ? AND userId = ?", id, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &alias, nil
}

// CreateAlias creates an alias. Alias names are globally unique; a taken
// name yields ErrDuplicate.
func (s *AliasStore) CreateAlias(ctx context.Context, userID int64, in models.AliasInput) (*models.Alias, error) {
	active := true
	if in.IsActive != nil {
		active = bool(*in.IsActive)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO aliases (userId, aliasName, forwardTo, isActive, description) VALUES (?, ?, ?, ?, ?)",
		userID, strings.ToLower(strings.TrimSpace(in.AliasName)), strings.TrimSpace(in.ForwardTo), active, in.Description)
	if err != nil {
		return nil, fmt.Errorf("creating alias: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetAlias(ctx, userID, id)
}

// UpdateAlias applies a partial update
func (s *AliasStore) UpdateAlias(ctx context.Context, userID, id int64, upd models.AliasUpdate) (*models.Alias, error) {
	if _, err := s.GetAlias(ctx, userID, id); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []interface{}{}
	if upd.AliasName != nil && strings.TrimSpace(*upd.AliasName) != "" {
		sets = append(sets, "aliasName = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.AliasName)))
	}
	if upd.ForwardTo != nil && strings.TrimSpace(*upd.ForwardTo) != "" {
		sets = append(sets, "forwardTo = ?")
		args = append(args, strings.TrimSpace(*upd.ForwardTo))
	}
	if upd.IsActive != nil {
		sets = append(sets, "isActive = ?")
		args = append(args, bool(*upd.IsActive))
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if len(sets) > 0 {
		args = append(args, id, userID)
		_, err := s.db.ExecContext(ctx, "UPDATE aliases SET "+strings.Join(sets, ", ")+" WHERE id = ? AND userId = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("updating alias %d: %w", id, translate(err))
		}
	}
	return s.GetAlias(ctx, userID, id)
}

// DeleteAlias removes an alias
func (s *AliasStore) DeleteAlias(ctx context.Context, userID, id int64) error {
	return checkAffected(s.db.ExecContext(ctx, "DELETE FROM aliases WHERE id = ? AND userId = ?", id, userID))
}

// ToggleAlias flips isActive
func (s *AliasStore) ToggleAlias(ctx context.Context, userID, id int64) (*models.Alias, error) {
	if _, err := s.GetAlias(ctx, userID, id); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE aliases SET isActive = NOT isActive WHERE id = ? AND userId = ?", id, userID); err != nil {
		return nil, fmt.Errorf("toggling alias %d: %w", id, err)
	}
	return s.GetAlias(ctx, userID, id)
}
