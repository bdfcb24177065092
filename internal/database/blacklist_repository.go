package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/trane/pkg/models"
)

// BlacklistRepository stores the units the student wants to skip. A
// blacklisted unit is treated as mastered during scheduling and never emits
// exercises.
type BlacklistRepository struct {
	db *sqlx.DB
}

// NewBlacklistRepository creates a new repository instance.
func NewBlacklistRepository(db *sqlx.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Contains reports whether the unit is blacklisted.
func (r *BlacklistRepository) Contains(ctx context.Context, unitID string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM blacklist WHERE unit_id = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, unitID); err != nil {
		return false, fmt.Errorf("%w: failed to check blacklist: %v", models.ErrStorage, err)
	}
	return count > 0, nil
}

// Add inserts the unit into the blacklist. Adding a unit twice is a no-op.
func (r *BlacklistRepository) Add(ctx context.Context, unitID string) error {
	query := r.db.Rebind(`INSERT INTO blacklist (unit_id) VALUES (?) ON CONFLICT DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, unitID); err != nil {
		return fmt.Errorf("%w: failed to add to blacklist: %v", models.ErrStorage, err)
	}
	return nil
}

// Remove deletes the unit from the blacklist.
func (r *BlacklistRepository) Remove(ctx context.Context, unitID string) error {
	query := r.db.Rebind(`DELETE FROM blacklist WHERE unit_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, unitID); err != nil {
		return fmt.Errorf("%w: failed to remove from blacklist: %v", models.ErrStorage, err)
	}
	return nil
}

// All returns all blacklisted unit IDs.
func (r *BlacklistRepository) All(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT unit_id FROM blacklist ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list blacklist: %v", models.ErrStorage, err)
	}
	return ids, nil
}
