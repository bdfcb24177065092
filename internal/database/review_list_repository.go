package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/trane/pkg/models"
)

// ReviewListRepository stores the units the student has marked for review.
// The scheduler's ReviewListFilter restricts the search to these units.
type ReviewListRepository struct {
	db *sqlx.DB
}

// NewReviewListRepository creates a new repository instance.
func NewReviewListRepository(db *sqlx.DB) *ReviewListRepository {
	return &ReviewListRepository{db: db}
}

// Add inserts the unit into the review list. Adding a unit twice is a no-op.
func (r *ReviewListRepository) Add(ctx context.Context, unitID string) error {
	query := r.db.Rebind(`INSERT INTO review_list (unit_id) VALUES (?) ON CONFLICT DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, unitID); err != nil {
		return fmt.Errorf("%w: failed to add to review list: %v", models.ErrStorage, err)
	}
	return nil
}

// Remove deletes the unit from the review list.
func (r *ReviewListRepository) Remove(ctx context.Context, unitID string) error {
	query := r.db.Rebind(`DELETE FROM review_list WHERE unit_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, unitID); err != nil {
		return fmt.Errorf("%w: failed to remove from review list: %v", models.ErrStorage, err)
	}
	return nil
}

// All returns all units marked for review.
func (r *ReviewListRepository) All(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT unit_id FROM review_list ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list review list: %v", models.ErrStorage, err)
	}
	return ids, nil
}
