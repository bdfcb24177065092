package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/trane/pkg/models"
)

// TrialRepository is the append-only log of exercise trials.
type TrialRepository struct {
	db *sqlx.DB
}

// NewTrialRepository creates a new repository instance.
func NewTrialRepository(db *sqlx.DB) *TrialRepository {
	return &TrialRepository{db: db}
}

// Append inserts a new trial. Trials are never updated or deleted.
func (r *TrialRepository) Append(ctx context.Context, trial *models.Trial) error {
	query := r.db.Rebind(`
        INSERT INTO trials (exercise_id, score, timestamp)
        VALUES (?, ?, ?)
    `)
	result, err := r.db.ExecContext(ctx, query, trial.ExerciseID, trial.Score, trial.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: failed to append trial: %v", models.ErrStorage, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		trial.ID = id
	}
	return nil
}

// Recent returns the most recent n trials for the exercise in
// reverse-chronological order. Trials with equal timestamps are returned in
// reverse insertion order so the newest comes first.
func (r *TrialRepository) Recent(ctx context.Context, exerciseID string, n int) ([]models.Trial, error) {
	query := r.db.Rebind(`
        SELECT id, exercise_id, score, timestamp
        FROM trials
        WHERE exercise_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `)
	var trials []models.Trial
	err := r.db.SelectContext(ctx, &trials, query, exerciseID, n)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get trials: %v", models.ErrStorage, err)
	}
	return trials, nil
}

// HasTrials reports whether the exercise has at least one recorded trial.
func (r *TrialRepository) HasTrials(ctx context.Context, exerciseID string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM trials WHERE exercise_id = ?`)
	var count int
	err := r.db.GetContext(ctx, &count, query, exerciseID)
	if err != nil {
		return false, fmt.Errorf("%w: failed to count trials: %v", models.ErrStorage, err)
	}
	return count > 0, nil
}
