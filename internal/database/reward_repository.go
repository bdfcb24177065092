package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/trane/pkg/models"
)

// RewardRepository is the append-only log of unit rewards.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository creates a new repository instance.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Append inserts a new reward event.
func (r *RewardRepository) Append(ctx context.Context, reward *models.UnitReward) error {
	query := r.db.Rebind(`
        INSERT INTO rewards (unit_id, reward, weight, timestamp)
        VALUES (?, ?, ?, ?)
    `)
	result, err := r.db.ExecContext(ctx, query,
		reward.UnitID, reward.Reward, reward.Weight, reward.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: failed to append reward: %v", models.ErrStorage, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		reward.ID = id
	}
	return nil
}

// Recent returns the most recent n rewards for the unit in
// reverse-chronological order.
func (r *RewardRepository) Recent(ctx context.Context, unitID string, n int) ([]models.UnitReward, error) {
	query := r.db.Rebind(`
        SELECT id, unit_id, reward, weight, timestamp
        FROM rewards
        WHERE unit_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `)
	var rewards []models.UnitReward
	err := r.db.SelectContext(ctx, &rewards, query, unitID, n)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get rewards: %v", models.ErrStorage, err)
	}
	return rewards, nil
}

// DeleteOlderThan removes rewards with a timestamp before the cutoff and
// returns how many were removed. Rewards accumulate without bound otherwise;
// the maintenance jobs call this on a schedule.
func (r *RewardRepository) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	query := r.db.Rebind(`DELETE FROM rewards WHERE timestamp < ?`)
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete old rewards: %v", models.ErrStorage, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}
