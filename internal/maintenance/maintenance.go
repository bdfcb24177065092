// Package maintenance runs the periodic background jobs: trimming old reward
// events and decaying the scheduler's anti-repeat counters.
package maintenance

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultRewardRetentionDays is how long reward events are kept. Rewards
// this old carry almost no weight in the reward scorer, so dropping them
// only bounds the log's growth.
const DefaultRewardRetentionDays = 90

// RewardTrimmer deletes reward events older than the cutoff.
type RewardTrimmer interface {
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// FrequencyDecayer applies the wall-clock decay to anti-repeat counters.
type FrequencyDecayer interface {
	DecayFrequencies()
}

// Maintenance manages the scheduled background tasks for the application.
type Maintenance struct {
	scheduler     *gocron.Scheduler
	rewards       RewardTrimmer
	frequencies   FrequencyDecayer
	retentionDays int
	logger        *zap.SugaredLogger
}

// New creates a maintenance instance. The reward retention can be overridden
// with the TRANE_REWARD_RETENTION_DAYS environment variable.
func New(rewards RewardTrimmer, frequencies FrequencyDecayer, logger *zap.SugaredLogger) *Maintenance {
	retention := DefaultRewardRetentionDays
	if value := os.Getenv("TRANE_REWARD_RETENTION_DAYS"); value != "" {
		if days, err := strconv.Atoi(value); err == nil && days > 0 {
			retention = days
		}
	}
	return &Maintenance{
		scheduler:     gocron.NewScheduler(time.UTC),
		rewards:       rewards,
		frequencies:   frequencies,
		retentionDays: retention,
		logger:        logger,
	}
}

// Start begins running all scheduled tasks in a non-blocking manner.
func (m *Maintenance) Start() {
	m.scheduler.Every(1).Day().Do(m.trimRewards)
	m.scheduler.Every(15).Minutes().Do(m.decayFrequencies)
	m.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks.
func (m *Maintenance) Stop() {
	m.scheduler.Stop()
}

// trimRewards removes reward events older than the retention window.
func (m *Maintenance) trimRewards() {
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays).Unix()
	removed, err := m.rewards.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		m.logger.Errorw("failed to trim old rewards", "error", err)
		return
	}
	if removed > 0 {
		m.logger.Infow("trimmed old rewards", "removed", removed, "retention_days", m.retentionDays)
	}
}

// decayFrequencies folds the elapsed time into the anti-repeat counters.
func (m *Maintenance) decayFrequencies() {
	m.frequencies.DecayFrequencies()
}
