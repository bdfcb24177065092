package scoring

import (
	"math"
	"time"

	"github.com/example/trane/pkg/models"
)

const (
	// MaxAbsReward bounds the combined reward adjustment.
	MaxAbsReward = 1.0

	// rewardHalfLifeDays is the half-life of the exponential time decay
	// applied to reward events. Recent rewards outweigh older ones.
	rewardHalfLifeDays = 7.0

	// minRewardWeight keeps every event minimally influential so the
	// weighted average stays defined.
	minRewardWeight = 0.01
)

// WeightedRewardScorer combines the recent reward events of a unit into a
// single signed adjustment. Each event's weight is the product of its graph
// weight (assigned by the propagator based on distance from the origin
// exercise) and an exponential time decay.
type WeightedRewardScorer struct {
	now func() time.Time
}

// NewWeightedRewardScorer creates a scorer using the wall clock.
func NewWeightedRewardScorer() *WeightedRewardScorer {
	return &WeightedRewardScorer{now: time.Now}
}

// NewWeightedRewardScorerAt creates a scorer with a fixed clock.
func NewWeightedRewardScorerAt(now func() time.Time) *WeightedRewardScorer {
	return &WeightedRewardScorer{now: now}
}

// ScoreRewards returns the combined adjustment in [-MaxAbsReward,
// +MaxAbsReward] for the given reward events. An empty history returns 0.
func (s *WeightedRewardScorer) ScoreRewards(rewards []models.UnitReward) (float32, error) {
	if len(rewards) == 0 {
		return 0.0, nil
	}

	now := s.now().Unix()
	var crossProduct, weightSum float64
	for _, reward := range rewards {
		ageDays := math.Max(float64(now-reward.Timestamp)/secondsPerDay, 0.0)
		timeWeight := math.Exp(-math.Ln2 * ageDays / rewardHalfLifeDays)
		weight := math.Max(float64(reward.Weight)*timeWeight, minRewardWeight)
		crossProduct += float64(reward.Reward) * weight
		weightSum += weight
	}

	combined := crossProduct / weightSum
	if !isFinite(combined) {
		return 0.0, nil
	}
	return float32(math.Min(math.Max(combined, -MaxAbsReward), MaxAbsReward)), nil
}
