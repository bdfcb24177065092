// Package scoring computes exercise scores from trial histories and reward
// adjustments from reward histories. Both scorers are pure functions of their
// inputs and the clock.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/example/trane/pkg/models"
)

const (
	// MinStability is the smallest stability in days. It prevents division
	// by zero and keeps exercises with very short histories reviewable.
	MinStability = 0.1

	// MaxStability caps the stability estimate at one hundred years.
	MaxStability = 36500.0

	// MinDifficulty and MaxDifficulty bound the difficulty estimate.
	MinDifficulty = 1.0
	MaxDifficulty = 5.0

	// declarativeDecay and proceduralDecay are the absolute values of the
	// power-law decay exponent per exercise type. Procedural skills decay
	// more slowly than memorized material, so their exponent is smaller.
	declarativeDecay = 0.55
	proceduralDecay  = 0.45

	// baseGrowth scales the multiplicative stability increase on a
	// successful trial.
	baseGrowth = 3.0

	// spacingExp controls how much harder reviews (lower retrievability)
	// grow stability compared to reviews done while the material is fresh.
	spacingExp = 2.0

	// stabilityDampExp saturates stability growth: the higher the current
	// stability, the smaller the relative gain.
	stabilityDampExp = 0.1

	// Lapse parameters. The drop grows with difficulty and with the
	// retrievability at the time of the lapse, since failing material that
	// should have been recallable signals a weaker memory trace.
	lapseBase                 = 0.3
	lapseDifficultyFactor     = 0.06
	lapseRetrievabilityFactor = 0.3
	maxLapseDrop              = 0.95

	// Difficulty update parameters: a grade-based delta followed by mean
	// reversion toward the target.
	gradeDelta       = 0.4
	meanReversion    = 0.05
	difficultyTarget = 3.0

	// difficultyAnchor maps the difficulty to the score multiplier
	// (5.5 - d) / 4.5, so material the student consistently fails scores
	// near the bottom of the range even right after a review.
	difficultyAnchor = 0.5

	// Recency multiplier parameters. Histories that ended long ago relative
	// to their stability are discounted so that recent strong performance
	// outranks old strong performance.
	recencyFactor = 0.1
	recencyFloor  = 0.7

	// successThreshold separates successful trials from lapses.
	successThreshold = 3.0

	secondsPerDay = 86400.0
)

// PowerLawScorer scores an exercise by replaying its trial history through a
// power-law forgetting curve with chained stability. Each trial updates a
// running stability and difficulty estimate; the final score projects the
// retrievability at the current time and combines it with the difficulty and
// the recency of the history.
type PowerLawScorer struct {
	// now is the clock used to compute elapsed time. Tests override it.
	now func() time.Time
}

// NewPowerLawScorer creates a scorer using the wall clock.
func NewPowerLawScorer() *PowerLawScorer {
	return &PowerLawScorer{now: time.Now}
}

// NewPowerLawScorerAt creates a scorer with a fixed clock.
func NewPowerLawScorerAt(now func() time.Time) *PowerLawScorer {
	return &PowerLawScorer{now: now}
}

// decayFor returns the absolute decay exponent for the exercise type.
func decayFor(exerciseType models.ExerciseType) float64 {
	if exerciseType == models.Declarative {
		return declarativeDecay
	}
	return proceduralDecay
}

// forgettingFactor returns the curve factor that makes R(t=S) equal 0.9 for
// the given decay exponent.
func forgettingFactor(decay float64) float64 {
	return math.Pow(0.9, -1.0/decay) - 1.0
}

// retrievability computes R(t) = (1 + factor * t/S)^(-decay).
func retrievability(elapsedDays, stability, factor, decay float64) float64 {
	return math.Pow(1.0+factor*elapsedDays/stability, -decay)
}

// initialDifficulty maps the first trial's score to a difficulty. Lower
// scores mean harder material.
func initialDifficulty(score float64) float64 {
	return clampDifficulty(6.0 - score)
}

// initialStability maps the first trial's score to a stability in days.
func initialStability(score float64) float64 {
	return clampStability(0.2 * math.Exp(0.6*score))
}

func clampStability(s float64) float64 {
	return math.Min(math.Max(s, MinStability), MaxStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

// clampDays bounds an elapsed interval to [0, MaxStability] days.
func clampDays(days float64) float64 {
	return math.Min(math.Max(days, 0.0), MaxStability)
}

// Score returns a score in [0, 5] for an exercise of the given type based on
// its previous trials, which must be sorted in reverse-chronological order
// (most recent first). An empty history scores exactly 0.
func (s *PowerLawScorer) Score(exerciseType models.ExerciseType, trials []models.Trial) (float32, error) {
	if len(trials) == 0 {
		return 0.0, nil
	}
	for i := 1; i < len(trials); i++ {
		if trials[i-1].Timestamp < trials[i].Timestamp {
			return 0.0, fmt.Errorf("%w: trials are not sorted in descending order by timestamp",
				models.ErrInternal)
		}
	}

	decay := decayFor(exerciseType)
	factor := forgettingFactor(decay)

	// Replay the history in chronological order, chaining the stability and
	// difficulty estimates from trial to trial.
	first := trials[len(trials)-1]
	difficulty := initialDifficulty(float64(first.Score))
	stability := initialStability(float64(first.Score))
	prevTimestamp := first.Timestamp

	for i := len(trials) - 2; i >= 0; i-- {
		trial := trials[i]
		elapsed := clampDays(float64(trial.Timestamp-prevTimestamp) / secondsPerDay)
		r := retrievability(elapsed, stability, factor, decay)

		if float64(trial.Score) >= successThreshold {
			spacingGain := math.Expm1(spacingExp * (1.0 - r))
			difficultyDamp := (11.0 - 2.0*difficulty) / 9.0
			growth := baseGrowth * spacingGain * difficultyDamp * math.Pow(stability, -stabilityDampExp)
			next := stability * (1.0 + growth)
			if isFinite(next) {
				stability = clampStability(next)
			}
		} else {
			drop := lapseBase + lapseDifficultyFactor*difficulty + lapseRetrievabilityFactor*r
			drop = math.Min(math.Max(drop, 0.0), maxLapseDrop)
			next := stability * (1.0 - drop)
			if isFinite(next) {
				// A lapse never increases stability.
				stability = clampStability(math.Min(next, stability))
			}
		}

		difficulty -= gradeDelta * (float64(trial.Score) - difficultyTarget)
		difficulty += meanReversion * (difficultyTarget - difficulty)
		difficulty = clampDifficulty(difficulty)
		prevTimestamp = trial.Timestamp
	}

	// Project the retrievability at the current time and fold in the
	// difficulty and recency of the history.
	now := s.now().Unix()
	sinceLast := clampDays(float64(now-trials[0].Timestamp) / secondsPerDay)
	projected := retrievability(sinceLast, stability, factor, decay)
	recency := 1.0 - recencyFactor*math.Log1p(sinceLast/(stability+1.0))
	recency = math.Min(math.Max(recency, recencyFloor), 1.0)
	level := (MaxDifficulty + difficultyAnchor - difficulty) /
		(MaxDifficulty - MinDifficulty + difficultyAnchor)

	score := 5.0 * projected * recency * level
	if !isFinite(score) {
		return 0.0, fmt.Errorf("%w: exercise score is not finite", models.ErrInternal)
	}
	return float32(math.Min(math.Max(score, 0.0), 5.0)), nil
}

// isFinite reports whether the value is neither NaN nor infinite.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
