package scheduler

import (
	"fmt"
	"math"

	"github.com/example/trane/pkg/models"
)

// PassingScore computes the minimum score a unit needs before its dependents
// are unlocked. The depth is the number of hops the search took to reach the
// unit.
type PassingScore interface {
	ComputeScore(depth int) float32
	Verify() error
}

// ConstantScore is a fixed passing score independent of depth.
type ConstantScore float32

// ComputeScore returns the constant, capped at 5.0.
func (c ConstantScore) ComputeScore(depth int) float32 {
	return float32(math.Min(float64(c), 5.0))
}

// Verify checks the score is in [0, 5].
func (c ConstantScore) Verify() error {
	if c < 0.0 || c > 5.0 {
		return fmt.Errorf("%w: invalid passing score %f", models.ErrInvalidConfig, float32(c))
	}
	return nil
}

// IncreasingScore starts at a lower score and raises the bar with depth. This
// keeps the bar lower near the frontier, so students make faster progress at
// the start, and raises it deeper into already-practiced territory.
type IncreasingScore struct {
	// StartingScore is the passing score at depth zero.
	StartingScore float32

	// StepSize is how much the passing score grows per hop.
	StepSize float32

	// MaxSteps caps the number of steps that increase the score.
	MaxSteps int
}

// ComputeScore returns the passing score at the given depth, capped at 5.0.
func (s IncreasingScore) ComputeScore(depth int) float32 {
	steps := depth
	if steps > s.MaxSteps {
		steps = s.MaxSteps
	}
	score := s.StartingScore + s.StepSize*float32(steps)
	return float32(math.Min(float64(score), 5.0))
}

// Verify checks the schedule parameters.
func (s IncreasingScore) Verify() error {
	if s.StartingScore < 0.0 || s.StartingScore > 5.0 {
		return fmt.Errorf("%w: invalid starting score %f", models.ErrInvalidConfig, s.StartingScore)
	}
	if s.StepSize < 0.0 {
		return fmt.Errorf("%w: invalid step size %f", models.ErrInvalidConfig, s.StepSize)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("%w: invalid max steps %d", models.ErrInvalidConfig, s.MaxSteps)
	}
	return nil
}

// Options control how the scheduler selects exercises.
type Options struct {
	// BatchSize is the maximum number of exercises per batch.
	BatchSize int

	// The five mastery windows. Their percentages must sum to 1.0 and their
	// ranges must tile [0, 5] without gaps or overlaps.
	NewWindow      models.MasteryWindow
	TargetWindow   models.MasteryWindow
	CurrentWindow  models.MasteryWindow
	EasyWindow     models.MasteryWindow
	MasteredWindow models.MasteryWindow

	// PassingScore gates the traversal into a unit's dependents.
	PassingScore PassingScore

	// SupersedingScore is the minimum score a superseding unit needs before
	// the units it supersedes are treated as mastered.
	SupersedingScore float32

	// NumTrials is how many trials are read to compute an exercise score.
	NumTrials int

	// NumRewards is how many reward events are read to compute a unit's
	// reward adjustment.
	NumRewards int

	// FractionalPassing enables the fractional selection of exercises from
	// lessons that are close to mastered, instead of always selecting from
	// all of them. Dependency traversal still uses the binary threshold.
	FractionalPassing bool

	// FractionalMinScore is the lesson score at which the fraction is 0.
	FractionalMinScore float32

	// FractionalMaxScore is the lesson score at which the fraction is 1.
	FractionalMaxScore float32

	// RewardDepth bounds reward propagation.
	RewardDepth int

	// AggregateRewardPaths makes reward propagation sum the contributions of
	// independent paths instead of keeping only the first visit.
	AggregateRewardPaths bool
}

// DefaultOptions returns the default scheduler options.
func DefaultOptions() Options {
	return Options{
		BatchSize:            50,
		NewWindow:            models.MasteryWindow{Percentage: 0.3, Low: 0.0, High: 1.5},
		TargetWindow:         models.MasteryWindow{Percentage: 0.2, Low: 1.5, High: 2.5},
		CurrentWindow:        models.MasteryWindow{Percentage: 0.2, Low: 2.5, High: 3.5},
		EasyWindow:           models.MasteryWindow{Percentage: 0.2, Low: 3.5, High: 4.5},
		MasteredWindow:       models.MasteryWindow{Percentage: 0.1, Low: 4.5, High: 5.0},
		PassingScore:         ConstantScore(3.75),
		SupersedingScore:     3.75,
		NumTrials:            20,
		NumRewards:           20,
		FractionalPassing:    false,
		FractionalMinScore:   3.5,
		FractionalMaxScore:   4.5,
		RewardDepth:          5,
		AggregateRewardPaths: false,
	}
}

// floatEquals compares floats with the tolerance used for option validation.
func floatEquals(f1, f2 float32) bool {
	return math.Abs(float64(f1-f2)) < 1e-3
}

// Verify checks the options. Invalid options are rejected at scheduler
// construction with ErrInvalidConfig.
func (o *Options) Verify() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be greater than 0", models.ErrInvalidConfig)
	}

	totalPercentage := o.NewWindow.Percentage + o.TargetWindow.Percentage +
		o.CurrentWindow.Percentage + o.EasyWindow.Percentage + o.MasteredWindow.Percentage
	if !floatEquals(totalPercentage, 1.0) {
		return fmt.Errorf("%w: mastery window percentages must sum to 1.0, got %f",
			models.ErrInvalidConfig, totalPercentage)
	}

	if !floatEquals(o.NewWindow.Low, 0.0) {
		return fmt.Errorf("%w: the new window must start at 0.0", models.ErrInvalidConfig)
	}
	if !floatEquals(o.MasteredWindow.High, 5.0) {
		return fmt.Errorf("%w: the mastered window must end at 5.0", models.ErrInvalidConfig)
	}
	windows := []models.MasteryWindow{
		o.NewWindow, o.TargetWindow, o.CurrentWindow, o.EasyWindow, o.MasteredWindow,
	}
	for i := 1; i < len(windows); i++ {
		if !floatEquals(windows[i-1].High, windows[i].Low) {
			return fmt.Errorf("%w: mastery windows must tile [0, 5] without gaps",
				models.ErrInvalidConfig)
		}
	}
	for _, w := range windows {
		if w.Low >= w.High {
			return fmt.Errorf("%w: mastery window range [%f, %f) is empty",
				models.ErrInvalidConfig, w.Low, w.High)
		}
		if w.Percentage < 0.0 || w.Percentage > 1.0 {
			return fmt.Errorf("%w: mastery window percentage %f is out of range",
				models.ErrInvalidConfig, w.Percentage)
		}
	}

	if o.PassingScore == nil {
		return fmt.Errorf("%w: passing score is not set", models.ErrInvalidConfig)
	}
	if err := o.PassingScore.Verify(); err != nil {
		return err
	}

	if o.SupersedingScore < 0.0 || o.SupersedingScore > 5.0 {
		return fmt.Errorf("%w: invalid superseding score %f", models.ErrInvalidConfig, o.SupersedingScore)
	}
	if o.NumTrials < 1 {
		return fmt.Errorf("%w: num_trials must be at least 1", models.ErrInvalidConfig)
	}
	if o.NumRewards < 1 {
		return fmt.Errorf("%w: num_rewards must be at least 1", models.ErrInvalidConfig)
	}
	if o.FractionalPassing && o.FractionalMinScore >= o.FractionalMaxScore {
		return fmt.Errorf("%w: fractional passing range [%f, %f] is empty",
			models.ErrInvalidConfig, o.FractionalMinScore, o.FractionalMaxScore)
	}
	return nil
}

// exerciseFraction returns the fraction in [0, 1] for a lesson score under
// the fractional passing variant.
func (o *Options) exerciseFraction(score float32) float32 {
	fraction := (score - o.FractionalMinScore) / (o.FractionalMaxScore - o.FractionalMinScore)
	if fraction < 0.0 {
		return 0.0
	}
	if fraction > 1.0 {
		return 1.0
	}
	return fraction
}
