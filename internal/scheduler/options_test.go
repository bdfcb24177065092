package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trane/pkg/models"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Verify())
}

func TestVerifyRejectsInvalidOptions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero batch size", func(o *Options) { o.BatchSize = 0 }},
		{"percentages do not sum to one", func(o *Options) { o.NewWindow.Percentage = 0.5 }},
		{"new window does not start at zero", func(o *Options) { o.NewWindow.Low = 0.5 }},
		{"mastered window does not end at five", func(o *Options) { o.MasteredWindow.High = 4.9 }},
		{"gap between windows", func(o *Options) { o.TargetWindow.Low = 2.0 }},
		{"empty window range", func(o *Options) {
			o.CurrentWindow.Low = 3.5
			o.CurrentWindow.High = 3.5
			o.TargetWindow.High = 3.5
		}},
		{"negative percentage", func(o *Options) {
			o.NewWindow.Percentage = -0.1
			o.TargetWindow.Percentage = 0.6
		}},
		{"missing passing score", func(o *Options) { o.PassingScore = nil }},
		{"passing score out of range", func(o *Options) { o.PassingScore = ConstantScore(5.5) }},
		{"negative step size", func(o *Options) {
			o.PassingScore = IncreasingScore{StartingScore: 3.5, StepSize: -0.1, MaxSteps: 10}
		}},
		{"superseding score out of range", func(o *Options) { o.SupersedingScore = 6.0 }},
		{"zero num trials", func(o *Options) { o.NumTrials = 0 }},
		{"zero num rewards", func(o *Options) { o.NumRewards = 0 }},
		{"empty fractional range", func(o *Options) {
			o.FractionalPassing = true
			o.FractionalMinScore = 4.5
			o.FractionalMaxScore = 4.5
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(&opts)
			assert.ErrorIs(t, opts.Verify(), models.ErrInvalidConfig)
		})
	}
}

func TestConstantScore(t *testing.T) {
	score := ConstantScore(3.75)
	assert.Equal(t, float32(3.75), score.ComputeScore(0))
	assert.Equal(t, float32(3.75), score.ComputeScore(100))
}

func TestIncreasingScore(t *testing.T) {
	score := IncreasingScore{StartingScore: 3.5, StepSize: 0.01, MaxSteps: 25}
	assert.InDelta(t, 3.50, score.ComputeScore(0), 1e-6)
	assert.InDelta(t, 3.51, score.ComputeScore(1), 1e-6)
	assert.InDelta(t, 3.55, score.ComputeScore(5), 1e-6)
	assert.InDelta(t, 3.75, score.ComputeScore(25), 1e-6)
	// The score settles once the maximum number of steps is reached.
	assert.InDelta(t, 3.75, score.ComputeScore(50), 1e-6)
}

func TestExerciseFraction(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, float32(0.0), opts.exerciseFraction(3.0))
	assert.Equal(t, float32(0.0), opts.exerciseFraction(3.5))
	assert.InDelta(t, 0.5, opts.exerciseFraction(4.0), 1e-6)
	assert.Equal(t, float32(1.0), opts.exerciseFraction(4.5))
	assert.Equal(t, float32(1.0), opts.exerciseFraction(5.0))
}
