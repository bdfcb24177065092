package models

// MasteryWindow pairs a contiguous range of scores with the percentage of the
// final batch that should be filled with exercises whose scores fall in the
// range. The range is half-open, [Low, High), except that a window ending at
// 5.0 also contains the maximum score.
type MasteryWindow struct {
	// Percentage of the batch taken from this window. All windows together
	// must sum to 1.0.
	Percentage float32 `json:"percentage" yaml:"percentage"`

	// Low is the inclusive lower bound of the window.
	Low float32 `json:"low" yaml:"low"`

	// High is the exclusive upper bound of the window.
	High float32 `json:"high" yaml:"high"`
}

// InWindow reports whether the given score falls within the window.
func (w MasteryWindow) InWindow(score float32) bool {
	// Scores above 5.0 are tolerated because float comparison is not exact.
	if w.High >= 5.0 && score >= 5.0 {
		return true
	}
	return w.Low <= score && score < w.High
}
