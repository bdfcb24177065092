package scheduler

import (
	"math"
	"sync"
	"time"

	"github.com/example/trane/pkg/models"
)

const (
	// frequencyHalfLife is how long it takes for an anti-repeat count to
	// halve. Exercises emitted in recent batches are down-weighted during
	// sampling; the penalty fades as time passes.
	frequencyHalfLife = 30 * time.Minute

	// frequencyPruneBelow drops counts too small to matter.
	frequencyPruneBelow = 0.01
)

// frequencyTracker counts how often each exercise has been emitted recently.
// Counts decay over wall-clock time. The tracker is in-process only; it is
// deliberately not persisted across restarts.
type frequencyTracker struct {
	mu        sync.Mutex
	counts    map[models.UnitID]float64
	lastDecay time.Time
	now       func() time.Time
}

func newFrequencyTracker(now func() time.Time) *frequencyTracker {
	return &frequencyTracker{
		counts:    make(map[models.UnitID]float64),
		lastDecay: now(),
		now:       now,
	}
}

// applyDecay folds the elapsed time into the counts. Callers must hold mu.
func (t *frequencyTracker) applyDecay() {
	now := t.now()
	elapsed := now.Sub(t.lastDecay)
	if elapsed <= 0 {
		return
	}
	factor := math.Exp2(-elapsed.Hours() / frequencyHalfLife.Hours())
	for h, count := range t.counts {
		count *= factor
		if count < frequencyPruneBelow {
			delete(t.counts, h)
			continue
		}
		t.counts[h] = count
	}
	t.lastDecay = now
}

// increment bumps the count for an emitted exercise.
func (t *frequencyTracker) increment(h models.UnitID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDecay()
	t.counts[h]++
}

// get returns the decayed count for the exercise.
func (t *frequencyTracker) get(h models.UnitID) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDecay()
	return t.counts[h]
}

// decayTick forces a decay pass. The maintenance jobs call this periodically
// so that idle trackers do not hold on to stale counts.
func (t *frequencyTracker) decayTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDecay()
}
