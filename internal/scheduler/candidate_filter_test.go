package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trane/pkg/models"
)

func TestDynamicBatchSize(t *testing.T) {
	// Small batch sizes are unaffected.
	assert.Equal(t, 5, dynamicBatchSize(5, 10))

	// The batch size is adjusted if there are not enough candidates.
	assert.Equal(t, 70/3, dynamicBatchSize(50, 70))
	assert.Equal(t, minDynamicBatchSize, dynamicBatchSize(50, 10))

	// The configured batch size is used if there are enough candidates.
	assert.Equal(t, 50, dynamicBatchSize(50, 150))
	assert.Equal(t, 50, dynamicBatchSize(50, 200))
}

func TestQuotasSumExactly(t *testing.T) {
	cases := []struct {
		total       int
		percentages []float32
	}{
		{50, []float32{0.3, 0.2, 0.2, 0.2, 0.1}},
		{50, []float32{0.33, 0.33, 0.34}},
		{7, []float32{0.5, 0.5}},
		{1, []float32{0.3, 0.2, 0.2, 0.2, 0.1}},
		{13, []float32{0.17, 0.23, 0.6}},
	}
	for _, tc := range cases {
		out := quotas(tc.total, tc.percentages)
		sum := 0
		for _, q := range out {
			sum += q
		}
		assert.Equal(t, tc.total, sum, "quotas %v for %v", out, tc.percentages)
	}
}

// makeCandidates builds n candidates with the given score, spread over three
// lessons. The exercise handles are derived from the score so that pools
// built from several calls never collide.
func makeCandidates(n int, score float32) []candidate {
	out := make([]candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidate{
			exercise: models.UnitID(uint32(i) + uint32(score*1000) + 1),
			lesson:   models.UnitID(1000000 + i%3),
			score:    score,
			depth:    1,
		})
	}
	return out
}

func testFilter() (*candidateFilter, *rand.Rand) {
	opts := DefaultOptions()
	return &candidateFilter{opts: &opts}, rand.New(rand.NewSource(0))
}

func TestFilterCandidatesFillsBatchExactly(t *testing.T) {
	f, rng := testFilter()

	// Plenty of candidates in every window.
	var pool []candidate
	pool = append(pool, makeCandidates(60, 0.5)...)
	pool = append(pool, makeCandidates(60, 2.0)...)
	pool = append(pool, makeCandidates(60, 3.0)...)
	pool = append(pool, makeCandidates(60, 4.0)...)
	pool = append(pool, makeCandidates(60, 4.8)...)

	batch := f.filterCandidates(rng, pool)
	assert.Len(t, batch, f.opts.BatchSize)
}

func TestFilterCandidatesRedistributesDeficit(t *testing.T) {
	f, rng := testFilter()

	// No candidates in the new and target windows; the other windows can
	// cover the whole batch.
	var pool []candidate
	pool = append(pool, makeCandidates(100, 3.0)...)
	pool = append(pool, makeCandidates(100, 4.0)...)

	batch := f.filterCandidates(rng, pool)
	assert.Len(t, batch, f.opts.BatchSize)
}

func TestFilterCandidatesShortPool(t *testing.T) {
	f, rng := testFilter()
	pool := makeCandidates(5, 1.0)

	// With a tiny pool the batch contains every candidate and nothing more.
	batch := f.filterCandidates(rng, pool)
	assert.Len(t, batch, 5)
}

func TestFilterCandidatesEmptyPool(t *testing.T) {
	f, rng := testFilter()
	assert.Empty(t, f.filterCandidates(rng, nil))
}

func TestFilterCandidatesNoDuplicates(t *testing.T) {
	f, rng := testFilter()
	var pool []candidate
	pool = append(pool, makeCandidates(30, 0.5)...)
	pool = append(pool, makeCandidates(30, 3.0)...)

	batch := f.filterCandidates(rng, pool)
	seen := make(map[models.UnitID]struct{})
	for _, c := range batch {
		_, duplicate := seen[c.exercise]
		require.False(t, duplicate, "exercise %d selected twice", c.exercise)
		seen[c.exercise] = struct{}{}
	}
}

func TestAntiRepeatWeighting(t *testing.T) {
	lessonFrequency := map[models.UnitID]int{1: 1}
	fresh := candidate{exercise: 1, lesson: 1, score: 2.0, depth: 1, frequency: 0}
	repeated := candidate{exercise: 2, lesson: 1, score: 2.0, depth: 1, frequency: 4}
	assert.Greater(t, weight(fresh, lessonFrequency), weight(repeated, lessonFrequency))
	assert.InDelta(t, weight(fresh, lessonFrequency)/5.0, weight(repeated, lessonFrequency), 1e-6)
}

func TestSelectCandidatesFavorsLowScores(t *testing.T) {
	// With one slot, low-score candidates should be picked much more often.
	rng := rand.New(rand.NewSource(0))
	low := candidate{exercise: 1, lesson: 1, score: 0.5, numTrials: 20}
	high := candidate{exercise: 2, lesson: 1, score: 4.9, numTrials: 20}

	lowPicked := 0
	for i := 0; i < 200; i++ {
		selected, _ := selectCandidates(rng, []candidate{low, high}, 1)
		require.Len(t, selected, 1)
		if selected[0].exercise == low.exercise {
			lowPicked++
		}
	}
	assert.Greater(t, lowPicked, 120, fmt.Sprintf("low-score candidate picked %d/200 times", lowPicked))
}
