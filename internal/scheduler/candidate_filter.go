package scheduler

import (
	"math"
	"math/rand"

	"github.com/example/trane/pkg/models"
)

// Weights used during the random selection of candidates inside a mastery
// window. The values favor low scores, deep candidates, rarely practiced
// exercises, and lessons with few candidates in the pool.
const (
	initialWeight            = 1.0
	scoreWeightFactor        = 40.0
	depthWeightFactor        = 5.0
	maxDepthWeight           = 200.0
	maxNumTrialsWeight       = 200.0
	numTrialsFactor          = 0.5
	maxLessonFrequencyWeight = 200.0

	// minDynamicBatchSize is the floor used when the batch size is reduced
	// because the search found few candidates.
	minDynamicBatchSize = 10
)

// candidate is an exercise found during the search phase, to be bucketed
// into a mastery window and randomly selected into the final batch.
type candidate struct {
	exercise models.UnitID
	lesson   models.UnitID

	// depth is the number of hops the search needed to reach the exercise.
	depth float32

	// score is the exercise's own score, not its lesson's.
	score float32

	// numTrials is how many trials the score was computed from.
	numTrials int

	// frequency is the decayed count of recent emissions of this exercise.
	frequency float64
}

// candidateFilter reduces the candidates found during the search to a final
// batch that honors the mastery window quotas.
type candidateFilter struct {
	opts *Options
}

// dynamicBatchSize shrinks the batch when the pool is too small for the
// configured size to produce a balanced batch.
func dynamicBatchSize(batchSize, numCandidates int) int {
	if batchSize < minDynamicBatchSize {
		return batchSize
	}
	if numCandidates < batchSize*3 {
		reduced := numCandidates / 3
		if reduced < minDynamicBatchSize {
			return minDynamicBatchSize
		}
		return reduced
	}
	return batchSize
}

// quotas splits total into integer quotas proportional to the percentages,
// using the largest-remainder method so the quotas always sum to total.
func quotas(total int, percentages []float32) []int {
	out := make([]int, len(percentages))
	remainders := make([]float64, len(percentages))
	assigned := 0
	for i, p := range percentages {
		exact := float64(total) * float64(p)
		out[i] = int(math.Floor(exact))
		remainders[i] = exact - math.Floor(exact)
		assigned += out[i]
	}
	for assigned < total {
		best := -1
		for i, r := range remainders {
			if best == -1 || r > remainders[best] {
				best = i
			}
		}
		out[best]++
		remainders[best] = -1.0
		assigned++
	}
	return out
}

// countLessonFrequency counts the number of candidates in each lesson.
func countLessonFrequency(candidates []candidate) map[models.UnitID]int {
	lessonFrequency := make(map[models.UnitID]int)
	for _, c := range candidates {
		lessonFrequency[c.lesson]++
	}
	return lessonFrequency
}

// weight assigns the selection weight of a candidate:
//
//  1. Lower scores get more weight, to favor exercises the student needs.
//  2. Deeper candidates get more weight, so the batch is not dominated by
//     exercises near the start of the graph.
//  3. Exercises with fewer trials get more weight.
//  4. Lessons with many candidates in the pool share their weight, so a
//     single lesson cannot flood the batch.
//  5. The whole weight is divided by 1 + the recent-emission count, so the
//     same exercises are not returned back-to-back.
func weight(c candidate, lessonFrequency map[models.UnitID]int) float64 {
	w := initialWeight
	w += scoreWeightFactor * math.Max(float64(5.0-c.score), 0.0)
	w += math.Min(depthWeightFactor*float64(c.depth), maxDepthWeight)
	w += maxNumTrialsWeight * math.Pow(numTrialsFactor, float64(c.numTrials))
	if count := lessonFrequency[c.lesson]; count > 0 {
		w += maxLessonFrequencyWeight / float64(count)
	}
	return w / (1.0 + c.frequency)
}

// selectCandidates randomly selects up to n candidates, weighted by weight,
// without replacement. It returns the selected candidates and the remainder.
func selectCandidates(rng *rand.Rand, candidates []candidate, n int) ([]candidate, []candidate) {
	if len(candidates) <= n {
		return candidates, nil
	}

	lessonFrequency := countLessonFrequency(candidates)
	pool := make([]candidate, len(candidates))
	copy(pool, candidates)
	weights := make([]float64, len(pool))
	total := 0.0
	for i, c := range pool {
		weights[i] = weight(c, lessonFrequency)
		total += weights[i]
	}

	selected := make([]candidate, 0, n)
	for len(selected) < n && len(pool) > 0 {
		target := rng.Float64() * total
		index := len(pool) - 1
		for i, w := range weights {
			target -= w
			if target <= 0 {
				index = i
				break
			}
		}
		selected = append(selected, pool[index])
		total -= weights[index]
		pool = append(pool[:index], pool[index+1:]...)
		weights = append(weights[:index], weights[index+1:]...)
	}
	return selected, pool
}

// filterCandidates buckets the candidates into the mastery windows, selects
// each window's quota, redistributes the deficits of short windows to the
// others, and shuffles the result. The returned batch never exceeds the
// effective batch size, and when enough candidates exist it fills it exactly.
func (f *candidateFilter) filterCandidates(rng *rand.Rand, candidates []candidate) []candidate {
	batchSize := dynamicBatchSize(f.opts.BatchSize, len(candidates))
	if batchSize == 0 || len(candidates) == 0 {
		return nil
	}

	// Bucket every candidate into exactly one window. Exercises that have
	// never been scored sit at 0.0 and land in the new window.
	windows := []models.MasteryWindow{
		f.opts.NewWindow, f.opts.TargetWindow, f.opts.CurrentWindow,
		f.opts.EasyWindow, f.opts.MasteredWindow,
	}
	buckets := make([][]candidate, len(windows))
	for _, c := range candidates {
		for i, w := range windows {
			if w.InWindow(c.score) {
				buckets[i] = append(buckets[i], c)
				break
			}
		}
	}

	// First pass: take each window's exact quota.
	percentages := make([]float32, len(windows))
	for i, w := range windows {
		percentages[i] = w.Percentage
	}
	windowQuotas := quotas(batchSize, percentages)

	final := make([]candidate, 0, batchSize)
	remainders := make([][]candidate, len(windows))
	for i, bucket := range buckets {
		selected, remainder := selectCandidates(rng, bucket, windowQuotas[i])
		final = append(final, selected...)
		remainders[i] = remainder
	}

	// Redistribute the deficit of short windows proportionally to the
	// windows that still have candidates, conserving the total.
	for len(final) < batchSize {
		deficit := batchSize - len(final)
		available := make([]int, 0, len(windows))
		var availableTotal float32
		for i, remainder := range remainders {
			if len(remainder) > 0 {
				available = append(available, i)
				availableTotal += windows[i].Percentage
			}
		}
		if len(available) == 0 || availableTotal <= 0 {
			break
		}

		shares := make([]float32, len(available))
		for i, windowIndex := range available {
			shares[i] = windows[windowIndex].Percentage / availableTotal
		}
		extraQuotas := quotas(deficit, shares)

		progress := false
		for i, windowIndex := range available {
			if extraQuotas[i] == 0 {
				continue
			}
			selected, remainder := selectCandidates(rng, remainders[windowIndex], extraQuotas[i])
			if len(selected) > 0 {
				progress = true
			}
			final = append(final, selected...)
			remainders[windowIndex] = remainder
		}
		if !progress {
			break
		}
	}

	// Shuffle so the batch does not group exercises by window.
	rng.Shuffle(len(final), func(i, j int) {
		final[i], final[j] = final[j], final[i]
	})
	return final
}
