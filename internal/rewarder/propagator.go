// Package rewarder diffuses rewards through the unit graph when an exercise
// submits a score. Good scores propagate a positive reward down the
// dependency edges, since performing harder material implies the easier
// material it builds on. Bad scores propagate a negative reward up the
// dependents, increasing the repetition of material the student has not
// built secure foundations for.
package rewarder

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/trane/internal/graph"
	"github.com/example/trane/pkg/models"
)

const (
	// DefaultMaxDepth bounds how many hops a reward travels from the
	// exercise's lesson and course.
	DefaultMaxDepth = 5

	// minAbsReward stops propagation once the reward value is negligible.
	minAbsReward = 0.2

	// minWeight stops propagation once the graph weight is negligible.
	minWeight = 0.2

	// weightFactor decays the graph weight on each hop.
	weightFactor = 0.8

	// rewardFactor decays the reward value on each hop.
	rewardFactor = 0.9

	// masteredThreshold and masteredAttenuation reduce propagation through
	// units that are already mastered, to reflect diminishing returns.
	masteredThreshold   = 4.5
	masteredAttenuation = 0.5
)

// RewardSink appends reward events to the reward log.
type RewardSink interface {
	Append(ctx context.Context, reward *models.UnitReward) error
}

// ScoreSource reads unit scores for the attenuation stop-condition.
type ScoreSource interface {
	UnitScore(ctx context.Context, h models.UnitID) (float32, bool, error)
}

// Options configure the propagator.
type Options struct {
	// MaxDepth bounds the number of hops from the origin lesson and course.
	MaxDepth int

	// AggregatePaths sums the contributions of independent paths reaching
	// the same unit instead of keeping only the first visit. The aggregated
	// total is order-invariant.
	AggregatePaths bool
}

// Propagator walks the graph on each recorded trial and appends reward
// events to the reward log.
type Propagator struct {
	graph   *graph.Graph
	rewards RewardSink
	scores  ScoreSource
	opts    Options
	logger  *zap.SugaredLogger
}

// New creates a propagator. A MaxDepth of zero falls back to the default.
func New(g *graph.Graph, rewards RewardSink, scores ScoreSource, opts Options, logger *zap.SugaredLogger) *Propagator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Propagator{
		graph:   g,
		rewards: rewards,
		scores:  scores,
		opts:    opts,
		logger:  logger,
	}
}

// initialReward maps a mastery score to the base reward diffused through the
// graph. Threes lean slightly negative: material the student still struggles
// with needs its foundations reinforced.
func initialReward(score models.MasteryScore) float32 {
	switch score {
	case models.ScoreFive:
		return 0.8
	case models.ScoreFour:
		return 0.4
	case models.ScoreThree:
		return -0.3
	case models.ScoreTwo:
		return -0.5
	default:
		return -1.0
	}
}

// queueItem is a pending unit in the propagation walk.
type queueItem struct {
	unit   models.UnitID
	value  float32
	weight float32
	depth  int
}

// edge is a neighbor the reward travels to and the scale applied to it.
type edge struct {
	unit  models.UnitID
	scale float32
}

// nextUnits returns the neighbors the reward travels to from the unit, with
// per-edge scales derived from the declared dependency weights. Positive
// rewards travel to dependencies, negative rewards to dependents.
func (p *Propagator) nextUnits(unit models.UnitID, value float32) []edge {
	var neighbors []models.UnitID
	if value > 0 {
		neighbors = p.graph.Dependencies(unit)
	} else {
		neighbors = p.graph.Dependents(unit)
	}
	if len(neighbors) == 0 {
		return nil
	}

	// Normalize edge weights so that the heaviest edge carries the full
	// reward and lighter edges carry proportionally less.
	var maxWeight uint32 = 1
	weightOf := func(neighbor models.UnitID) uint32 {
		if value > 0 {
			return p.graph.DependencyWeight(unit, neighbor)
		}
		return p.graph.DependencyWeight(neighbor, unit)
	}
	for _, neighbor := range neighbors {
		if w := weightOf(neighbor); w > maxWeight {
			maxWeight = w
		}
	}

	edges := make([]edge, 0, len(neighbors))
	for _, neighbor := range neighbors {
		edges = append(edges, edge{
			unit:  neighbor,
			scale: float32(weightOf(neighbor)) / float32(maxWeight),
		})
	}
	return edges
}

// stop reports whether propagation should stop at this item. Declarative
// units stop it because memorizing one unit does not imply mastering its
// neighbors.
func (p *Propagator) stop(item queueItem) bool {
	if item.depth > p.opts.MaxDepth {
		return true
	}
	if t, ok := p.graph.DefaultExerciseType(item.unit); ok && t == models.Declarative {
		return true
	}
	return abs(item.value) < minAbsReward || item.weight < minWeight
}

// attenuation returns the factor applied to rewards leaving the unit. Units
// that are already mastered pass on a reduced reward.
func (p *Propagator) attenuation(ctx context.Context, unit models.UnitID) float32 {
	score, known, err := p.scores.UnitScore(ctx, unit)
	if err == nil && known && score >= masteredThreshold {
		return masteredAttenuation
	}
	return 1.0
}

// PropagateTrial diffuses the reward for a recorded trial through the graph
// and appends an event to the reward log for every visited unit. Failures
// are logged and do not fail the trial record; the returned slice holds the
// rewards that were appended.
func (p *Propagator) PropagateTrial(ctx context.Context, exercise models.UnitID, score models.MasteryScore, timestamp int64) []models.UnitReward {
	lesson := p.graph.LessonOf(exercise)
	course := p.graph.CourseOf(lesson)
	if lesson == models.NoUnit || course == models.NoUnit {
		return nil
	}

	// The lesson and course themselves are not rewarded: the trial already
	// contributes to their scores directly. Their neighbors are the seeds.
	value := initialReward(score)
	queue := make([]queueItem, 0, 8)
	for _, origin := range []models.UnitID{lesson, course} {
		for _, edge := range p.nextUnits(origin, value) {
			queue = append(queue, queueItem{
				unit:   edge.unit,
				value:  value * edge.scale,
				weight: 1.0,
				depth:  1,
			})
		}
	}

	type accumulated struct {
		value  float32
		weight float32
	}
	results := make(map[models.UnitID]accumulated)
	visited := make(map[models.UnitID]struct{})

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if p.stop(item) {
			continue
		}
		if _, seen := visited[item.unit]; seen {
			if !p.opts.AggregatePaths {
				continue
			}
			entry := results[item.unit]
			entry.value += item.value
			entry.weight = maxf(entry.weight, item.weight)
			results[item.unit] = entry
		} else {
			visited[item.unit] = struct{}{}
			results[item.unit] = accumulated{value: item.value, weight: item.weight}
		}

		attenuation := p.attenuation(ctx, item.unit)
		for _, edge := range p.nextUnits(item.unit, item.value) {
			queue = append(queue, queueItem{
				unit:   edge.unit,
				value:  edge.scale * rewardFactor * attenuation * item.value,
				weight: weightFactor * item.weight,
				depth:  item.depth + 1,
			})
		}
	}

	appended := make([]models.UnitReward, 0, len(results))
	for unit, entry := range results {
		reward := models.UnitReward{
			UnitID:    p.graph.Interner().ID(unit),
			Reward:    entry.value,
			Weight:    entry.weight,
			Timestamp: timestamp,
		}
		if err := p.rewards.Append(ctx, &reward); err != nil {
			p.logger.Warnw("failed to append propagated reward",
				"unit", reward.UnitID, "error", err)
			continue
		}
		appended = append(appended, reward)
	}
	return appended
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
