// Package scorer computes and caches aggregate unit scores. Exercise scores
// come from the trial log through the exercise scorer; lesson and course
// scores aggregate their children and fold in reward adjustments.
//
// Caching exercise and lesson scores significantly improves scheduling
// performance, since the same units are consulted many times during a single
// graph search.
package scorer

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/trane/internal/graph"
	"github.com/example/trane/internal/scoring"
	"github.com/example/trane/pkg/models"
)

// TrialSource reads the most recent trials of an exercise.
type TrialSource interface {
	Recent(ctx context.Context, exerciseID string, n int) ([]models.Trial, error)
}

// RewardSource reads the most recent rewards of a unit.
type RewardSource interface {
	Recent(ctx context.Context, unitID string, n int) ([]models.UnitReward, error)
}

// Blacklist reports whether a unit has been blacklisted by the student.
type Blacklist interface {
	Contains(ctx context.Context, unitID string) (bool, error)
}

// cachedExercise stores a computed exercise score along with the number of
// trials that produced it.
type cachedExercise struct {
	score     float32
	numTrials int
}

// cachedAggregate stores a computed lesson or course score. Units none of
// whose exercises have been attempted have no known score.
type cachedAggregate struct {
	score float32
	known bool
}

// Options configure the unit scorer.
type Options struct {
	// NumTrials is how many trials are read to compute an exercise score.
	NumTrials int

	// NumRewards is how many reward events are read to compute a unit's
	// reward adjustment.
	NumRewards int

	// SupersedingScore is the minimum score a superseding unit needs before
	// the units it supersedes are treated as mastered.
	SupersedingScore float32
}

// UnitScorer computes unit scores and caches them. It is safe for concurrent
// use: lookups take a read lock on the cache, and recomputation is idempotent
// so two threads racing on a miss may both write the same value.
type UnitScorer struct {
	mu            sync.RWMutex
	exerciseCache map[models.UnitID]cachedExercise
	lessonCache   map[models.UnitID]cachedAggregate
	courseCache   map[models.UnitID]cachedAggregate

	graph     *graph.Graph
	trials    TrialSource
	rewards   RewardSource
	blacklist Blacklist

	exerciseScorer *scoring.PowerLawScorer
	rewardScorer   *scoring.WeightedRewardScorer
	opts           Options
	logger         *zap.SugaredLogger
}

// New creates a unit scorer over the given graph and log sources.
func New(g *graph.Graph, trials TrialSource, rewards RewardSource, blacklist Blacklist,
	exerciseScorer *scoring.PowerLawScorer, rewardScorer *scoring.WeightedRewardScorer,
	opts Options, logger *zap.SugaredLogger) *UnitScorer {
	return &UnitScorer{
		exerciseCache:  make(map[models.UnitID]cachedExercise),
		lessonCache:    make(map[models.UnitID]cachedAggregate),
		courseCache:    make(map[models.UnitID]cachedAggregate),
		graph:          g,
		trials:         trials,
		rewards:        rewards,
		blacklist:      blacklist,
		exerciseScorer: exerciseScorer,
		rewardScorer:   rewardScorer,
		opts:           opts,
		logger:         logger,
	}
}

// Invalidate removes the cached score of the unit and of every unit whose
// score depends on it. For an exercise, that is its parent lesson and course;
// for a lesson or course, the scores of its children are also dropped so that
// blacklist changes are picked up.
func (s *UnitScorer) Invalidate(h models.UnitID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, isExercise := s.exerciseCache[h]
	kind, _ := s.graph.UnitType(h)

	delete(s.exerciseCache, h)
	delete(s.lessonCache, h)
	delete(s.courseCache, h)

	if isExercise || kind == models.UnitExercise {
		lesson := s.graph.LessonOf(h)
		delete(s.lessonCache, lesson)
		delete(s.courseCache, s.graph.CourseOf(lesson))
		return
	}
	if kind == models.UnitLesson {
		delete(s.courseCache, s.graph.CourseOf(h))
		for _, exercise := range s.graph.Exercises(h) {
			delete(s.exerciseCache, exercise)
		}
		return
	}
	if kind == models.UnitCourse {
		for _, lesson := range s.graph.Lessons(h) {
			delete(s.lessonCache, lesson)
			for _, exercise := range s.graph.Exercises(lesson) {
				delete(s.exerciseCache, exercise)
			}
		}
	}
}

// InvalidateWithPrefix removes the cached score of every unit whose ID starts
// with the given prefix.
func (s *UnitScorer) InvalidateWithPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	interner := s.graph.Interner()
	for h := range s.exerciseCache {
		if strings.HasPrefix(interner.ID(h), prefix) {
			delete(s.exerciseCache, h)
		}
	}
	for h := range s.lessonCache {
		if strings.HasPrefix(interner.ID(h), prefix) {
			delete(s.lessonCache, h)
		}
	}
	for h := range s.courseCache {
		if strings.HasPrefix(interner.ID(h), prefix) {
			delete(s.courseCache, h)
		}
	}
}

// blacklisted swallows storage errors and treats them as "not blacklisted",
// logging the failure.
func (s *UnitScorer) blacklisted(ctx context.Context, h models.UnitID) bool {
	contains, err := s.blacklist.Contains(ctx, s.graph.Interner().ID(h))
	if err != nil {
		s.logger.Warnw("failed to check blacklist", "unit", s.graph.Interner().ID(h), "error", err)
		return false
	}
	return contains
}

// rewardAdjustment returns the combined reward adjustment for the unit. Log
// failures degrade to no adjustment.
func (s *UnitScorer) rewardAdjustment(ctx context.Context, h models.UnitID) float32 {
	events, err := s.rewards.Recent(ctx, s.graph.Interner().ID(h), s.opts.NumRewards)
	if err != nil {
		s.logger.Warnw("failed to read rewards", "unit", s.graph.Interner().ID(h), "error", err)
		return 0.0
	}
	adjustment, err := s.rewardScorer.ScoreRewards(events)
	if err != nil {
		s.logger.Warnw("failed to score rewards", "unit", s.graph.Interner().ID(h), "error", err)
		return 0.0
	}
	return adjustment
}

// ExerciseScore returns the score of the exercise and the number of trials
// used to compute it.
func (s *UnitScorer) ExerciseScore(ctx context.Context, h models.UnitID) (float32, int, error) {
	s.mu.RLock()
	cached, ok := s.exerciseCache[h]
	s.mu.RUnlock()
	if ok {
		return cached.score, cached.numTrials, nil
	}

	trials, err := s.trials.Recent(ctx, s.graph.Interner().ID(h), s.opts.NumTrials)
	if err != nil {
		return 0.0, 0, err
	}
	score, err := s.exerciseScorer.Score(s.graph.ExerciseType(h), trials)
	if err != nil {
		return 0.0, 0, err
	}

	s.mu.Lock()
	s.exerciseCache[h] = cachedExercise{score: score, numTrials: len(trials)}
	s.mu.Unlock()
	return score, len(trials), nil
}

// NumTrials returns the number of trials considered for the exercise's score,
// computing the score if it is not cached.
func (s *UnitScorer) NumTrials(ctx context.Context, h models.UnitID) (int, error) {
	_, numTrials, err := s.ExerciseScore(ctx, h)
	return numTrials, err
}

// lessonScore aggregates the lesson's exercise scores. Only exercises with at
// least one trial contribute; if none have been attempted the lesson has no
// known score. The lesson's reward adjustment is added and the result clamped
// to [0, 5].
func (s *UnitScorer) lessonScore(ctx context.Context, h models.UnitID) (float32, bool, error) {
	if s.blacklisted(ctx, h) {
		return 0.0, false, nil
	}

	s.mu.RLock()
	cached, ok := s.lessonCache[h]
	s.mu.RUnlock()
	if ok {
		return cached.score, cached.known, nil
	}

	var sum float32
	var attempted int
	for _, exercise := range s.graph.Exercises(h) {
		if s.blacklisted(ctx, exercise) {
			continue
		}
		score, numTrials, err := s.ExerciseScore(ctx, exercise)
		if err != nil {
			return 0.0, false, err
		}
		if numTrials == 0 {
			continue
		}
		sum += score
		attempted++
	}

	entry := cachedAggregate{}
	if attempted > 0 {
		score := sum/float32(attempted) + s.rewardAdjustment(ctx, h)
		entry = cachedAggregate{score: clampScore(score), known: true}
	}

	s.mu.Lock()
	s.lessonCache[h] = entry
	s.mu.Unlock()
	return entry.score, entry.known, nil
}

// courseScore aggregates the scores of the course's lessons with a known
// score, adds the course's reward adjustment, and clamps to [0, 5].
func (s *UnitScorer) courseScore(ctx context.Context, h models.UnitID) (float32, bool, error) {
	if s.blacklisted(ctx, h) {
		return 0.0, false, nil
	}

	s.mu.RLock()
	cached, ok := s.courseCache[h]
	s.mu.RUnlock()
	if ok {
		return cached.score, cached.known, nil
	}

	var sum float32
	var known int
	for _, lesson := range s.graph.Lessons(h) {
		score, ok, err := s.lessonScore(ctx, lesson)
		if err != nil {
			return 0.0, false, err
		}
		if !ok {
			continue
		}
		sum += score
		known++
	}

	entry := cachedAggregate{}
	if known > 0 {
		score := sum/float32(known) + s.rewardAdjustment(ctx, h)
		entry = cachedAggregate{score: clampScore(score), known: true}
	}

	s.mu.Lock()
	s.courseCache[h] = entry
	s.mu.Unlock()
	return entry.score, entry.known, nil
}

// UnitScore returns the score of any unit. The second return value is false
// when the unit has no known score, which callers must treat as unmastered.
// Units that were demoted to implicit-mastered at load time score 5.0. Log
// read failures degrade to an unknown score.
func (s *UnitScorer) UnitScore(ctx context.Context, h models.UnitID) (float32, bool, error) {
	if s.graph.ImplicitlyMastered(h) {
		return 5.0, true, nil
	}
	kind, ok := s.graph.UnitType(h)
	if !ok {
		return 0.0, false, nil
	}

	var score float32
	var known bool
	var err error
	switch kind {
	case models.UnitCourse:
		score, known, err = s.courseScore(ctx, h)
	case models.UnitLesson:
		score, known, err = s.lessonScore(ctx, h)
	case models.UnitExercise:
		score, _, err = s.ExerciseScore(ctx, h)
		known = true
	}
	if err != nil {
		s.logger.Warnw("failed to compute unit score, treating as unknown",
			"unit", s.graph.Interner().ID(h), "error", err)
		return 0.0, false, nil
	}
	return score, known, nil
}

// AllExercisesHaveScores reports whether every non-blacklisted exercise in
// the unit's subtree has at least one recorded trial. Units with no exercises
// trivially qualify.
func (s *UnitScorer) AllExercisesHaveScores(ctx context.Context, h models.UnitID) bool {
	kind, ok := s.graph.UnitType(h)
	if !ok {
		return true
	}

	var lessons []models.UnitID
	switch kind {
	case models.UnitCourse:
		lessons = s.graph.Lessons(h)
	case models.UnitLesson:
		lessons = []models.UnitID{h}
	case models.UnitExercise:
		numTrials, err := s.NumTrials(ctx, h)
		return err == nil && numTrials > 0
	}

	for _, lesson := range lessons {
		if s.blacklisted(ctx, lesson) {
			continue
		}
		for _, exercise := range s.graph.Exercises(lesson) {
			if s.blacklisted(ctx, exercise) {
				continue
			}
			numTrials, err := s.NumTrials(ctx, exercise)
			if err != nil || numTrials == 0 {
				return false
			}
		}
	}
	return true
}

// IsSuperseded reports whether the unit can be considered superseded by the
// given superseding units. That requires a non-empty superseding set, every
// exercise in the superseded unit having been attempted at least once, and
// every superseding unit scoring at or above the superseding score.
func (s *UnitScorer) IsSuperseded(ctx context.Context, superseded models.UnitID, superseding []models.UnitID) bool {
	if len(superseding) == 0 {
		return false
	}
	if !s.AllExercisesHaveScores(ctx, superseded) {
		return false
	}
	for _, unit := range superseding {
		score, known, err := s.UnitScore(ctx, unit)
		if err != nil || !known || score < s.opts.SupersedingScore {
			return false
		}
	}
	return true
}

// ReplaceSuperseding recursively replaces superseding units that have
// themselves been superseded with their own superseding units. The returned
// set is the effective set of units gating the superseded unit.
func (s *UnitScorer) ReplaceSuperseding(ctx context.Context, superseding []models.UnitID) []models.UnitID {
	var result []models.UnitID
	for _, unit := range superseding {
		next := s.graph.Superseding(unit)
		if len(next) > 0 && s.IsSuperseded(ctx, unit, next) {
			result = append(result, s.ReplaceSuperseding(ctx, next)...)
			continue
		}
		result = append(result, unit)
	}
	return result
}

// clampScore bounds a score to [0, 5].
func clampScore(score float32) float32 {
	if score < 0.0 {
		return 0.0
	}
	if score > 5.0 {
		return 5.0
	}
	return score
}
