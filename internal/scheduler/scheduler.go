// Package scheduler produces batches of exercises calibrated to the
// student's current ability. The scheduler's job is to plan a traversal of
// the graph of skills as the student's performance blocks or unblocks paths:
//
//  1. Keep practicing material the student has seen, to improve and maintain
//     it.
//  2. Once the current material is sufficiently mastered, move into the
//     units that depend on it.
//  3. Keep the difficulty mix slightly outside the student's comfort zone,
//     neither frustrating nor boring.
//
// A depth-first search collects a pool of candidates several times larger
// than the final batch. The candidates are bucketed into mastery windows by
// score, each window contributes its quota of randomly selected exercises,
// and the combined result is shuffled into the final batch.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/trane/internal/graph"
	"github.com/example/trane/internal/rewarder"
	"github.com/example/trane/internal/scorer"
	"github.com/example/trane/internal/scoring"
	"github.com/example/trane/pkg/models"
)

// maxCandidateFactor caps the candidate pool at this multiple of the batch
// size. Once a dead end is reached with a pool this large, the search
// terminates early instead of visiting the entire graph.
const maxCandidateFactor = 10

// TrialLog is the append-only log of exercise trials.
type TrialLog interface {
	Append(ctx context.Context, trial *models.Trial) error
	Recent(ctx context.Context, exerciseID string, n int) ([]models.Trial, error)
}

// RewardLog is the append-only log of unit rewards.
type RewardLog interface {
	Append(ctx context.Context, reward *models.UnitReward) error
	Recent(ctx context.Context, unitID string, n int) ([]models.UnitReward, error)
}

// BlacklistSource reports whether a unit is blacklisted.
type BlacklistSource interface {
	Contains(ctx context.Context, unitID string) (bool, error)
}

// ReviewListSource lists the units marked for review.
type ReviewListSource interface {
	All(ctx context.Context) ([]string, error)
}

// ManifestSource resolves exercise IDs to their manifests.
type ManifestSource interface {
	ExerciseManifest(id string) (*models.ExerciseManifest, error)
}

// BatchItem is one exercise in a returned batch.
type BatchItem struct {
	ExerciseID string
	Manifest   *models.ExerciseManifest
}

// Scheduler is the depth-first exercise scheduler. It is safe for concurrent
// use; batches computed concurrently with a trial record may or may not
// reflect that trial.
type Scheduler struct {
	graph      *graph.Graph
	library    ManifestSource
	opts       Options
	trials     TrialLog
	rewards    RewardLog
	blacklist  BlacklistSource
	reviewList ReviewListSource

	scores     *scorer.UnitScorer
	propagator *rewarder.Propagator
	freq       *frequencyTracker
	filter     *candidateFilter

	// rng is per-scheduler and seeded from the rngSeed passed to New so
	// traversals are reproducible within a process. Never the process-wide
	// source.
	rngMu sync.Mutex
	rng   *rand.Rand

	logger *zap.SugaredLogger
}

// New creates a scheduler over the given graph, manifest source, and logs.
// The options are verified and invalid ones are rejected with
// ErrInvalidConfig.
func New(g *graph.Graph, library ManifestSource, opts Options, trials TrialLog,
	rewards RewardLog, blacklist BlacklistSource, reviewList ReviewListSource,
	rngSeed int64, logger *zap.SugaredLogger) (*Scheduler, error) {
	if err := opts.Verify(); err != nil {
		return nil, err
	}

	scores := scorer.New(g, trials, rewards, blacklist,
		scoring.NewPowerLawScorer(), scoring.NewWeightedRewardScorer(),
		scorer.Options{
			NumTrials:        opts.NumTrials,
			NumRewards:       opts.NumRewards,
			SupersedingScore: opts.SupersedingScore,
		}, logger)

	s := &Scheduler{
		graph:      g,
		library:    library,
		opts:       opts,
		trials:     trials,
		rewards:    rewards,
		blacklist:  blacklist,
		reviewList: reviewList,
		scores:     scores,
		freq:       newFrequencyTracker(time.Now),
		rng:        rand.New(rand.NewSource(rngSeed)),
		logger:     logger,
	}
	s.filter = &candidateFilter{opts: &s.opts}
	s.propagator = rewarder.New(g, rewards, scores, rewarder.Options{
		MaxDepth:       opts.RewardDepth,
		AggregatePaths: opts.AggregateRewardPaths,
	}, logger)
	return s, nil
}

// Options returns the options the scheduler was built with.
func (s *Scheduler) Options() Options {
	return s.opts
}

// stackItem is a unit scheduled for traversal, along with the number of hops
// the search took to reach it.
type stackItem struct {
	unit  models.UnitID
	depth int
}

// checkCancelled polls the cooperative cancellation token.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrCancelled, ctx.Err())
	default:
		return nil
	}
}

// shuffleUnits shuffles the units in place using the scheduler's seeded rng.
func (s *Scheduler) shuffleUnits(units []models.UnitID) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(units), func(i, j int) {
		units[i], units[j] = units[j], units[i]
	})
}

// shuffleToStack shuffles the units and pushes them onto the stack one hop
// deeper than the current item, so each batch request traverses the graph in
// a different order.
func (s *Scheduler) shuffleToStack(curr stackItem, units []models.UnitID, stack *[]stackItem) {
	s.shuffleUnits(units)
	for _, unit := range units {
		*stack = append(*stack, stackItem{unit: unit, depth: curr.depth + 1})
	}
}

// blacklisted swallows storage errors and treats them as "not blacklisted".
func (s *Scheduler) blacklisted(ctx context.Context, h models.UnitID) bool {
	contains, err := s.blacklist.Contains(ctx, s.graph.Interner().ID(h))
	if err != nil {
		s.logger.Warnw("failed to check blacklist", "unit", s.graph.Interner().ID(h), "error", err)
		return false
	}
	return contains
}

// passesFilter reports whether the unit passes the metadata filter. Units
// that do not pass are treated as mastered so the search continues through
// them.
func (s *Scheduler) passesFilter(h models.UnitID, kv *models.KeyValueFilter) bool {
	if kv == nil {
		return true
	}
	kind, ok := s.graph.UnitType(h)
	if !ok {
		return true
	}
	switch kind {
	case models.UnitCourse:
		return kv.PassesCourse(s.graph.Metadata(h))
	case models.UnitLesson:
		course := s.graph.CourseOf(h)
		return kv.PassesLesson(s.graph.Metadata(course), s.graph.Metadata(h))
	}
	return true
}

// isSuperseded reports whether the unit is superseded by units that have
// been mastered. Superseding units that were themselves superseded are
// replaced by their own superseding units first.
func (s *Scheduler) isSuperseded(ctx context.Context, h models.UnitID) bool {
	superseding := s.graph.Superseding(h)
	if len(superseding) == 0 {
		return false
	}
	effective := s.scores.ReplaceSuperseding(ctx, superseding)
	return s.scores.IsSuperseded(ctx, h, effective)
}

// satisfiedDependency reports whether the dependency gates nothing anymore,
// so the search can continue into the units that depend on it.
func (s *Scheduler) satisfiedDependency(ctx context.Context, dep models.UnitID, depth int, kv *models.KeyValueFilter) bool {
	// Units that were never loaded are implicitly mastered.
	if !s.graph.Exists(dep) {
		return true
	}

	// Units that do not pass the metadata filter are treated as mastered so
	// the search can continue past them.
	if !s.passesFilter(dep, kv) {
		return true
	}

	// Blacklisted units and lessons of blacklisted courses count as
	// mastered.
	if s.blacklisted(ctx, dep) {
		return true
	}
	kind, _ := s.graph.UnitType(dep)
	if kind == models.UnitLesson && s.blacklisted(ctx, s.graph.CourseOf(dep)) {
		return true
	}

	// Superseded units count as mastered.
	if s.isSuperseded(ctx, dep) {
		return true
	}

	// Units with nothing to practice gate nothing.
	if kind == models.UnitLesson && len(s.graph.Exercises(dep)) == 0 {
		return true
	}
	if kind == models.UnitCourse && len(s.graph.Lessons(dep)) == 0 {
		return true
	}

	// Finally, the dependency is satisfied once its score reaches the
	// passing score. An unknown score never satisfies: exercises must not
	// be emitted from units whose dependencies have not been attempted.
	score, known, err := s.scores.UnitScore(ctx, dep)
	if err != nil || !known {
		return false
	}
	return score >= s.opts.PassingScore.ComputeScore(depth)
}

// allSatisfiedDependencies reports whether all of the unit's dependencies
// are satisfied.
func (s *Scheduler) allSatisfiedDependencies(ctx context.Context, h models.UnitID, depth int, kv *models.KeyValueFilter) bool {
	for _, dep := range s.graph.Dependencies(h) {
		if !s.satisfiedDependency(ctx, dep, depth, kv) {
			return false
		}
	}
	return true
}

// validDependents returns the dependents of the unit whose dependencies are
// all satisfied.
func (s *Scheduler) validDependents(ctx context.Context, h models.UnitID, depth int, kv *models.KeyValueFilter) []models.UnitID {
	var valid []models.UnitID
	for _, dependent := range s.graph.Dependents(h) {
		if s.allSatisfiedDependencies(ctx, dependent, depth, kv) {
			valid = append(valid, dependent)
		}
	}
	return valid
}

// validStartingLessons returns the lessons of the course that do not depend
// on other lessons in the course and whose dependencies are satisfied.
func (s *Scheduler) validStartingLessons(ctx context.Context, course models.UnitID, depth int, kv *models.KeyValueFilter) []models.UnitID {
	var valid []models.UnitID
	for _, lesson := range s.graph.StartingLessons(course) {
		if s.allSatisfiedDependencies(ctx, lesson, depth, kv) {
			valid = append(valid, lesson)
		}
	}
	return valid
}

// candidatesFromLesson builds candidates from the lesson's exercises and
// returns them along with the average score over all eligible exercises. The
// average decides whether the search continues past the lesson.
func (s *Scheduler) candidatesFromLesson(ctx context.Context, item stackItem) ([]candidate, float32, error) {
	lesson := item.unit
	if !s.graph.Exists(lesson) {
		return nil, 0.0, nil
	}

	// Blacklisted and superseded lessons, and lessons of blacklisted or
	// superseded courses, emit nothing.
	course := s.graph.CourseOf(lesson)
	if s.blacklisted(ctx, lesson) || s.blacklisted(ctx, course) {
		return nil, 0.0, nil
	}
	if s.isSuperseded(ctx, lesson) || s.isSuperseded(ctx, course) {
		return nil, 0.0, nil
	}

	var eligible []candidate
	var sum float32
	for _, exercise := range s.graph.Exercises(lesson) {
		if s.blacklisted(ctx, exercise) {
			continue
		}
		score, numTrials, err := s.scores.ExerciseScore(ctx, exercise)
		if err != nil {
			return nil, 0.0, err
		}
		eligible = append(eligible, candidate{
			exercise:  exercise,
			lesson:    lesson,
			depth:     float32(item.depth + 1),
			score:     score,
			numTrials: numTrials,
			frequency: s.freq.get(exercise),
		})
		sum += score
	}
	if len(eligible) == 0 {
		return nil, 0.0, nil
	}
	avg := sum / float32(len(eligible))

	// Under fractional passing, lessons close to mastered contribute only a
	// fraction of their exercises, sampled uniformly without replacement,
	// with a floor of one.
	if s.opts.FractionalPassing {
		if lessonScore, known, err := s.scores.UnitScore(ctx, lesson); err == nil && known {
			fraction := s.opts.exerciseFraction(lessonScore)
			if fraction > 0.0 {
				keep := int(math.Round(float64(1.0-fraction) * float64(len(eligible))))
				if keep < 1 {
					keep = 1
				}
				if keep < len(eligible) {
					s.rngMu.Lock()
					indices := s.rng.Perm(len(eligible))[:keep]
					s.rngMu.Unlock()
					sampled := make([]candidate, 0, keep)
					for _, i := range indices {
						sampled = append(sampled, eligible[i])
					}
					eligible = sampled
				}
			}
		}
	}

	return eligible, avg, nil
}

// candidatesFromGraph performs the depth-first search from the given initial
// stack and collects candidates until the frontier is exhausted or the pool
// reaches its cap.
func (s *Scheduler) candidatesFromGraph(ctx context.Context, initialStack []stackItem, kv *models.KeyValueFilter) ([]candidate, error) {
	stack := initialStack
	maxCandidates := s.opts.BatchSize * maxCandidateFactor
	var all []candidate
	visited := make(map[models.UnitID]struct{})

	// The dependency between a course and its lessons is not encoded as
	// graph edges. Instead, the search only moves into a course's dependents
	// once all of its lessons have been visited, tracked by this counter.
	pendingCourseLessons := make(map[models.UnitID]int)

	for len(stack) > 0 {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := visited[curr.unit]; ok {
			continue
		}
		kind, ok := s.graph.UnitType(curr.unit)
		if !ok || kind == models.UnitExercise {
			// The search only considers lessons and courses.
			continue
		}

		if kind == models.UnitCourse {
			starting := s.validStartingLessons(ctx, curr.unit, curr.depth, kv)
			s.shuffleToStack(curr, starting, &stack)

			pending, ok := pendingCourseLessons[curr.unit]
			if !ok {
				pending = len(s.graph.Lessons(curr.unit))
				pendingCourseLessons[curr.unit] = pending
			}
			passes := s.passesFilter(curr.unit, kv)
			skipped := s.blacklisted(ctx, curr.unit) || s.isSuperseded(ctx, curr.unit)

			if pending <= 0 || !passes || skipped {
				// The course gates nothing anymore: mark it visited and
				// move into its dependents.
				visited[curr.unit] = struct{}{}
				deps := s.validDependents(ctx, curr.unit, curr.depth, kv)
				s.shuffleToStack(curr, deps, &stack)
			}
			continue
		}

		// The unit is a lesson.
		visited[curr.unit] = struct{}{}
		course := s.graph.CourseOf(curr.unit)
		pending, ok := pendingCourseLessons[course]
		if !ok {
			pending = len(s.graph.Lessons(course))
		}
		pending--
		pendingCourseLessons[course] = pending
		if pending <= 0 {
			// All lessons visited: re-add the course so the search can
			// continue into its dependents.
			stack = append(stack, stackItem{unit: course, depth: curr.depth + 1})
		}

		validDeps := s.validDependents(ctx, curr.unit, curr.depth, kv)
		if !s.passesFilter(curr.unit, kv) {
			s.shuffleToStack(curr, validDeps, &stack)
			continue
		}

		candidates, avg, err := s.candidatesFromLesson(ctx, curr)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)

		// The average is only meaningful if the lesson produced candidates.
		// Below the passing score the search stops descending past this
		// lesson; with a full pool it terminates entirely.
		if len(candidates) > 0 && avg < s.opts.PassingScore.ComputeScore(curr.depth) {
			if len(all) >= maxCandidates {
				break
			}
			continue
		}
		s.shuffleToStack(curr, validDeps, &stack)
	}
	return all, nil
}

// initialStack returns the starting items for a search of the entire graph:
// the starting lessons of every root course, or the course itself when it
// has no eligible lessons.
func (s *Scheduler) initialStack(ctx context.Context, kv *models.KeyValueFilter) []stackItem {
	var initial []stackItem
	for _, course := range s.graph.Roots() {
		lessons := s.validStartingLessons(ctx, course, 0, kv)
		if len(lessons) == 0 {
			initial = append(initial, stackItem{unit: course, depth: 0})
			continue
		}
		for _, lesson := range lessons {
			initial = append(initial, stackItem{unit: lesson, depth: 0})
		}
	}
	s.rngMu.Lock()
	s.rng.Shuffle(len(initial), func(i, j int) {
		initial[i], initial[j] = initial[j], initial[i]
	})
	s.rngMu.Unlock()
	return initial
}

// candidatesFromCourses searches only the given courses. The starting
// lessons are added even if their dependencies are not satisfied, because
// the student specifically asked for exercises from these courses.
func (s *Scheduler) candidatesFromCourses(ctx context.Context, courseIDs []string) ([]candidate, error) {
	courses := make(map[models.UnitID]struct{}, len(courseIDs))
	var stack []stackItem
	visited := make(map[models.UnitID]struct{})
	for _, id := range courseIDs {
		course := s.graph.Interner().Lookup(id)
		if course == models.NoUnit || !s.graph.Exists(course) {
			return nil, fmt.Errorf("%w: unknown course %s", models.ErrGraph, id)
		}
		courses[course] = struct{}{}
		visited[course] = struct{}{}
		for _, lesson := range s.graph.StartingLessons(course) {
			stack = append(stack, stackItem{unit: lesson, depth: 0})
		}
	}

	maxCandidates := s.opts.BatchSize * maxCandidateFactor
	var all []candidate
	for len(stack) > 0 {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := visited[curr.unit]; ok {
			continue
		}
		visited[curr.unit] = struct{}{}

		kind, ok := s.graph.UnitType(curr.unit)
		if !ok || kind != models.UnitLesson {
			// Courses were handled when their starting lessons were pushed,
			// and exercises are never traversed directly.
			continue
		}

		// Ignore lessons from other courses that entered through dependent
		// edges.
		if _, ok := courses[s.graph.CourseOf(curr.unit)]; !ok {
			continue
		}

		candidates, avg, err := s.candidatesFromLesson(ctx, curr)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)

		if len(candidates) > 0 && avg < s.opts.PassingScore.ComputeScore(curr.depth) {
			if len(all) >= maxCandidates {
				break
			}
			continue
		}
		deps := s.validDependents(ctx, curr.unit, curr.depth, nil)
		s.shuffleToStack(curr, deps, &stack)
	}
	return all, nil
}

// candidatesFromLessonID collects candidates from a single lesson,
// regardless of its dependencies.
func (s *Scheduler) candidatesFromLessonID(ctx context.Context, lessonID string) ([]candidate, error) {
	lesson := s.graph.Interner().Lookup(lessonID)
	if lesson == models.NoUnit || !s.graph.Exists(lesson) {
		return nil, fmt.Errorf("%w: unknown lesson %s", models.ErrGraph, lessonID)
	}
	candidates, _, err := s.candidatesFromLesson(ctx, stackItem{unit: lesson, depth: 0})
	return candidates, err
}

// candidatesFromReviewList collects candidates from every unit in the review
// list. Exercises in the list are added directly.
func (s *Scheduler) candidatesFromReviewList(ctx context.Context) ([]candidate, error) {
	unitIDs, err := s.reviewList.All(ctx)
	if err != nil {
		return nil, err
	}

	var all []candidate
	for _, id := range unitIDs {
		unit := s.graph.Interner().Lookup(id)
		if unit == models.NoUnit {
			continue
		}
		kind, ok := s.graph.UnitType(unit)
		if !ok {
			continue
		}
		switch kind {
		case models.UnitCourse:
			candidates, err := s.candidatesFromCourses(ctx, []string{id})
			if err != nil {
				return nil, err
			}
			all = append(all, candidates...)
		case models.UnitLesson:
			candidates, err := s.candidatesFromLessonID(ctx, id)
			if err != nil {
				return nil, err
			}
			all = append(all, candidates...)
		case models.UnitExercise:
			score, numTrials, err := s.scores.ExerciseScore(ctx, unit)
			if err != nil {
				return nil, err
			}
			all = append(all, candidate{
				exercise:  unit,
				lesson:    s.graph.LessonOf(unit),
				depth:     0,
				score:     score,
				numTrials: numTrials,
				frequency: s.freq.get(unit),
			})
		}
	}
	return all, nil
}

// initialCandidates retrieves the candidate pool for the given filter.
func (s *Scheduler) initialCandidates(ctx context.Context, filter models.ExerciseFilter) ([]candidate, error) {
	switch f := filter.(type) {
	case nil:
		return s.candidatesFromGraph(ctx, s.initialStack(ctx, nil), nil)
	case models.CourseFilter:
		return s.candidatesFromCourses(ctx, f.CourseIDs)
	case models.LessonFilter:
		var all []candidate
		for _, lessonID := range f.LessonIDs {
			candidates, err := s.candidatesFromLessonID(ctx, lessonID)
			if err != nil {
				return nil, err
			}
			all = append(all, candidates...)
		}
		return all, nil
	case models.MetadataFilter:
		return s.candidatesFromGraph(ctx, s.initialStack(ctx, f.Filter), f.Filter)
	case models.ReviewListFilter:
		return s.candidatesFromReviewList(ctx)
	case models.DependentsFilter:
		var stack []stackItem
		for _, id := range f.UnitIDs {
			if unit := s.graph.Interner().Lookup(id); unit != models.NoUnit {
				stack = append(stack, stackItem{unit: unit, depth: 0})
			}
		}
		return s.candidatesFromGraph(ctx, stack, nil)
	case models.DependenciesFilter:
		var stack []stackItem
		for _, id := range f.UnitIDs {
			unit := s.graph.Interner().Lookup(id)
			if unit == models.NoUnit {
				continue
			}
			for _, dep := range s.graph.DependenciesAtDepth(unit, f.Depth) {
				stack = append(stack, stackItem{unit: dep, depth: 0})
			}
		}
		return s.candidatesFromGraph(ctx, stack, nil)
	default:
		return nil, fmt.Errorf("%w: unknown exercise filter %T", models.ErrInternal, filter)
	}
}

// GetExerciseBatch returns a new batch of exercises for the student to
// practice. The optional filter restricts which units are searched; the
// context cancels the search cooperatively between node visits.
func (s *Scheduler) GetExerciseBatch(ctx context.Context, filter models.ExerciseFilter) ([]BatchItem, error) {
	candidates, err := s.initialCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.rngMu.Lock()
	final := s.filter.filterCandidates(s.rng, candidates)
	s.rngMu.Unlock()

	items := make([]BatchItem, 0, len(final))
	for _, c := range final {
		id := s.graph.Interner().ID(c.exercise)
		manifest, err := s.library.ExerciseManifest(id)
		if err != nil {
			s.logger.Warnw("failed to get exercise manifest", "exercise", id, "error", err)
			continue
		}
		items = append(items, BatchItem{ExerciseID: id, Manifest: manifest})

		// Exercises in this batch get a lower chance of being selected again
		// in the near future.
		s.freq.increment(c.exercise)
	}
	return items, nil
}

// RecordTrial records the score of an exercise trial. In order, it appends
// the trial to the log, invalidates the affected cached scores, propagates
// rewards through the graph, and bumps the anti-repeat counter. A reward
// propagation failure is logged but does not fail the record.
func (s *Scheduler) RecordTrial(ctx context.Context, exerciseID string, score models.MasteryScore, timestamp int64) error {
	if !score.Valid() {
		return fmt.Errorf("%w: invalid mastery score %d", models.ErrInternal, score)
	}
	exercise := s.graph.Interner().Lookup(exerciseID)
	if exercise == models.NoUnit {
		return fmt.Errorf("%w: unknown unit %s", models.ErrGraph, exerciseID)
	}
	if kind, _ := s.graph.UnitType(exercise); kind != models.UnitExercise {
		return fmt.Errorf("%w: unit %s is not an exercise", models.ErrGraph, exerciseID)
	}

	trial := &models.Trial{
		ExerciseID: exerciseID,
		Score:      score.Float(),
		Timestamp:  timestamp,
	}
	if err := s.trials.Append(ctx, trial); err != nil {
		return err
	}
	s.scores.Invalidate(exercise)

	for _, reward := range s.propagator.PropagateTrial(ctx, exercise, score, timestamp) {
		if unit := s.graph.Interner().Lookup(reward.UnitID); unit != models.NoUnit {
			s.scores.Invalidate(unit)
		}
	}

	s.freq.increment(exercise)
	return nil
}

// RecordReward appends a manual reward for a unit and invalidates its cached
// score.
func (s *Scheduler) RecordReward(ctx context.Context, unitID string, magnitude float32, timestamp int64) error {
	unit := s.graph.Interner().Lookup(unitID)
	if unit == models.NoUnit || !s.graph.Exists(unit) {
		return fmt.Errorf("%w: unknown unit %s", models.ErrGraph, unitID)
	}
	reward := &models.UnitReward{
		UnitID:    unitID,
		Reward:    magnitude,
		Weight:    1.0,
		Timestamp: timestamp,
	}
	if err := s.rewards.Append(ctx, reward); err != nil {
		return err
	}
	s.scores.Invalidate(unit)
	return nil
}

// UnitScore returns the unit's current score. The second return value is
// false when the unit has no known score.
func (s *Scheduler) UnitScore(ctx context.Context, unitID string) (float32, bool, error) {
	unit := s.graph.Interner().Lookup(unitID)
	if unit == models.NoUnit {
		return 0.0, false, fmt.Errorf("%w: unknown unit %s", models.ErrGraph, unitID)
	}
	return s.scores.UnitScore(ctx, unit)
}

// InvalidateCachedScore drops the cached score of the unit. Callers that
// modify the blacklist outside the scheduler use this to keep the cache
// consistent.
func (s *Scheduler) InvalidateCachedScore(unitID string) {
	if unit := s.graph.Interner().Lookup(unitID); unit != models.NoUnit {
		s.scores.Invalidate(unit)
	}
}

// InvalidateCachedScoresWithPrefix drops the cached scores of all units with
// the given ID prefix.
func (s *Scheduler) InvalidateCachedScoresWithPrefix(prefix string) {
	s.scores.InvalidateWithPrefix(prefix)
}

// DecayFrequencies applies the wall-clock decay to the anti-repeat counters.
// The maintenance jobs call this periodically.
func (s *Scheduler) DecayFrequencies() {
	s.freq.decayTick()
}
