// Package testutil provides builders for test course libraries and
// in-memory implementations of the log stores, used by the scheduler and
// scorer tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/example/trane/internal/library"
	"github.com/example/trane/pkg/models"
)

// LessonSpec describes a lesson of a test course.
type LessonSpec struct {
	// Suffix is appended to the course ID to form the lesson ID.
	Suffix string

	// Dependencies of the lesson, as full unit IDs.
	Dependencies []string

	// NumExercises in the lesson.
	NumExercises int

	// ExerciseType of the lesson's exercises, also declared as the lesson's
	// default type. Defaults to procedural.
	ExerciseType models.ExerciseType

	// Metadata of the lesson.
	Metadata map[string][]string
}

// CourseSpec describes a test course.
type CourseSpec struct {
	ID                  string
	Dependencies        []string
	Superseded          []string
	Metadata            map[string][]string
	DefaultExerciseType models.ExerciseType
	Lessons             []LessonSpec
}

// LessonID returns the full ID of the lesson with the given suffix.
func (c CourseSpec) LessonID(suffix string) string {
	return c.ID + models.IDSeparator + suffix
}

// ExerciseID returns the full ID of the i-th exercise of the lesson.
func (c CourseSpec) ExerciseID(suffix string, i int) string {
	return c.LessonID(suffix) + models.IDSeparator + fmt.Sprintf("ex_%d", i)
}

// BuildLibrary builds an in-memory course library from the specs.
func BuildLibrary(specs ...CourseSpec) (*library.Library, error) {
	var courses []models.CourseManifest
	var lessons []models.LessonManifest
	var exercises []models.ExerciseManifest

	for _, spec := range specs {
		courses = append(courses, models.CourseManifest{
			ID:                  spec.ID,
			Name:                spec.ID,
			Dependencies:        spec.Dependencies,
			Superseded:          spec.Superseded,
			Metadata:            spec.Metadata,
			DefaultExerciseType: spec.DefaultExerciseType,
		})
		for _, lesson := range spec.Lessons {
			lessonID := spec.LessonID(lesson.Suffix)
			lessons = append(lessons, models.LessonManifest{
				ID:                  lessonID,
				CourseID:            spec.ID,
				Name:                lessonID,
				Dependencies:        lesson.Dependencies,
				Metadata:            lesson.Metadata,
				DefaultExerciseType: lesson.ExerciseType,
			})
			exerciseType := lesson.ExerciseType
			if exerciseType == "" {
				exerciseType = models.Procedural
			}
			for i := 0; i < lesson.NumExercises; i++ {
				exerciseID := spec.ExerciseID(lesson.Suffix, i)
				exercises = append(exercises, models.ExerciseManifest{
					ID:           exerciseID,
					LessonID:     lessonID,
					CourseID:     spec.ID,
					Name:         exerciseID,
					ExerciseType: exerciseType,
				})
			}
		}
	}

	return library.NewFromManifests(courses, lessons, exercises, zap.NewNop().Sugar())
}

// MemoryTrialLog is an in-memory trial log.
type MemoryTrialLog struct {
	mu     sync.Mutex
	trials map[string][]models.Trial
	nextID int64

	// FailReads makes Recent return a storage error, for testing recovery.
	FailReads bool
}

// NewMemoryTrialLog creates an empty trial log.
func NewMemoryTrialLog() *MemoryTrialLog {
	return &MemoryTrialLog{trials: make(map[string][]models.Trial)}
}

// Append stores the trial.
func (l *MemoryTrialLog) Append(ctx context.Context, trial *models.Trial) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	trial.ID = l.nextID
	l.trials[trial.ExerciseID] = append(l.trials[trial.ExerciseID], *trial)
	return nil
}

// Recent returns the most recent n trials in reverse-chronological order,
// breaking timestamp ties by insertion order.
func (l *MemoryTrialLog) Recent(ctx context.Context, exerciseID string, n int) ([]models.Trial, error) {
	if l.FailReads {
		return nil, fmt.Errorf("%w: trial log unavailable", models.ErrStorage)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	trials := append([]models.Trial(nil), l.trials[exerciseID]...)
	sort.SliceStable(trials, func(i, j int) bool {
		if trials[i].Timestamp != trials[j].Timestamp {
			return trials[i].Timestamp > trials[j].Timestamp
		}
		return trials[i].ID > trials[j].ID
	})
	if len(trials) > n {
		trials = trials[:n]
	}
	return trials, nil
}

// MemoryRewardLog is an in-memory reward log.
type MemoryRewardLog struct {
	mu      sync.Mutex
	rewards map[string][]models.UnitReward
	nextID  int64
}

// NewMemoryRewardLog creates an empty reward log.
func NewMemoryRewardLog() *MemoryRewardLog {
	return &MemoryRewardLog{rewards: make(map[string][]models.UnitReward)}
}

// Append stores the reward.
func (l *MemoryRewardLog) Append(ctx context.Context, reward *models.UnitReward) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	reward.ID = l.nextID
	l.rewards[reward.UnitID] = append(l.rewards[reward.UnitID], *reward)
	return nil
}

// Recent returns the most recent n rewards in reverse-chronological order.
func (l *MemoryRewardLog) Recent(ctx context.Context, unitID string, n int) ([]models.UnitReward, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rewards := append([]models.UnitReward(nil), l.rewards[unitID]...)
	sort.SliceStable(rewards, func(i, j int) bool {
		if rewards[i].Timestamp != rewards[j].Timestamp {
			return rewards[i].Timestamp > rewards[j].Timestamp
		}
		return rewards[i].ID > rewards[j].ID
	})
	if len(rewards) > n {
		rewards = rewards[:n]
	}
	return rewards, nil
}

// All returns every reward recorded for the unit, oldest first.
func (l *MemoryRewardLog) All(unitID string) []models.UnitReward {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.UnitReward(nil), l.rewards[unitID]...)
}

// MemoryBlacklist is an in-memory blacklist.
type MemoryBlacklist struct {
	mu    sync.Mutex
	units map[string]struct{}
}

// NewMemoryBlacklist creates an empty blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{units: make(map[string]struct{})}
}

// Contains reports whether the unit is blacklisted.
func (b *MemoryBlacklist) Contains(ctx context.Context, unitID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.units[unitID]
	return ok, nil
}

// Add inserts the unit into the blacklist.
func (b *MemoryBlacklist) Add(unitID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units[unitID] = struct{}{}
}

// Remove deletes the unit from the blacklist.
func (b *MemoryBlacklist) Remove(unitID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.units, unitID)
}

// MemoryReviewList is an in-memory review list.
type MemoryReviewList struct {
	mu    sync.Mutex
	units []string
}

// NewMemoryReviewList creates an empty review list.
func NewMemoryReviewList(units ...string) *MemoryReviewList {
	return &MemoryReviewList{units: units}
}

// All returns the units marked for review.
func (r *MemoryReviewList) All(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.units...), nil
}

// Add marks a unit for review.
func (r *MemoryReviewList) Add(unitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, unitID)
}
