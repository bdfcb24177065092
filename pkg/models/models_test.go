package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasteryWindowInWindow(t *testing.T) {
	window := MasteryWindow{Percentage: 0.2, Low: 1.5, High: 2.5}
	assert.True(t, window.InWindow(1.5))
	assert.True(t, window.InWindow(2.49))
	assert.False(t, window.InWindow(2.5))
	assert.False(t, window.InWindow(1.49))

	// The top window also contains the maximum score.
	top := MasteryWindow{Percentage: 0.1, Low: 4.5, High: 5.0}
	assert.True(t, top.InWindow(5.0))
	assert.True(t, top.InWindow(4.5))
	assert.False(t, top.InWindow(4.49))
}

func TestValidateIDPrefix(t *testing.T) {
	assert.NoError(t, ValidateIDPrefix("music::guitar", "music::guitar::chords"))
	assert.ErrorIs(t, ValidateIDPrefix("music::guitar", "music::piano::scales"), ErrGraph)
	// The child must extend the parent by at least one segment.
	assert.ErrorIs(t, ValidateIDPrefix("music::guitar", "music::guitar"), ErrGraph)
}

func TestManifestVerify(t *testing.T) {
	course := CourseManifest{ID: "a"}
	assert.NoError(t, course.Verify())
	assert.Error(t, (&CourseManifest{}).Verify())

	lesson := LessonManifest{ID: "a::l", CourseID: "a"}
	assert.NoError(t, lesson.Verify())
	assert.Error(t, (&LessonManifest{ID: "a::l"}).Verify())

	exercise := ExerciseManifest{ID: "a::l::e", LessonID: "a::l", ExerciseType: Procedural}
	assert.NoError(t, exercise.Verify())
	bad := ExerciseManifest{ID: "a::l::e", LessonID: "a::l", ExerciseType: "imperative"}
	assert.Error(t, bad.Verify())
}

func TestMasteryScore(t *testing.T) {
	assert.True(t, ScoreOne.Valid())
	assert.True(t, ScoreFive.Valid())
	assert.False(t, MasteryScore(0).Valid())
	assert.False(t, MasteryScore(6).Valid())
	assert.Equal(t, float32(4.0), ScoreFour.Float())
}

func TestKeyValueFilterLeaves(t *testing.T) {
	courseMeta := map[string][]string{"instrument": {"guitar", "bass"}}
	lessonMeta := map[string][]string{"technique": {"picking"}}

	courseLeaf := &KeyValueFilter{Scope: ScopeCourse, Key: "instrument", Value: "guitar"}
	assert.True(t, courseLeaf.PassesCourse(courseMeta))
	assert.True(t, courseLeaf.PassesLesson(courseMeta, lessonMeta))
	assert.False(t, courseLeaf.PassesCourse(map[string][]string{"instrument": {"piano"}}))

	lessonLeaf := &KeyValueFilter{Scope: ScopeLesson, Key: "technique", Value: "picking"}
	assert.True(t, lessonLeaf.PassesLesson(courseMeta, lessonMeta))
	assert.False(t, lessonLeaf.PassesLesson(courseMeta, nil))
	// Lesson leaves cannot be decided at the course level.
	assert.True(t, lessonLeaf.PassesCourse(courseMeta))

	excluded := &KeyValueFilter{Scope: ScopeCourse, Key: "instrument", Value: "guitar", Exclude: true}
	assert.False(t, excluded.PassesCourse(courseMeta))
	assert.True(t, excluded.PassesCourse(map[string][]string{"instrument": {"piano"}}))
}

func TestKeyValueFilterCombinators(t *testing.T) {
	courseMeta := map[string][]string{"instrument": {"guitar"}, "level": {"beginner"}}

	all := &KeyValueFilter{Op: OpAll, Filters: []*KeyValueFilter{
		{Scope: ScopeCourse, Key: "instrument", Value: "guitar"},
		{Scope: ScopeCourse, Key: "level", Value: "beginner"},
	}}
	assert.True(t, all.PassesCourse(courseMeta))

	anyOf := &KeyValueFilter{Op: OpAny, Filters: []*KeyValueFilter{
		{Scope: ScopeCourse, Key: "instrument", Value: "piano"},
		{Scope: ScopeCourse, Key: "level", Value: "beginner"},
	}}
	assert.True(t, anyOf.PassesCourse(courseMeta))

	none := &KeyValueFilter{Op: OpAny, Filters: []*KeyValueFilter{
		{Scope: ScopeCourse, Key: "instrument", Value: "piano"},
		{Scope: ScopeCourse, Key: "level", Value: "expert"},
	}}
	assert.False(t, none.PassesCourse(courseMeta))

	// A nil filter passes everything.
	var nilFilter *KeyValueFilter
	assert.True(t, nilFilter.PassesCourse(courseMeta))
	assert.True(t, nilFilter.PassesLesson(courseMeta, nil))
}
