package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trane/internal/intern"
	"github.com/example/trane/pkg/models"
)

// buildGraph creates a graph with two courses, where course b depends on
// course a and each course has one lesson with two exercises.
func buildGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(intern.NewTable())

	_, err := g.AddCourse(&models.CourseManifest{ID: "a", Name: "a"})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "b", Name: "b", Dependencies: []string{"a"}})
	require.NoError(t, err)

	for _, course := range []string{"a", "b"} {
		lessonID := course + "::l_0"
		_, err = g.AddLesson(&models.LessonManifest{ID: lessonID, CourseID: course, Name: lessonID})
		require.NoError(t, err)
		for _, exercise := range []string{"::ex_0", "::ex_1"} {
			_, err = g.AddExercise(&models.ExerciseManifest{
				ID: lessonID + exercise, LessonID: lessonID, CourseID: course,
			})
			require.NoError(t, err)
		}
	}

	demoted, err := g.Finalize()
	require.NoError(t, err)
	require.Empty(t, demoted)
	return g
}

func TestGraphRelations(t *testing.T) {
	g := buildGraph(t)
	interner := g.Interner()
	a := interner.Lookup("a")
	b := interner.Lookup("b")
	lessonA := interner.Lookup("a::l_0")
	exercise := interner.Lookup("a::l_0::ex_0")

	kind, ok := g.UnitType(a)
	require.True(t, ok)
	assert.Equal(t, models.UnitCourse, kind)
	kind, _ = g.UnitType(lessonA)
	assert.Equal(t, models.UnitLesson, kind)
	kind, _ = g.UnitType(exercise)
	assert.Equal(t, models.UnitExercise, kind)

	assert.Equal(t, []models.UnitID{a}, g.Dependencies(b))
	assert.Equal(t, []models.UnitID{b}, g.Dependents(a))
	assert.Equal(t, []models.UnitID{lessonA}, g.Lessons(a))
	assert.Len(t, g.Exercises(lessonA), 2)
	assert.Equal(t, a, g.CourseOf(lessonA))
	assert.Equal(t, lessonA, g.LessonOf(exercise))
}

func TestGraphRoots(t *testing.T) {
	g := buildGraph(t)
	roots := g.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "a", g.Interner().ID(roots[0]))
}

func TestStartingLessons(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "c"})
	require.NoError(t, err)
	_, err = g.AddLesson(&models.LessonManifest{ID: "c::l_0", CourseID: "c"})
	require.NoError(t, err)
	_, err = g.AddLesson(&models.LessonManifest{
		ID: "c::l_1", CourseID: "c", Dependencies: []string{"c::l_0"},
	})
	require.NoError(t, err)
	_, err = g.Finalize()
	require.NoError(t, err)

	starting := g.StartingLessons(g.Interner().Lookup("c"))
	require.Len(t, starting, 1)
	assert.Equal(t, "c::l_0", g.Interner().ID(starting[0]))
}

func TestCycleDetection(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "a", Dependencies: []string{"b"}})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "b", Dependencies: []string{"a"}})
	require.NoError(t, err)

	_, err = g.Finalize()
	assert.ErrorIs(t, err, models.ErrGraph)
}

func TestMissingDependencyDemoted(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "a", Dependencies: []string{"missing"}})
	require.NoError(t, err)

	demoted, err := g.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"missing"}, demoted)

	missing := g.Interner().Lookup("missing")
	assert.True(t, g.ImplicitlyMastered(missing))
	assert.False(t, g.Exists(missing))

	// A course whose only dependency is missing is still a root.
	roots := g.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "a", g.Interner().ID(roots[0]))
}

func TestSupersedingRelation(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "old"})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "new", Superseded: []string{"old"}})
	require.NoError(t, err)
	_, err = g.Finalize()
	require.NoError(t, err)

	superseding := g.Superseding(g.Interner().Lookup("old"))
	require.Len(t, superseding, 1)
	assert.Equal(t, "new", g.Interner().ID(superseding[0]))
	assert.Empty(t, g.Superseding(g.Interner().Lookup("new")))
}

func TestDependencyWeights(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{
		ID:                "c",
		Dependencies:      []string{"a", "b"},
		DependencyWeights: map[string]uint32{"a": 3},
	})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "a"})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "b"})
	require.NoError(t, err)
	_, err = g.Finalize()
	require.NoError(t, err)

	c := g.Interner().Lookup("c")
	assert.Equal(t, uint32(3), g.DependencyWeight(c, g.Interner().Lookup("a")))
	assert.Equal(t, uint32(1), g.DependencyWeight(c, g.Interner().Lookup("b")))
}

func TestDependenciesAtDepth(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "a"})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "b", Dependencies: []string{"a"}})
	require.NoError(t, err)
	_, err = g.AddCourse(&models.CourseManifest{ID: "c", Dependencies: []string{"b"}})
	require.NoError(t, err)
	_, err = g.Finalize()
	require.NoError(t, err)

	c := g.Interner().Lookup("c")
	atOne := g.DependenciesAtDepth(c, 1)
	assert.Len(t, atOne, 2) // c and b
	atTwo := g.DependenciesAtDepth(c, 2)
	assert.Len(t, atTwo, 3) // c, b, and a
}

func TestConflictingUnitType(t *testing.T) {
	g := New(intern.NewTable())
	_, err := g.AddCourse(&models.CourseManifest{ID: "a"})
	require.NoError(t, err)
	_, err = g.AddLesson(&models.LessonManifest{ID: "a::l", CourseID: "a"})
	require.NoError(t, err)

	// Registering the lesson's ID as a course must fail.
	_, err = g.AddCourse(&models.CourseManifest{ID: "a::l"})
	assert.ErrorIs(t, err, models.ErrGraph)
}
