package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/trane/pkg/models"
)

func nopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestNewFromManifests(t *testing.T) {
	lib, err := NewFromManifests(
		[]models.CourseManifest{{ID: "a"}, {ID: "b", Dependencies: []string{"a"}}},
		[]models.LessonManifest{{ID: "a::l_0", CourseID: "a"}},
		[]models.ExerciseManifest{{ID: "a::l_0::ex_0", LessonID: "a::l_0", CourseID: "a"}},
		nopLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, lib.CourseIDs())
	assert.Equal(t, 1, lib.NumExercises())

	manifest, err := lib.ExerciseManifest("a::l_0::ex_0")
	require.NoError(t, err)
	assert.Equal(t, "a::l_0", manifest.LessonID)

	_, err = lib.ExerciseManifest("missing")
	assert.ErrorIs(t, err, models.ErrGraph)
	_, err = lib.CourseManifest("missing")
	assert.ErrorIs(t, err, models.ErrGraph)
	_, err = lib.LessonManifest("missing")
	assert.ErrorIs(t, err, models.ErrGraph)
}

func TestNewFromManifestsRejectsCycle(t *testing.T) {
	_, err := NewFromManifests(
		[]models.CourseManifest{
			{ID: "a", Dependencies: []string{"b"}},
			{ID: "b", Dependencies: []string{"a"}},
		}, nil, nil, nopLogger())
	assert.ErrorIs(t, err, models.ErrGraph)
}

func TestNewFromManifestsRejectsBadPrefix(t *testing.T) {
	_, err := NewFromManifests(
		[]models.CourseManifest{{ID: "a"}},
		[]models.LessonManifest{{ID: "other::l_0", CourseID: "a"}},
		nil, nopLogger())
	assert.ErrorIs(t, err, models.ErrGraph)
}

func TestNewFromManifestsRejectsOrphans(t *testing.T) {
	_, err := NewFromManifests(
		nil,
		[]models.LessonManifest{{ID: "a::l_0", CourseID: "a"}},
		nil, nopLogger())
	assert.ErrorIs(t, err, models.ErrGraph)

	_, err = NewFromManifests(
		[]models.CourseManifest{{ID: "a"}},
		nil,
		[]models.ExerciseManifest{{ID: "a::l_0::ex_0", LessonID: "a::l_0"}},
		nopLogger())
	assert.ErrorIs(t, err, models.ErrGraph)
}

func TestMissingDependencyLoads(t *testing.T) {
	lib, err := NewFromManifests(
		[]models.CourseManifest{{ID: "a", Dependencies: []string{"not::loaded"}}},
		nil, nil, nopLogger())
	require.NoError(t, err)
	missing := lib.Graph().Interner().Lookup("not::loaded")
	assert.True(t, lib.Graph().ImplicitlyMastered(missing))
}

// writeFile writes a manifest file, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadFromDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "guitar", CourseManifestFile),
		"id: music::guitar\nname: Guitar\nmetadata:\n  instrument: [guitar]\n")
	writeFile(t, filepath.Join(root, "guitar", "chords", LessonManifestFile),
		"id: music::guitar::chords\ncourse_id: music::guitar\nname: Chords\n")
	writeFile(t, filepath.Join(root, "guitar", "chords", "major", ExerciseManifestFile),
		"id: music::guitar::chords::major\nlesson_id: music::guitar::chords\n"+
			"course_id: music::guitar\nname: Major chords\nexercise_type: procedural\n")

	lib, err := LoadFromDir(root, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"music::guitar"}, lib.CourseIDs())
	assert.Equal(t, 1, lib.NumExercises())

	graph := lib.Graph()
	course := graph.Interner().Lookup("music::guitar")
	lesson := graph.Interner().Lookup("music::guitar::chords")
	exercise := graph.Interner().Lookup("music::guitar::chords::major")
	assert.Equal(t, []models.UnitID{lesson}, graph.Lessons(course))
	assert.Equal(t, []models.UnitID{exercise}, graph.Exercises(lesson))
	assert.Equal(t, models.Procedural, graph.ExerciseType(exercise))
	assert.Equal(t, map[string][]string{"instrument": {"guitar"}}, graph.Metadata(course))
}

func TestLoadFromDirBadYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad", CourseManifestFile), "id: [unclosed\n")
	_, err := LoadFromDir(root, nopLogger())
	assert.Error(t, err)
}
