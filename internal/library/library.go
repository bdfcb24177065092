// Package library loads course manifests from disk and builds the unit
// graph. A course library is a directory tree: each course directory holds a
// course_manifest.yaml, lesson directories hold a lesson_manifest.yaml, and
// exercise manifests sit in exercise_manifest.yaml files below their lesson.
package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/example/trane/internal/graph"
	"github.com/example/trane/internal/intern"
	"github.com/example/trane/pkg/models"
)

// Manifest file names recognized by the loader.
const (
	CourseManifestFile   = "course_manifest.yaml"
	LessonManifestFile   = "lesson_manifest.yaml"
	ExerciseManifestFile = "exercise_manifest.yaml"
)

// Library holds the loaded manifests and the unit graph built from them.
type Library struct {
	graph     *graph.Graph
	courses   map[string]*models.CourseManifest
	lessons   map[string]*models.LessonManifest
	exercises map[string]*models.ExerciseManifest
}

// Graph returns the unit graph.
func (l *Library) Graph() *graph.Graph {
	return l.graph
}

// CourseManifest returns the manifest of the given course.
func (l *Library) CourseManifest(id string) (*models.CourseManifest, error) {
	m, ok := l.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown course %s", models.ErrGraph, id)
	}
	return m, nil
}

// LessonManifest returns the manifest of the given lesson.
func (l *Library) LessonManifest(id string) (*models.LessonManifest, error) {
	m, ok := l.lessons[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown lesson %s", models.ErrGraph, id)
	}
	return m, nil
}

// ExerciseManifest returns the manifest of the given exercise.
func (l *Library) ExerciseManifest(id string) (*models.ExerciseManifest, error) {
	m, ok := l.exercises[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown exercise %s", models.ErrGraph, id)
	}
	return m, nil
}

// CourseIDs returns the IDs of all loaded courses in sorted order.
func (l *Library) CourseIDs() []string {
	ids := make([]string, 0, len(l.courses))
	for id := range l.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NumExercises returns the number of loaded exercises.
func (l *Library) NumExercises() int {
	return len(l.exercises)
}

// NewFromManifests builds a library and its graph from in-memory manifests.
// Dependencies that do not resolve to a loaded unit are demoted to
// implicit-mastered with a warning instead of failing the load; a dependency
// cycle fails the load with ErrGraph.
func NewFromManifests(courses []models.CourseManifest, lessons []models.LessonManifest,
	exercises []models.ExerciseManifest, logger *zap.SugaredLogger) (*Library, error) {
	g := graph.New(intern.NewTable())
	lib := &Library{
		graph:     g,
		courses:   make(map[string]*models.CourseManifest, len(courses)),
		lessons:   make(map[string]*models.LessonManifest, len(lessons)),
		exercises: make(map[string]*models.ExerciseManifest, len(exercises)),
	}

	// Load courses first, then lessons, then exercises, each in ID order so
	// the graph's child orderings are deterministic.
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	for i := range courses {
		m := &courses[i]
		if _, err := g.AddCourse(m); err != nil {
			return nil, err
		}
		lib.courses[m.ID] = m
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].ID < lessons[j].ID })
	for i := range lessons {
		m := &lessons[i]
		if _, ok := lib.courses[m.CourseID]; !ok {
			return nil, fmt.Errorf("%w: lesson %s references missing course %s",
				models.ErrGraph, m.ID, m.CourseID)
		}
		if _, err := g.AddLesson(m); err != nil {
			return nil, err
		}
		lib.lessons[m.ID] = m
	}
	sort.Slice(exercises, func(i, j int) bool { return exercises[i].ID < exercises[j].ID })
	for i := range exercises {
		m := &exercises[i]
		if _, ok := lib.lessons[m.LessonID]; !ok {
			return nil, fmt.Errorf("%w: exercise %s references missing lesson %s",
				models.ErrGraph, m.ID, m.LessonID)
		}
		if _, err := g.AddExercise(m); err != nil {
			return nil, err
		}
		lib.exercises[m.ID] = m
	}

	demoted, err := g.Finalize()
	if err != nil {
		return nil, err
	}
	for _, id := range demoted {
		logger.Warnw("dependency does not resolve to a known unit, treating as mastered",
			"unit", id)
	}
	return lib, nil
}

// LoadFromDir walks the course directory tree, parses every manifest, and
// builds the library.
func LoadFromDir(root string, logger *zap.SugaredLogger) (*Library, error) {
	var courses []models.CourseManifest
	var lessons []models.LessonManifest
	var exercises []models.ExerciseManifest

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch d.Name() {
		case CourseManifestFile:
			var m models.CourseManifest
			if err := readManifest(path, &m); err != nil {
				return err
			}
			courses = append(courses, m)
		case LessonManifestFile:
			var m models.LessonManifest
			if err := readManifest(path, &m); err != nil {
				return err
			}
			lessons = append(lessons, m)
		case ExerciseManifestFile:
			var m models.ExerciseManifest
			if err := readManifest(path, &m); err != nil {
				return err
			}
			exercises = append(exercises, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk course library %s: %v", root, err)
	}

	logger.Infow("loaded course library",
		"root", root, "courses", len(courses), "lessons", len(lessons), "exercises", len(exercises))
	return NewFromManifests(courses, lessons, exercises, logger)
}

// readManifest parses a single YAML manifest file.
func readManifest(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %v", path, err)
	}
	return nil
}
