// Package graph stores the dependency relationships between the units in the
// course library. The graph is built once at load time and is immutable
// afterwards; all lookups are read-only and safe for concurrent use.
package graph

import (
	"fmt"
	"sort"

	"github.com/example/trane/internal/intern"
	"github.com/example/trane/pkg/models"
)

// Graph is an arena of unit records keyed by interned handles. The four
// relations (dependencies, dependents, lessons, exercises) are stored as
// handle-indexed adjacency maps; dependents are derived by reversing
// dependencies when the graph is finalized.
type Graph struct {
	interner *intern.Table

	types        map[models.UnitID]models.UnitType
	dependencies map[models.UnitID]map[models.UnitID]struct{}
	dependents   map[models.UnitID]map[models.UnitID]struct{}
	weights      map[models.UnitID]map[models.UnitID]uint32

	lessons   map[models.UnitID][]models.UnitID // course -> ordered lessons
	exercises map[models.UnitID][]models.UnitID // lesson -> ordered exercises

	courseOf map[models.UnitID]models.UnitID // lesson -> course
	lessonOf map[models.UnitID]models.UnitID // exercise -> lesson

	// superseding maps a unit to the units that declare they supersede it.
	superseding map[models.UnitID]map[models.UnitID]struct{}

	metadata      map[models.UnitID]map[string][]string
	exerciseTypes map[models.UnitID]models.ExerciseType
	defaultTypes  map[models.UnitID]models.ExerciseType

	// implicitMastered holds units that were declared as dependencies but
	// never loaded. They are treated as having a score of 5.0.
	implicitMastered map[models.UnitID]struct{}

	finalized bool
}

// New creates an empty graph over the given intern table.
func New(interner *intern.Table) *Graph {
	return &Graph{
		interner:         interner,
		types:            make(map[models.UnitID]models.UnitType),
		dependencies:     make(map[models.UnitID]map[models.UnitID]struct{}),
		dependents:       make(map[models.UnitID]map[models.UnitID]struct{}),
		weights:          make(map[models.UnitID]map[models.UnitID]uint32),
		lessons:          make(map[models.UnitID][]models.UnitID),
		exercises:        make(map[models.UnitID][]models.UnitID),
		courseOf:         make(map[models.UnitID]models.UnitID),
		lessonOf:         make(map[models.UnitID]models.UnitID),
		superseding:      make(map[models.UnitID]map[models.UnitID]struct{}),
		metadata:         make(map[models.UnitID]map[string][]string),
		exerciseTypes:    make(map[models.UnitID]models.ExerciseType),
		defaultTypes:     make(map[models.UnitID]models.ExerciseType),
		implicitMastered: make(map[models.UnitID]struct{}),
	}
}

// Interner returns the intern table shared by the graph.
func (g *Graph) Interner() *intern.Table {
	return g.interner
}

// setType records the unit's type, failing if it was already recorded with a
// different one.
func (g *Graph) setType(h models.UnitID, t models.UnitType) error {
	existing, ok := g.types[h]
	if ok && existing != t {
		return fmt.Errorf("%w: unit %s declared as both %s and %s",
			models.ErrGraph, g.interner.ID(h), existing, t)
	}
	g.types[h] = t
	return nil
}

// AddCourse registers a course and its metadata.
func (g *Graph) AddCourse(m *models.CourseManifest) (models.UnitID, error) {
	if err := m.Verify(); err != nil {
		return models.NoUnit, err
	}
	h := g.interner.Intern(m.ID)
	if err := g.setType(h, models.UnitCourse); err != nil {
		return models.NoUnit, err
	}
	if _, ok := g.lessons[h]; !ok {
		g.lessons[h] = nil
	}
	if len(m.Metadata) > 0 {
		g.metadata[h] = m.Metadata
	}
	if m.DefaultExerciseType != "" {
		g.defaultTypes[h] = m.DefaultExerciseType
	}
	g.addDependencies(h, m.Dependencies, m.DependencyWeights)
	g.addSuperseded(h, m.Superseded)
	return h, nil
}

// AddLesson registers a lesson inside its course. The course is an implicit
// dependency of the lesson.
func (g *Graph) AddLesson(m *models.LessonManifest) (models.UnitID, error) {
	if err := m.Verify(); err != nil {
		return models.NoUnit, err
	}
	h := g.interner.Intern(m.ID)
	if err := g.setType(h, models.UnitLesson); err != nil {
		return models.NoUnit, err
	}
	course := g.interner.Intern(m.CourseID)
	if err := g.setType(course, models.UnitCourse); err != nil {
		return models.NoUnit, err
	}
	g.courseOf[h] = course
	g.lessons[course] = append(g.lessons[course], h)
	if len(m.Metadata) > 0 {
		g.metadata[h] = m.Metadata
	}
	if m.DefaultExerciseType != "" {
		g.defaultTypes[h] = m.DefaultExerciseType
	}
	g.addDependencies(h, m.Dependencies, m.DependencyWeights)
	g.addSuperseded(h, m.Superseded)
	return h, nil
}

// AddExercise registers an exercise inside its lesson.
func (g *Graph) AddExercise(m *models.ExerciseManifest) (models.UnitID, error) {
	if err := m.Verify(); err != nil {
		return models.NoUnit, err
	}
	h := g.interner.Intern(m.ID)
	if err := g.setType(h, models.UnitExercise); err != nil {
		return models.NoUnit, err
	}
	lesson := g.interner.Intern(m.LessonID)
	if err := g.setType(lesson, models.UnitLesson); err != nil {
		return models.NoUnit, err
	}
	g.lessonOf[h] = lesson
	g.exercises[lesson] = append(g.exercises[lesson], h)
	if m.ExerciseType != "" {
		g.exerciseTypes[h] = m.ExerciseType
	}
	return h, nil
}

// addDependencies records dependency edges and their weights.
func (g *Graph) addDependencies(h models.UnitID, deps []string, depWeights map[string]uint32) {
	for _, dep := range deps {
		depHandle := g.interner.Intern(dep)
		if g.dependencies[h] == nil {
			g.dependencies[h] = make(map[models.UnitID]struct{})
		}
		g.dependencies[h][depHandle] = struct{}{}
		if w, ok := depWeights[dep]; ok && w > 0 {
			if g.weights[h] == nil {
				g.weights[h] = make(map[models.UnitID]uint32)
			}
			g.weights[h][depHandle] = w
		}
	}
}

// addSuperseded records that h supersedes each of the given units.
func (g *Graph) addSuperseded(h models.UnitID, superseded []string) {
	for _, id := range superseded {
		target := g.interner.Intern(id)
		if g.superseding[target] == nil {
			g.superseding[target] = make(map[models.UnitID]struct{})
		}
		g.superseding[target][h] = struct{}{}
	}
}

// Finalize derives the dependents relation, demotes unresolved dependencies
// to implicit-mastered, and checks the graph for cycles. It must be called
// once after all units have been added; the graph is immutable afterwards.
// The returned list contains the IDs of the demoted dependencies so the
// caller can surface a warning.
func (g *Graph) Finalize() ([]string, error) {
	var demoted []string
	for unit, deps := range g.dependencies {
		for dep := range deps {
			if _, ok := g.types[dep]; !ok {
				g.implicitMastered[dep] = struct{}{}
				demoted = append(demoted, g.interner.ID(dep))
			}
			if g.dependents[dep] == nil {
				g.dependents[dep] = make(map[models.UnitID]struct{})
			}
			g.dependents[dep][unit] = struct{}{}
		}
	}
	sort.Strings(demoted)

	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	g.finalized = true
	return demoted, nil
}

// checkCycles performs a depth-first search over the dependency relation and
// fails if any path revisits a unit.
func (g *Graph) checkCycles() error {
	const (
		unvisited = 0
		inPath    = 1
		done      = 2
	)
	state := make(map[models.UnitID]int, len(g.types))

	var visit func(h models.UnitID) error
	visit = func(h models.UnitID) error {
		switch state[h] {
		case inPath:
			return fmt.Errorf("%w: cycle in dependency graph at unit %s",
				models.ErrGraph, g.interner.ID(h))
		case done:
			return nil
		}
		state[h] = inPath
		for dep := range g.dependencies[h] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[h] = done
		return nil
	}

	for h := range g.dependencies {
		if err := visit(h); err != nil {
			return err
		}
	}
	return nil
}

// UnitType returns the type of the given unit.
func (g *Graph) UnitType(h models.UnitID) (models.UnitType, bool) {
	t, ok := g.types[h]
	return t, ok
}

// Exists reports whether the unit was loaded into the library. Units that
// were only referenced as dependencies do not exist.
func (g *Graph) Exists(h models.UnitID) bool {
	_, ok := g.types[h]
	if !ok {
		return false
	}
	_, implicit := g.implicitMastered[h]
	return !implicit
}

// ImplicitlyMastered reports whether the unit was demoted at load time
// because it did not resolve to a known unit.
func (g *Graph) ImplicitlyMastered(h models.UnitID) bool {
	_, ok := g.implicitMastered[h]
	return ok
}

// Dependencies returns the dependencies of the given unit.
func (g *Graph) Dependencies(h models.UnitID) []models.UnitID {
	return keys(g.dependencies[h])
}

// Dependents returns the units that depend on the given unit.
func (g *Graph) Dependents(h models.UnitID) []models.UnitID {
	return keys(g.dependents[h])
}

// DependencyWeight returns the weight of the dependency edge from unit to
// dep. Edges without an explicit weight have weight 1.
func (g *Graph) DependencyWeight(unit, dep models.UnitID) uint32 {
	if w, ok := g.weights[unit][dep]; ok {
		return w
	}
	return 1
}

// Lessons returns the lessons of the given course in load order.
func (g *Graph) Lessons(course models.UnitID) []models.UnitID {
	return g.lessons[course]
}

// Exercises returns the exercises of the given lesson in load order.
func (g *Graph) Exercises(lesson models.UnitID) []models.UnitID {
	return g.exercises[lesson]
}

// StartingLessons returns the lessons in the course that do not depend on any
// other lesson in the same course.
func (g *Graph) StartingLessons(course models.UnitID) []models.UnitID {
	inCourse := make(map[models.UnitID]struct{}, len(g.lessons[course]))
	for _, lesson := range g.lessons[course] {
		inCourse[lesson] = struct{}{}
	}

	var starting []models.UnitID
	for _, lesson := range g.lessons[course] {
		dependsOnSibling := false
		for dep := range g.dependencies[lesson] {
			if _, ok := inCourse[dep]; ok {
				dependsOnSibling = true
				break
			}
		}
		if !dependsOnSibling {
			starting = append(starting, lesson)
		}
	}
	return starting
}

// CourseOf returns the course the given lesson belongs to.
func (g *Graph) CourseOf(lesson models.UnitID) models.UnitID {
	return g.courseOf[lesson]
}

// LessonOf returns the lesson the given exercise belongs to.
func (g *Graph) LessonOf(exercise models.UnitID) models.UnitID {
	return g.lessonOf[exercise]
}

// Superseding returns the units that declare they supersede the given unit.
func (g *Graph) Superseding(h models.UnitID) []models.UnitID {
	return keys(g.superseding[h])
}

// Metadata returns the metadata of the given unit.
func (g *Graph) Metadata(h models.UnitID) map[string][]string {
	return g.metadata[h]
}

// ExerciseType returns the type of the given exercise, falling back to the
// default type of its lesson and course, and finally to procedural.
func (g *Graph) ExerciseType(exercise models.UnitID) models.ExerciseType {
	if t, ok := g.exerciseTypes[exercise]; ok {
		return t
	}
	lesson := g.lessonOf[exercise]
	if t, ok := g.defaultTypes[lesson]; ok {
		return t
	}
	if t, ok := g.defaultTypes[g.courseOf[lesson]]; ok {
		return t
	}
	return models.Procedural
}

// DefaultExerciseType returns the default exercise type declared by a lesson
// or course manifest, if any.
func (g *Graph) DefaultExerciseType(h models.UnitID) (models.ExerciseType, bool) {
	t, ok := g.defaultTypes[h]
	return t, ok
}

// Roots returns the courses that have no dependency inside the loaded
// library. They are the entry points for a search of the entire graph.
func (g *Graph) Roots() []models.UnitID {
	var roots []models.UnitID
	for h, t := range g.types {
		if t != models.UnitCourse || !g.Exists(h) {
			continue
		}
		hasLoadedDep := false
		for dep := range g.dependencies[h] {
			if g.Exists(dep) {
				hasLoadedDep = true
				break
			}
		}
		if !hasLoadedDep {
			roots = append(roots, h)
		}
	}
	return roots
}

// DependenciesAtDepth returns the unit itself together with the dependencies
// found by walking down at most the given number of levels.
func (g *Graph) DependenciesAtDepth(h models.UnitID, depth int) []models.UnitID {
	if depth <= 0 {
		return []models.UnitID{h}
	}
	seen := map[models.UnitID]struct{}{h: {}}
	frontier := []models.UnitID{h}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []models.UnitID
		for _, unit := range frontier {
			for dep := range g.dependencies[unit] {
				if _, ok := seen[dep]; ok {
					continue
				}
				seen[dep] = struct{}{}
				next = append(next, dep)
			}
		}
		frontier = next
	}
	return keys(seen)
}

// keys returns the keys of a handle set in ascending handle order so that
// callers see a deterministic ordering.
func keys(set map[models.UnitID]struct{}) []models.UnitID {
	if len(set) == 0 {
		return nil
	}
	out := make([]models.UnitID, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
