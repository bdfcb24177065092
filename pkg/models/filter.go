package models

// ExerciseFilter narrows the set of units the scheduler traverses when
// building a batch. Exactly one of the concrete types below is passed to
// GetExerciseBatch; a nil filter searches the entire graph.
type ExerciseFilter interface {
	isExerciseFilter()
}

// CourseFilter restricts the search to the given courses.
type CourseFilter struct {
	CourseIDs []string
}

// LessonFilter restricts the search to the given lessons.
type LessonFilter struct {
	LessonIDs []string
}

// MetadataFilter restricts the search to courses and lessons that pass the
// given key-value filter. Units that do not pass are treated as mastered so
// the search can continue through them.
type MetadataFilter struct {
	Filter *KeyValueFilter
}

// ReviewListFilter restricts the search to the units in the review list.
type ReviewListFilter struct{}

// DependentsFilter starts the search at the given units and traverses their
// dependents.
type DependentsFilter struct {
	UnitIDs []string
}

// DependenciesFilter starts the search at the given units and their
// dependencies, found by walking down the given number of levels.
type DependenciesFilter struct {
	UnitIDs []string
	Depth   int
}

func (CourseFilter) isExerciseFilter()       {}
func (LessonFilter) isExerciseFilter()       {}
func (MetadataFilter) isExerciseFilter()     {}
func (ReviewListFilter) isExerciseFilter()   {}
func (DependentsFilter) isExerciseFilter()   {}
func (DependenciesFilter) isExerciseFilter() {}

// FilterOp combines the results of the children of a key-value filter node.
type FilterOp string

const (
	// OpAll requires all child filters to pass.
	OpAll FilterOp = "all"
	// OpAny requires at least one child filter to pass.
	OpAny FilterOp = "any"
)

// FilterScope selects which metadata a leaf filter is applied to.
type FilterScope string

const (
	// ScopeCourse applies the filter to course metadata.
	ScopeCourse FilterScope = "course"
	// ScopeLesson applies the filter to lesson metadata.
	ScopeLesson FilterScope = "lesson"
)

// KeyValueFilter is a tree of predicates over course and lesson metadata.
// Leaf nodes match a single key-value pair in the metadata of the given
// scope; inner nodes combine their children with the All or Any operator.
type KeyValueFilter struct {
	// Op is set on inner nodes, together with Filters.
	Op      FilterOp
	Filters []*KeyValueFilter

	// Scope, Key, and Value are set on leaf nodes. Exclude inverts the match.
	Scope   FilterScope
	Key     string
	Value   string
	Exclude bool
}

// matches reports whether the metadata contains the key-value pair.
func matches(metadata map[string][]string, key, value string) bool {
	for _, v := range metadata[key] {
		if v == value {
			return true
		}
	}
	return false
}

// passes evaluates the filter against the metadata of a course and,
// optionally, a lesson in it. A nil lesson metadata map causes lesson-scoped
// leaves to fail unless they are exclusions.
func (f *KeyValueFilter) passes(courseMeta, lessonMeta map[string][]string) bool {
	if f == nil {
		return true
	}
	if len(f.Filters) > 0 {
		if f.Op == OpAny {
			for _, child := range f.Filters {
				if child.passes(courseMeta, lessonMeta) {
					return true
				}
			}
			return false
		}
		for _, child := range f.Filters {
			if !child.passes(courseMeta, lessonMeta) {
				return false
			}
		}
		return true
	}

	var matched bool
	switch f.Scope {
	case ScopeCourse:
		matched = matches(courseMeta, f.Key, f.Value)
	case ScopeLesson:
		matched = matches(lessonMeta, f.Key, f.Value)
	}
	if f.Exclude {
		return !matched
	}
	return matched
}

// PassesCourse reports whether a course with the given metadata passes the
// filter. Lesson-scoped leaves are ignored so that a course is traversed if
// any of its lessons could pass.
func (f *KeyValueFilter) PassesCourse(courseMeta map[string][]string) bool {
	if f == nil {
		return true
	}
	if len(f.Filters) > 0 {
		if f.Op == OpAny {
			for _, child := range f.Filters {
				if child.PassesCourse(courseMeta) {
					return true
				}
			}
			return false
		}
		for _, child := range f.Filters {
			if !child.PassesCourse(courseMeta) {
				return false
			}
		}
		return true
	}
	if f.Scope == ScopeLesson {
		// Lesson leaves cannot be decided at the course level.
		return true
	}
	matched := matches(courseMeta, f.Key, f.Value)
	if f.Exclude {
		return !matched
	}
	return matched
}

// PassesLesson reports whether a lesson with the given metadata, inside a
// course with the given metadata, passes the filter.
func (f *KeyValueFilter) PassesLesson(courseMeta, lessonMeta map[string][]string) bool {
	return f.passes(courseMeta, lessonMeta)
}
