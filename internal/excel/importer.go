// Package excel imports courses from spreadsheets. Each sheet becomes a
// lesson and each row becomes an exercise, which makes it easy to author
// large drill courses outside the manifest format.
package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/example/trane/pkg/models"
)

// ImportConfig defines the import configuration.
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	CourseID          string // ID of the course to create
	CourseName        string // Human-readable name of the course
	NameColumn        string // Column with the exercise name
	DescriptionColumn string // Column with the exercise description
	TypeColumn        string // Column with the exercise type
	SkipHeader        bool   // Not read by the importer; StartRow alone decides which leading rows are skipped
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		NameColumn:        "A",
		DescriptionColumn: "B",
		TypeColumn:        "C",
		SkipHeader:        true,
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	TotalProcessed   int
	LessonsCreated   int
	ExercisesCreated int
	Skipped          int
	Errors           []string
}

// Course is the set of manifests produced by an import.
type Course struct {
	Manifest  models.CourseManifest
	Lessons   []models.LessonManifest
	Exercises []models.ExerciseManifest
}

// ImportCourse imports a course from an Excel or CSV file. CSV files produce
// a single lesson; Excel files produce one lesson per sheet.
func ImportCourse(config ImportConfig) (*Course, *ImportResult, error) {
	if config.CourseID == "" {
		return nil, nil, fmt.Errorf("course ID is required")
	}

	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(config)
	}
	return importFromExcel(config)
}

// importFromExcel imports a course from an Excel file.
func importFromExcel(config ImportConfig) (*Course, *ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	course := &Course{
		Manifest: models.CourseManifest{
			ID:   config.CourseID,
			Name: config.CourseName,
		},
	}
	result := &ImportResult{Errors: make([]string, 0)}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Sheet %s: %v", sheet, err))
			continue
		}

		lessonID := config.CourseID + models.IDSeparator + slugify(sheet)
		lesson := models.LessonManifest{
			ID:       lessonID,
			CourseID: config.CourseID,
			Name:     sheet,
		}
		exercisesBefore := result.ExercisesCreated

		for i, row := range rows {
			// Skip header rows.
			if i < config.StartRow-1 {
				continue
			}
			result.TotalProcessed++

			exercise, err := rowToExercise(row, config, lessonID, result.ExercisesCreated)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("Sheet %s row %d: %v", sheet, i+1, err))
				continue
			}
			course.Exercises = append(course.Exercises, exercise)
			result.ExercisesCreated++
		}

		// Skip sheets that produced no exercises.
		if result.ExercisesCreated > exercisesBefore {
			course.Lessons = append(course.Lessons, lesson)
			result.LessonsCreated++
		}
	}

	return course, result, nil
}

// importFromCSV imports a single-lesson course from a CSV file.
func importFromCSV(config ImportConfig) (*Course, *ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	lessonName := strings.TrimSuffix(filepath.Base(config.FilePath), filepath.Ext(config.FilePath))
	lessonID := config.CourseID + models.IDSeparator + slugify(lessonName)
	course := &Course{
		Manifest: models.CourseManifest{
			ID:   config.CourseID,
			Name: config.CourseName,
		},
		Lessons: []models.LessonManifest{{
			ID:       lessonID,
			CourseID: config.CourseID,
			Name:     lessonName,
		}},
	}
	result := &ImportResult{LessonsCreated: 1, Errors: make([]string, 0)}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV file: %v", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++

		exercise, err := rowToExercise(row, config, lessonID, result.ExercisesCreated)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		course.Exercises = append(course.Exercises, exercise)
		result.ExercisesCreated++
	}

	return course, result, nil
}

// rowToExercise builds an exercise manifest from a spreadsheet row.
func rowToExercise(row []string, config ImportConfig, lessonID string, index int) (models.ExerciseManifest, error) {
	name := cellValue(row, config.NameColumn)
	if name == "" {
		return models.ExerciseManifest{}, fmt.Errorf("empty exercise name")
	}

	exerciseType := models.ExerciseType(strings.ToLower(cellValue(row, config.TypeColumn)))
	if exerciseType != "" && exerciseType != models.Declarative && exerciseType != models.Procedural {
		return models.ExerciseManifest{}, fmt.Errorf("unknown exercise type %q", exerciseType)
	}

	return models.ExerciseManifest{
		ID:           fmt.Sprintf("%s%sex_%d", lessonID, models.IDSeparator, index),
		LessonID:     lessonID,
		CourseID:     config.CourseID,
		Name:         name,
		Description:  cellValue(row, config.DescriptionColumn),
		ExerciseType: exerciseType,
	}, nil
}

// cellValue returns the trimmed value of the column ("A", "B", ...) in the
// row, or an empty string if the row is too short.
func cellValue(row []string, column string) string {
	if column == "" {
		return ""
	}
	index, err := excelize.ColumnNameToNumber(column)
	if err != nil || index > len(row) {
		return ""
	}
	return strings.TrimSpace(row[index-1])
}

// slugify turns a sheet name into an ID segment.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	return slug
}

// WriteCourseDir writes the imported course as a YAML course directory
// consumable by the library loader.
func WriteCourseDir(root string, course *Course) error {
	courseDir := filepath.Join(root, slugify(lastSegment(course.Manifest.ID)))
	if err := os.MkdirAll(courseDir, 0755); err != nil {
		return fmt.Errorf("failed to create course directory: %v", err)
	}
	if err := writeYAML(filepath.Join(courseDir, "course_manifest.yaml"), course.Manifest); err != nil {
		return err
	}

	for _, lesson := range course.Lessons {
		lessonDir := filepath.Join(courseDir, slugify(lastSegment(lesson.ID)))
		if err := os.MkdirAll(lessonDir, 0755); err != nil {
			return fmt.Errorf("failed to create lesson directory: %v", err)
		}
		if err := writeYAML(filepath.Join(lessonDir, "lesson_manifest.yaml"), lesson); err != nil {
			return err
		}
		for _, exercise := range course.Exercises {
			if exercise.LessonID != lesson.ID {
				continue
			}
			exerciseDir := filepath.Join(lessonDir, slugify(lastSegment(exercise.ID)))
			if err := os.MkdirAll(exerciseDir, 0755); err != nil {
				return fmt.Errorf("failed to create exercise directory: %v", err)
			}
			if err := writeYAML(filepath.Join(exerciseDir, "exercise_manifest.yaml"), exercise); err != nil {
				return err
			}
		}
	}
	return nil
}

// lastSegment returns the final segment of a dotted unit ID.
func lastSegment(id string) string {
	parts := strings.Split(id, models.IDSeparator)
	return parts[len(parts)-1]
}

// writeYAML marshals the value and writes it to the path.
func writeYAML(path string, value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %v", path, err)
	}
	return nil
}
