package transform

import (
	"errors"
	"fmt"
	"strconv"

	"ouladload/pkg/records"
)

// courseKey identifies one module presentation.
type courseKey struct {
	module       string
	presentation string
}

// CourseIndex resolves (code_module, code_presentation) to the presentation
// length in days. The engine preloads it from courses.csv before any table
// runs; impute_exam_date cannot operate without it.
type CourseIndex struct {
	lengths map[courseKey]int
}

// NewCourseIndex returns an empty index.
func NewCourseIndex() *CourseIndex {
	return &CourseIndex{lengths: make(map[courseKey]int)}
}

// Add registers one presentation. A later Add for the same key wins.
func (ci *CourseIndex) Add(module, presentation string, length int) {
	ci.lengths[courseKey{module, presentation}] = length
}

// AddRecord indexes one courses row. The length cell may still be the raw
// string form or an already coerced integer. Courses rows are mandatory and
// complete, so a missing or malformed field is an error.
func (ci *CourseIndex) AddRecord(r records.Record) error {
	module, ok := r.String("code_module")
	if !ok || module == "" {
		return errors.New("courses row lacks code_module")
	}
	presentation, ok := r.String("code_presentation")
	if !ok || presentation == "" {
		return errors.New("courses row lacks code_presentation")
	}

	var length int
	switch v := r["module_presentation_length"].(type) {
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("courses row %s/%s: parse length %q", module, presentation, v)
		}
		length = n
	case int64:
		length = int(v)
	case int:
		length = v
	case float64:
		length = int(v)
	default:
		return fmt.Errorf("courses row %s/%s lacks module_presentation_length", module, presentation)
	}

	ci.Add(module, presentation, length)
	return nil
}

// Length reports the presentation length for a module presentation.
func (ci *CourseIndex) Length(module, presentation string) (int, bool) {
	n, ok := ci.lengths[courseKey{module, presentation}]
	return n, ok
}

// Len returns the number of indexed presentations.
func (ci *CourseIndex) Len() int { return len(ci.lengths) }

// ExamDateImputer fills the date column for Exam rows that arrive without
// one. The OULAD export leaves final-exam dates blank; the dataset defines
// the exam to fall at the end of the presentation, so the imputed date is the
// owning course's module_presentation_length. Exam rows whose course is not
// indexed keep a missing date, matching a relational left join. Non-Exam rows
// and rows that already carry a date are untouched.
type ExamDateImputer struct {
	Courses *CourseIndex
}

func (t *ExamDateImputer) Name() string { return "impute_exam_date" }

func (t *ExamDateImputer) Apply(in []records.Record) ([]records.Record, error) {
	if t.Courses == nil || t.Courses.lengths == nil {
		return nil, errors.New("course index not loaded")
	}
	for _, r := range in {
		if r["date"] != nil {
			continue
		}
		if typ, _ := r.String("assessment_type"); typ != "Exam" {
			continue
		}
		module, _ := r.String("code_module")
		presentation, _ := r.String("code_presentation")
		if length, ok := t.Courses.Length(module, presentation); ok {
			r["date"] = int64(length)
		}
	}
	return in, nil
}
