package transform

import (
	"reflect"
	"sort"
	"testing"

	"ouladload/pkg/records"
)

func courseIndex(t *testing.T) *CourseIndex {
	t.Helper()
	idx := NewCourseIndex()
	idx.Add("AAA", "2013J", 269)
	idx.Add("BBB", "2014B", 234)
	return idx
}

func TestExamDateImputer_FillsMissingExamDates(t *testing.T) {
	t.Parallel()

	in := []records.Record{
		{"id_assessment": int64(1), "code_module": "AAA", "code_presentation": "2013J", "assessment_type": "Exam", "date": nil},
		{"id_assessment": int64(2), "code_module": "BBB", "code_presentation": "2014B", "assessment_type": "Exam", "date": nil},
	}

	out, err := (&ExamDateImputer{Courses: courseIndex(t)}).Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := out[0]["date"]; got != int64(269) {
		t.Fatalf("AAA/2013J exam date = %#v, want 269", got)
	}
	if got := out[1]["date"]; got != int64(234) {
		t.Fatalf("BBB/2014B exam date = %#v, want 234", got)
	}
}

func TestExamDateImputer_LeavesOtherRowsAlone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  records.Record
		want any
	}{
		{
			name: "tma_keeps_missing_date",
			rec:  records.Record{"code_module": "AAA", "code_presentation": "2013J", "assessment_type": "TMA", "date": nil},
			want: nil,
		},
		{
			name: "exam_with_date_untouched",
			rec:  records.Record{"code_module": "AAA", "code_presentation": "2013J", "assessment_type": "Exam", "date": int64(230)},
			want: int64(230),
		},
		{
			name: "exam_for_unknown_course_stays_missing",
			rec:  records.Record{"code_module": "ZZZ", "code_presentation": "1999X", "assessment_type": "Exam", "date": nil},
			want: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := (&ExamDateImputer{Courses: courseIndex(t)}).Apply([]records.Record{tc.rec})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := out[0]["date"]; got != tc.want {
				t.Fatalf("date = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestExamDateImputer_PreservesColumnSet(t *testing.T) {
	t.Parallel()

	rec := records.Record{
		"id_assessment":     int64(5),
		"code_module":       "AAA",
		"code_presentation": "2013J",
		"assessment_type":   "Exam",
		"date":              nil,
		"weight":            float64(100),
	}
	before := make([]string, 0, len(rec))
	for k := range rec {
		before = append(before, k)
	}
	sort.Strings(before)

	out, err := (&ExamDateImputer{Courses: courseIndex(t)}).Apply([]records.Record{rec})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	after := make([]string, 0, len(out[0]))
	for k := range out[0] {
		after = append(after, k)
	}
	sort.Strings(after)

	// Joining against courses must not leak aux columns into the row.
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("column set changed: before=%v after=%v", before, after)
	}
}

func TestExamDateImputer_RequiresIndex(t *testing.T) {
	t.Parallel()

	if _, err := (&ExamDateImputer{}).Apply([]records.Record{{}}); err == nil {
		t.Fatalf("Apply without index succeeded, want error")
	}
}

func TestCourseIndex_AddRecord(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		rec     records.Record
		wantErr bool
	}{
		{
			name: "string_length",
			rec:  records.Record{"code_module": "AAA", "code_presentation": "2013J", "module_presentation_length": "268"},
		},
		{
			name: "coerced_int64_length",
			rec:  records.Record{"code_module": "BBB", "code_presentation": "2013B", "module_presentation_length": int64(240)},
		},
		{
			name: "coerced_float_length",
			rec:  records.Record{"code_module": "CCC", "code_presentation": "2014J", "module_presentation_length": float64(262)},
		},
		{
			name:    "missing_module",
			rec:     records.Record{"code_presentation": "2013J", "module_presentation_length": "268"},
			wantErr: true,
		},
		{
			name:    "missing_length",
			rec:     records.Record{"code_module": "AAA", "code_presentation": "2013J", "module_presentation_length": nil},
			wantErr: true,
		},
		{
			name:    "garbage_length",
			rec:     records.Record{"code_module": "AAA", "code_presentation": "2013J", "module_presentation_length": "long"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			idx := NewCourseIndex()
			err := idx.AddRecord(tc.rec)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("AddRecord(%#v) succeeded, want error", tc.rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddRecord: %v", err)
			}
			if idx.Len() != 1 {
				t.Fatalf("Len = %d, want 1", idx.Len())
			}
		})
	}
}

func TestCourseIndex_LaterAddWins(t *testing.T) {
	t.Parallel()

	idx := NewCourseIndex()
	idx.Add("AAA", "2013J", 100)
	idx.Add("AAA", "2013J", 268)

	n, ok := idx.Length("AAA", "2013J")
	if !ok || n != 268 {
		t.Fatalf("Length = %d/%v, want 268/true", n, ok)
	}
}
