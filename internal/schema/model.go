// Package schema declares the destination tables for the OULAD dataset
// exports. The definitions drive cell coercion, column ordering for bulk
// inserts, and CREATE TABLE rendering in the storage backends.
package schema

// Kind is the logical column type. Backends map it to a dialect type.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindReal
	KindBool
)

// String returns the lower-case name of the kind, mainly for error messages.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column describes one destination column.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Table describes one destination table. Columns are in insert order; derived
// columns (filled by a transform, absent from the CSV) come last.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in insert order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// ProgressTable is the name of the checkpoint table. One row per destination
// table: (table_name, last_committed_batch, updated_at).
const ProgressTable = "etl_log"

// Tables lists every destination table in foreign-key dependency order:
// referenced entities before the detail tables that point at them.
var Tables = []Table{
	{
		Name: "courses",
		Columns: []Column{
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "module_presentation_length", Kind: KindInt},
		},
	},
	{
		Name: "vle",
		Columns: []Column{
			{Name: "id_site", Kind: KindInt},
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "activity_type", Kind: KindText},
			{Name: "week_from", Kind: KindInt, Nullable: true},
			{Name: "week_to", Kind: KindInt, Nullable: true},
		},
	},
	{
		Name: "studentInfo",
		Columns: []Column{
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "id_student", Kind: KindInt},
			{Name: "gender", Kind: KindText},
			{Name: "region", Kind: KindText},
			{Name: "highest_education", Kind: KindText},
			{Name: "imd_band", Kind: KindText, Nullable: true},
			{Name: "age_band", Kind: KindText},
			{Name: "num_of_prev_attempts", Kind: KindInt},
			{Name: "studied_credits", Kind: KindInt},
			{Name: "disability", Kind: KindText},
			{Name: "final_result", Kind: KindText},
		},
	},
	{
		Name: "studentRegistration",
		Columns: []Column{
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "id_student", Kind: KindInt},
			{Name: "date_registration", Kind: KindInt, Nullable: true},
			{Name: "date_unregistration", Kind: KindInt, Nullable: true},
		},
	},
	{
		Name: "assessments",
		Columns: []Column{
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "id_assessment", Kind: KindInt},
			{Name: "assessment_type", Kind: KindText},
			{Name: "date", Kind: KindInt, Nullable: true},
			{Name: "weight", Kind: KindReal, Nullable: true},
		},
	},
	{
		Name: "studentAssessment",
		Columns: []Column{
			{Name: "id_assessment", Kind: KindInt},
			{Name: "id_student", Kind: KindInt},
			{Name: "date_submitted", Kind: KindInt},
			{Name: "is_banked", Kind: KindInt},
			{Name: "score", Kind: KindReal, Nullable: true},
			// Derived by the classify_score transform; not in the CSV.
			{Name: "assessment_result", Kind: KindText, Nullable: true},
		},
	},
	{
		Name: "studentVle",
		Columns: []Column{
			{Name: "code_module", Kind: KindText},
			{Name: "code_presentation", Kind: KindText},
			{Name: "id_student", Kind: KindInt},
			{Name: "id_site", Kind: KindInt},
			{Name: "date", Kind: KindInt},
			{Name: "sum_click", Kind: KindInt},
		},
	},
}

// Lookup returns the table definition by name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// TableNames returns the destination table names in dependency order.
func TableNames() []string {
	out := make([]string, len(Tables))
	for i, t := range Tables {
		out[i] = t.Name
	}
	return out
}
