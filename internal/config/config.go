// Package config defines the canonical, JSON-serializable configuration model
// for the loader. It is intentionally small, explicit, and dependency-free so
// that pipelines can be loaded from disk (or built by the CLI from flags) and
// passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":     "oulad",
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:oulad.db", "auto_create_table": true } },
//	  "parser":  { "kind": "csv", "options": { "missing_tokens": ["?", ""] } },
//	  "load":    { "batch_size": 10000, "sources": ["./data"] },
//	  "plan":    []
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultBatchSize is the number of source rows per batch when the config
// does not say otherwise.
const DefaultBatchSize = 10000

// Pipeline describes one full load run in JSON. It is the top-level object
// decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logs and metrics grouping.
	Job string `json:"job"`

	// Storage describes where committed batches are written.
	Storage Storage `json:"storage"`

	// Parser configures how source bytes become records. Kind is "csv".
	Parser Parser `json:"parser"`

	// Load controls batching, source directories, and the reset flag.
	Load Load `json:"load"`

	// Metrics selects an optional metrics backend.
	Metrics Metrics `json:"metrics"`

	// Plan is the ordered table execution plan. Empty means DefaultPlan().
	Plan []PlanStep `json:"plan"`
}

// Storage selects the repository used to persist batches and checkpoints.
type Storage struct {
	// Kind selects the storage implementation: "postgres", "sqlite",
	// "mysql", or "mssql".
	Kind string `json:"kind"`

	// DB carries the connection-level options.
	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the backend-specific connection string.
	DSN string `json:"dsn"`

	// AutoCreateTable creates missing destination tables from the built-in
	// schema before loading.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Parser selects how to parse the raw source into rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser. For CSV:
	//   comma (string), trim_space (bool), missing_tokens ([]string),
	//   header_map (object)
	Options Options `json:"options"`
}

// Load holds the run parameters consumed by the orchestrators.
type Load struct {
	// BatchSize is the number of rows per batch. 0 means DefaultBatchSize.
	BatchSize int `json:"batch_size"`

	// Sources lists the data source directories in load order.
	Sources []string `json:"sources"`

	// Reset deletes all destination rows and checkpoints before loading.
	// This is the only operation that removes previously committed data.
	Reset bool `json:"reset"`
}

// Metrics selects and configures an optional metrics backend.
type Metrics struct {
	// Backend is "none" (or empty), "pushgateway", or "dogstatsd".
	Backend string `json:"backend"`

	// PushgatewayURL is the base URL for the pushgateway backend.
	PushgatewayURL string `json:"pushgateway_url"`

	// DogstatsdAddr is the agent address for the dogstatsd backend,
	// e.g. "127.0.0.1:8125".
	DogstatsdAddr string `json:"dogstatsd_addr"`

	// Options carries backend-specific extras, e.g. "tags" ([]string) and
	// "namespace" (string) for dogstatsd.
	Options Options `json:"options"`
}

// PlanStep binds one destination table to its source file and transform.
// The engine consumes the plan; it never constructs one.
type PlanStep struct {
	// Table is the destination table name (must exist in the schema catalog).
	Table string `json:"table"`

	// File is the source file name inside the data source directory.
	File string `json:"file"`

	// Transform is the transform identifier: "identity", "impute_exam_date",
	// or "classify_score".
	Transform string `json:"transform"`

	// Aux names auxiliary reference data required by the transform.
	// Currently only "courses" (required by impute_exam_date).
	Aux string `json:"aux,omitempty"`
}

// DefaultPlan returns the built-in seven-table plan in foreign-key dependency
// order. Detail tables follow the entities they reference.
func DefaultPlan() []PlanStep {
	return []PlanStep{
		{Table: "courses", File: "courses.csv", Transform: "identity"},
		{Table: "vle", File: "vle.csv", Transform: "identity"},
		{Table: "studentInfo", File: "studentInfo.csv", Transform: "identity"},
		{Table: "studentRegistration", File: "studentRegistration.csv", Transform: "identity"},
		{Table: "assessments", File: "assessments.csv", Transform: "impute_exam_date", Aux: "courses"},
		{Table: "studentAssessment", File: "studentAssessment.csv", Transform: "classify_score"},
		{Table: "studentVle", File: "studentVle.csv", Transform: "identity"},
	}
}

// Default returns a pipeline with every optional field at its default.
func Default() Pipeline {
	return Pipeline{
		Job:     "oulad",
		Storage: Storage{Kind: "sqlite", DB: DBConfig{DSN: "file:oulad.db", AutoCreateTable: true}},
		Parser:  Parser{Kind: "csv", Options: Options{}},
		Load:    Load{BatchSize: DefaultBatchSize},
		Metrics: Metrics{Backend: "none", Options: Options{}},
		Plan:    DefaultPlan(),
	}
}

// FromFile decodes a pipeline file. Defaults are not applied; call Normalize.
func FromFile(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Normalize fills zero-valued optional fields with their defaults.
func (p *Pipeline) Normalize() {
	if p.Job == "" {
		p.Job = "oulad"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Load.BatchSize == 0 {
		p.Load.BatchSize = DefaultBatchSize
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
	if p.Metrics.Options == nil {
		p.Metrics.Options = Options{}
	}
	if len(p.Plan) == 0 {
		p.Plan = DefaultPlan()
	}
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for parser/metrics-specific configuration where the shape
// varies by implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
