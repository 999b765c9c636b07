// Package transform holds the closed set of per-table record transforms the
// load engine can run between parsing and storage. Each plan step names one
// transform; New resolves the name. The set is closed on purpose: the seven
// OULAD tables need exactly these behaviors, and an unknown name in a plan is
// a configuration error, not an extension point.
package transform

import (
	"fmt"
	"strings"

	"ouladload/pkg/records"
)

// Transform mutates or extends one batch of records. Implementations may
// modify records in place and must return the batch to pass downstream.
type Transform interface {
	Name() string
	Apply(in []records.Record) ([]records.Record, error)
}

// Chain is an ordered list of transforms applied left to right. A failing
// link aborts the chain with its name attached.
type Chain []Transform

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return strings.Join(names, "+")
}

func (c Chain) Apply(in []records.Record) ([]records.Record, error) {
	out := in
	for _, t := range c {
		var err error
		out, err = t.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return out, nil
}

// Identity passes batches through unchanged. Most tables load verbatim.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Apply(in []records.Record) ([]records.Record, error) { return in, nil }

// New resolves a plan step's transform name. Transforms that need auxiliary
// course data receive courses; the others ignore it.
func New(kind string, courses *CourseIndex) (Transform, error) {
	switch kind {
	case "identity":
		return Identity{}, nil
	case "impute_exam_date":
		if courses == nil {
			return nil, fmt.Errorf("transform %s requires the course index", kind)
		}
		return &ExamDateImputer{Courses: courses}, nil
	case "classify_score":
		return ScoreClassifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported transform.kind=%s", kind)
	}
}
