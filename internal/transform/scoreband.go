package transform

import (
	"fmt"

	"ouladload/pkg/records"
)

// passingScore is the OU module pass mark.
const passingScore = 40

// ScoreClassifier appends the derived assessment_result column to
// studentAssessment rows: a score at or above the pass mark bands to "Pass",
// anything lower to "Fail". A missing score yields a missing result so
// unscored submissions stay distinguishable from failed ones.
type ScoreClassifier struct{}

func (ScoreClassifier) Name() string { return "classify_score" }

func (ScoreClassifier) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		v, ok := r["score"]
		if !ok || v == nil {
			r["assessment_result"] = nil
			continue
		}

		var score float64
		switch n := v.(type) {
		case float64:
			score = n
		case int64:
			score = float64(n)
		case int:
			score = float64(n)
		default:
			return nil, fmt.Errorf("score %v (%T) is not numeric", v, v)
		}

		if score >= passingScore {
			r["assessment_result"] = "Pass"
		} else {
			r["assessment_result"] = "Fail"
		}
	}
	return in, nil
}
