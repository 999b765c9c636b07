// Package records defines the generic row representation passed between the
// parser, the transforms, and the storage layer.
package records

// Record is one row keyed by canonical column name. A missing value is stored
// as an untyped nil, never as a sentinel string.
type Record map[string]any

// Clone returns a shallow copy of r. Values are shared; for the scalar cell
// types used in this pipeline (string, int64, float64, bool, nil) that is a
// full copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value for key as a string. ok is false when the key is
// absent, nil, or not a string.
func (r Record) String(key string) (s string, ok bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", false
	}
	s, ok = v.(string)
	return s, ok
}
