package transform

import (
	"fmt"
	"strconv"

	"ouladload/internal/schema"
	"ouladload/pkg/records"
)

// Coerce converts string cell values to their column's declared kind. The
// reader emits strings (or nil for missing tokens); Coerce runs before the
// named transform so downstream code sees typed values. An unparseable cell
// fails the table load; partially typed batches never reach storage.
type Coerce struct {
	Table schema.Table
}

func (c Coerce) Name() string { return "coerce" }

func (c Coerce) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		for _, col := range c.Table.Columns {
			v, ok := r[col.Name]
			if !ok || v == nil {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				// already typed
				continue
			}
			coerced, err := coerceValue(s, col.Kind)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			r[col.Name] = coerced
		}
	}
	return in, nil
}

func coerceValue(s string, kind schema.Kind) (any, error) {
	switch kind {
	case schema.KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as integer", s)
		}
		return i, nil
	case schema.KindReal:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as real", s)
		}
		return f, nil
	case schema.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("parse %q as bool", s)
		}
		return b, nil
	default:
		return s, nil
	}
}
