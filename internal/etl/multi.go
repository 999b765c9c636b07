package etl

import (
	"context"
	"fmt"
)

// RunAll loads each directory in caller order, one Run apiece against the
// shared repository. Destination state is cleared once, before the first
// directory; before each later directory only the checkpoints are cleared, so
// that source starts again at batch one and appends on top of the rows already
// loaded. Several extracts therefore accumulate into one destination, and
// nothing deduplicates across them; callers own key collisions. Table failures
// never abort the sequence; a fatal run error or ctx cancellation returns the
// results collected so far together with that error.
func (r *Runner) RunAll(ctx context.Context, dirs []string) ([]RunResult, error) {
	out := make([]RunResult, 0, len(dirs))
	for i, dir := range dirs {
		if i > 0 {
			if err := r.repo.ClearCheckpoints(ctx, planTables(r.cfg.Plan)); err != nil {
				return out, fmt.Errorf("clear checkpoints before %s: %w", dir, err)
			}
		}
		res, err := r.run(ctx, dir, i == 0)
		out = append(out, res)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
