package executor

import "github.com/relicdb/relicdb/internal/sql/parser"

// nestedLoopJoin implements a left-deep nested-loop join: every row of
// left is paired with every row of right, and only pairs whose ON
// predicate evaluates to a definite True survive. A plain JOIN is the
// only join kind supported; there is no outer-join null extension.
func nestedLoopJoin(left, right []Row, on parser.Expression) ([]Row, error) {
	out := make([]Row, 0, len(left))
	for _, l := range left {
		for _, r := range right {
			combined := l.Concat(r)
			if on == nil {
				out = append(out, combined)
				continue
			}
			tb, err := EvalBool(on, combined)
			if err != nil {
				return nil, err
			}
			if tb.IsTrue() {
				out = append(out, combined)
			}
		}
	}
	return out, nil
}
