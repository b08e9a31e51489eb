package executor

import (
	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// validateProjection enforces the "no GROUP BY support" rule: a
// projection list may be all aggregates or all non-aggregates, never a
// mix, since there is no grouping column to collapse the rest against.
func validateProjection(cols []parser.Expression) error {
	hasAgg, hasPlain := false, false
	for _, c := range cols {
		if _, ok := c.(*parser.AggregateExpr); ok {
			hasAgg = true
		} else {
			hasPlain = true
		}
	}
	if hasAgg && hasPlain {
		return dberr.Query(dberr.InvalidConstraint, "cannot mix aggregate and non-aggregate columns without GROUP BY")
	}
	return nil
}

func isAggregateProjection(cols []parser.Expression) bool {
	for _, c := range cols {
		if _, ok := c.(*parser.AggregateExpr); ok {
			return true
		}
	}
	return false
}

// evalAggregateRow collapses every row into a single aggregate output
// row, one value per projection expression.
func evalAggregateRow(cols []parser.Expression, rows []Row) ([]record.Value, error) {
	out := make([]record.Value, len(cols))
	for i, c := range cols {
		agg, ok := c.(*parser.AggregateExpr)
		if !ok {
			return nil, dberr.Query(dberr.InvalidConstraint, "expected an aggregate expression")
		}
		v, err := evalAggregate(agg, rows)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalAggregate(agg *parser.AggregateExpr, rows []Row) (record.Value, error) {
	if agg.Func == parser.AggCount && agg.Star {
		return record.BigInt(int64(len(rows))), nil
	}

	values, err := collectAggregateValues(agg, rows)
	if err != nil {
		return record.Value{}, err
	}

	switch agg.Func {
	case parser.AggCount:
		return record.BigInt(int64(len(values))), nil
	case parser.AggSum:
		return sumValues(values)
	case parser.AggAvg:
		return avgValues(values)
	case parser.AggMin:
		return extremeValue(values, -1)
	case parser.AggMax:
		return extremeValue(values, 1)
	default:
		return record.Value{}, dberr.Query(dberr.NotImplemented, "unsupported aggregate function")
	}
}

// collectAggregateValues evaluates agg.Arg over every row, dropping NULLs
// (per standard SQL aggregate semantics) and applying DISTINCT dedup via
// the value's canonical Signature when requested.
func collectAggregateValues(agg *parser.AggregateExpr, rows []Row) ([]record.Value, error) {
	values := make([]record.Value, 0, len(rows))
	seen := make(map[string]bool)
	for _, row := range rows {
		v, err := EvalValue(agg.Arg, row)
		if err != nil {
			return nil, err
		}
		if v.Null {
			continue
		}
		if agg.Distinct {
			sig := v.Signature()
			if seen[sig] {
				continue
			}
			seen[sig] = true
		}
		values = append(values, v)
	}
	return values, nil
}

func valuesAreFloat(values []record.Value) bool {
	for _, v := range values {
		if v.Type == record.TypeFloat || v.Type == record.TypeDouble {
			return true
		}
	}
	return false
}

// sumValues follows the SUM result-type rule: SUM over integer inputs
// widens to BIGINT (overflow undetected), SUM over any floating input
// produces DOUBLE. An empty input set is NULL.
func sumValues(values []record.Value) (record.Value, error) {
	if len(values) == 0 {
		if valuesAreFloat(values) {
			return record.NullOf(record.TypeDouble), nil
		}
		return record.NullOf(record.TypeBigInt), nil
	}
	if valuesAreFloat(values) {
		var sum float64
		for _, v := range values {
			f, ok := v.AsFloat64()
			if !ok {
				return record.Value{}, dberr.Query(dberr.TypeError, "SUM over non-numeric column")
			}
			sum += f
		}
		return record.Double(sum), nil
	}
	var sum int64
	for _, v := range values {
		i, ok := v.AsInt64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "SUM over non-numeric column")
		}
		sum += i
	}
	return record.BigInt(sum), nil
}

// avgValues always produces DOUBLE, or NULL over zero rows.
func avgValues(values []record.Value) (record.Value, error) {
	if len(values) == 0 {
		return record.NullOf(record.TypeDouble), nil
	}
	var sum float64
	for _, v := range values {
		f, ok := v.AsFloat64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "AVG over non-numeric column")
		}
		sum += f
	}
	return record.Double(sum / float64(len(values))), nil
}

// extremeValue returns the minimum (dir < 0) or maximum (dir > 0) of
// values using record.Compare's cross-type ordering, or NULL if values
// is empty (the target type is then unknown, so NULL is typed NULL).
func extremeValue(values []record.Value, dir int) (record.Value, error) {
	if len(values) == 0 {
		return record.NullOf(record.TypeNull), nil
	}
	best := values[0]
	for _, v := range values[1:] {
		cmp, ok := record.Compare(v, best)
		if !ok {
			continue
		}
		if (dir < 0 && cmp < 0) || (dir > 0 && cmp > 0) {
			best = v
		}
	}
	return best, nil
}
