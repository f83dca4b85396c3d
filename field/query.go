package field

import "context"

// runQuery evaluates a jq query. A single result is returned as is, several
// results as a slice, no result as nil.
func (d Descriptor) runQuery(ctx context.Context, value any) (any, error) {
	iter := d.query.RunWithContext(ctx, Normalize(value))

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, &EvaluationError{Source: d.source, Kind: KindQuery, Err: err}
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
