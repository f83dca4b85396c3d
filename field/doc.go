// Package field resolves field descriptors against arbitrary values.
//
// A descriptor is one of four variants, chosen when the configuration is
// built rather than inspected at call time:
//
//   - Path: a single key or an ordered list of keys, walked through maps,
//     slices, structs (by json tag) and raw JSON (via gjson)
//   - Func: a callback receiving the value and caller context
//   - Expr: an expr-lang expression evaluated with `res` bound to the value
//   - Query: a jq query (gojq) evaluated over the value
//
// # Usage
//
//	code := field.Path("meta", "code")
//	v, err := field.Resolve(ctx, code, resp.Data)
//
//	ok := field.MustExpr(`res.status == "ok" ? 200 : 500`)
//	v, err = field.Resolve(ctx, ok, resp.Data)
//
// Walking a path fails with a *LookupError (wrapping ErrNotFound) when an
// intermediate node is absent; a missing final key resolves to nil.
package field
