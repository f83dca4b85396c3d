package field

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// walk indexes into value one key at a time. An absent final key yields nil;
// an absent or non-indexable intermediate node yields a LookupError.
func walk(value any, path []string) (any, error) {
	cur := value
	for i, key := range path {
		switch v := cur.(type) {
		case json.RawMessage:
			return walkJSON(v, path, i)
		case []byte:
			return walkJSON(v, path, i)
		case gjson.Result:
			return walkJSON([]byte(v.Raw), path, i)
		}

		next, ok, indexable := index(cur, key)
		if !indexable {
			return nil, &LookupError{Path: path, Depth: i, Reason: "node is not indexable"}
		}
		if !ok {
			if i == len(path)-1 {
				return nil, nil
			}
			return nil, &LookupError{Path: path, Depth: i + 1, Reason: "node is absent"}
		}
		cur = next
	}
	return cur, nil
}

// index looks key up in a single node
func index(node any, key string) (value any, found bool, indexable bool) {
	switch v := node.(type) {
	case nil:
		return nil, false, false
	case map[string]any:
		value, found = v[key]
		return value, found, true
	case map[string]string:
		s, ok := v[key]
		return s, ok, true
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false, true
		}
		return v[idx], true, true
	}

	rv := reflect.ValueOf(node)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, false
		}
		mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false, true
		}
		return mv.Interface(), true, true
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil, false, true
		}
		return rv.Index(idx).Interface(), true, true
	case reflect.Struct:
		return structField(rv, key)
	default:
		return nil, false, false
	}
}

// structField matches an exported field by json tag first, then by name
func structField(rv reflect.Value, key string) (any, bool, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == key || (name == "" && strings.EqualFold(f.Name, key)) {
			return rv.Field(i).Interface(), true, true
		}
	}
	return nil, false, true
}

// walkJSON resolves the remainder of a path against raw JSON
func walkJSON(raw []byte, path []string, from int) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &LookupError{Path: path, Depth: from, Reason: "invalid JSON"}
	}

	cur := gjson.ParseBytes(raw)
	for i := from; i < len(path); i++ {
		if !cur.IsObject() && !cur.IsArray() {
			return nil, &LookupError{Path: path, Depth: i, Reason: "node is not indexable"}
		}
		next := cur.Get(escapeKey(path[i]))
		if !next.Exists() {
			if i == len(path)-1 {
				return nil, nil
			}
			return nil, &LookupError{Path: path, Depth: i + 1, Reason: "node is absent"}
		}
		cur = next
	}
	return cur.Value(), nil
}

var gjsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`!`, `\!`,
	`=`, `\=`,
	`<`, `\<`,
	`>`, `\>`,
	`%`, `\%`,
)

func escapeKey(key string) string {
	return gjsonEscaper.Replace(key)
}

// Normalize converts raw JSON and typed values into plain maps, slices and
// scalars so they can be fed to expression engines.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, int, map[string]any, []any:
		return v
	case json.RawMessage:
		if gjson.ValidBytes(v) {
			return gjson.ParseBytes(v).Value()
		}
		return string(v)
	case []byte:
		if gjson.ValidBytes(v) {
			return gjson.ParseBytes(v).Value()
		}
		return string(v)
	case gjson.Result:
		return v.Value()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return value
	}
	return out
}
