package transport

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

// EncodeValues flattens data into url.Values. Nested maps become a[b]=c and
// slices become a[0]=x; nil values encode as an empty string.
func EncodeValues(data map[string]any) url.Values {
	values := url.Values{}
	for k, v := range data {
		appendValue(values, k, v)
	}
	return values
}

// EncodeQuery is EncodeValues(data).Encode(). Keys are sorted.
func EncodeQuery(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	return EncodeValues(data).Encode()
}

func appendValue(values url.Values, key string, v any) {
	switch t := v.(type) {
	case nil:
		values.Add(key, "")
	case string:
		values.Add(key, t)
	case bool:
		values.Add(key, strconv.FormatBool(t))
	case int:
		values.Add(key, strconv.Itoa(t))
	case int64:
		values.Add(key, strconv.FormatInt(t, 10))
	case float64:
		values.Add(key, strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		values.Add(key, t.String())
	case fmt.Stringer:
		values.Add(key, t.String())
	case map[string]any:
		for k, nested := range t {
			appendValue(values, key+"["+k+"]", nested)
		}
	case []any:
		for i, nested := range t {
			appendValue(values, key+"["+strconv.Itoa(i)+"]", nested)
		}
	default:
		appendReflect(values, key, v)
	}
}

func appendReflect(values url.Values, key string, v any) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			values.Add(key, fmt.Sprint(v))
			return
		}
		iter := rv.MapRange()
		for iter.Next() {
			appendValue(values, key+"["+iter.Key().String()+"]", iter.Value().Interface())
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			values.Add(key, string(rv.Bytes()))
			return
		}
		for i := 0; i < rv.Len(); i++ {
			appendValue(values, key+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface())
		}
	case reflect.Pointer:
		if rv.IsNil() {
			values.Add(key, "")
			return
		}
		appendValue(values, key, rv.Elem().Interface())
	default:
		values.Add(key, fmt.Sprint(v))
	}
}
