package sanitize

// Object walks a decoded JSON structure and sanitizes every string leaf under
// the given context. Maps and slices are rebuilt, never mutated in place;
// non-string leaves pass through unchanged.
func Object(v interface{}, ctx Context) interface{} {
	switch value := v.(type) {
	case string:
		return Sanitize(value, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[k] = Object(item, ctx)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = Object(item, ctx)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(value))
		for k, item := range value {
			out[k] = Sanitize(item, ctx)
		}
		return out
	case []string:
		out := make([]string, len(value))
		for i, item := range value {
			out[i] = Sanitize(item, ctx)
		}
		return out
	default:
		return v
	}
}
