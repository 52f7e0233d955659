package render

// Plain converts a rendered tree into plain Go values: every *Mapping
// becomes a map[string]any. Key order is lost, so Plain is meant for
// comparisons and for encoders that sort keys anyway.
func Plain(v any) any {
	switch t := v.(type) {
	case *Mapping:
		out := make(map[string]any, t.Len())
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = Plain(pair.Value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Plain(item)
		}
		return out
	default:
		return v
	}
}

// Keys returns the keys of m in output order.
func Keys(m *Mapping) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
