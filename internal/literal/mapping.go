package literal

// Mapping is a dictionary literal with string keys. It remembers the order in
// which keys first appeared; a repeated key keeps its first position and takes
// the last value.
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// Set stores value under key.
func (m *Mapping) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in first-seen order.
func (m *Mapping) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of distinct keys.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// ToMap converts the mapping, and any nested mappings, to plain Go maps.
// The result only holds JSON-compatible values.
func (m *Mapping) ToMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = Plain(m.values[k])
	}
	return out
}

// Plain converts a parsed value to its JSON-compatible form.
func Plain(v any) any {
	switch t := v.(type) {
	case *Mapping:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	default:
		return v
	}
}
