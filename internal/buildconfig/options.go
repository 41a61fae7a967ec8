package buildconfig

import "maps"

// Options is the option bag attached to steps and plugins. Values come
// either from Go literals or from a decoded YAML catalog, so the accessors
// accept the numeric and list shapes both produce.
type Options map[string]any

func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v) // #nosec G115 - option values are small
	case float64:
		return int(v)
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

func (o Options) clone() Options {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}
