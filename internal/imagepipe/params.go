package imagepipe

import "maps"

// Params holds the named, non-image arguments of a step.
type Params map[string]any

// Float returns the value for key as a float64, or def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint8:
		return float64(v)
	default:
		return def
	}
}

// Int returns the value for key as an int, or def. Floats are truncated.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case uint8:
		return int(v)
	default:
		return def
	}
}

// Bool returns the value for key as a bool, or def.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Clone returns a copy that shares no map storage with p. Slice values are
// copied one level deep.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	out := maps.Clone(p)
	for k, v := range out {
		switch s := v.(type) {
		case []any:
			out[k] = append([]any(nil), s...)
		case []int:
			out[k] = append([]int(nil), s...)
		case []float64:
			out[k] = append([]float64(nil), s...)
		case map[string]any:
			out[k] = map[string]any(Params(s).Clone())
		}
	}
	return out
}
