package fbreak

import (
	"github.com/elliotchance/orderedmap/v3"

	"github.com/johnranson/formatbreaker/pkg/bitwise"
)

// ToMap converts a parse result into plain Go maps and slices for consumers
// that need JSON-compatible data (insertion order is lost). Bit values up to
// 64 bits become unsigned integers; longer ones become binary literals.
func ToMap(result *orderedmap.OrderedMap[string, any]) map[string]any {
	out := make(map[string]any, result.Len())
	for el := result.Front(); el != nil; el = el.Next() {
		out[el.Key] = plainValue(el.Value)
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		return ToMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	case bitwise.Bytes:
		if val.Len() <= 64 {
			return val.Uint64()
		}
		return val.String()
	default:
		return v
	}
}
