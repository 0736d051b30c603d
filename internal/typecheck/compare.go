package typecheck

import (
	"fmt"

	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
)

// CheckBounds enforces a leaf's min/max and allowed-set constraints against
// an already-coerced value, adapted from the teacher's compareNumeric/
// compareIn operators (internal/rules/operators.go), here applied to a
// single leaf's declared bounds instead of a rule condition's target.
func CheckBounds(meta *vss.Metadata, value any) *brokererr.BrokerError {
	if meta.Min != nil || meta.Max != nil {
		if meta.Datatype.IsArray() {
			arr, _ := value.([]any)
			for _, elem := range arr {
				if err := checkNumericBounds(meta, elem); err != nil {
					return err
				}
			}
		} else if err := checkNumericBounds(meta, value); err != nil {
			return err
		}
	}
	if len(meta.Allowed) > 0 {
		if meta.Datatype.IsArray() {
			arr, _ := value.([]any)
			for _, elem := range arr {
				if !allowedContains(meta.Allowed, elem) {
					return brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v not in allowed set", elem))
				}
			}
		} else if !allowedContains(meta.Allowed, value) {
			return brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v not in allowed set", value))
		}
	}
	return nil
}

func checkNumericBounds(meta *vss.Metadata, value any) *brokererr.BrokerError {
	n, ok := toFloat64(value)
	if !ok {
		return nil
	}
	if meta.Min != nil && n < *meta.Min {
		return brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v below minimum %v", value, *meta.Min))
	}
	if meta.Max != nil && n > *meta.Max {
		return brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v above maximum %v", value, *meta.Max))
	}
	return nil
}

// allowedContains tests set membership using equality semantics, adapted
// from the teacher's compareIn.
func allowedContains(allowed []any, value any) bool {
	for _, a := range allowed {
		if compareEqual(a, value) {
			return true
		}
	}
	return false
}

// compareEqual performs equality comparison with numeric coercion so that
// 100 (int) and 100.0 (float64) compare equal, mirroring the teacher's
// compareEqual.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
