// Package typecheck validates and coerces candidate values against a leaf's
// declared datatype and numeric/enumeration bounds (spec.md §4.2). It is
// pure: it either returns a normalized value or a *brokererr.BrokerError
// tagged out_of_bounds, type_mismatch, or unsupported_type.
//
// Adapted from the trapperkeeper teacher's internal/rules/coercion.go,
// which coerces a JSON value to one of four FieldTypes (NUMERIC/TEXT/
// BOOLEAN/ANY); this package coerces to one of the VSS tree's concrete
// datatypes (eight integer widths, two float widths, boolean, string, and
// their one-dimensional array variants) instead.
package typecheck

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
)

var integerRanges = map[vss.Datatype][2]float64{
	vss.DatatypeUint8:  {0, math.MaxUint8},
	vss.DatatypeUint16: {0, math.MaxUint16},
	vss.DatatypeUint32: {0, math.MaxUint32},
	vss.DatatypeUint64: {0, math.MaxUint64},
	vss.DatatypeInt8:   {math.MinInt8, math.MaxInt8},
	vss.DatatypeInt16:  {math.MinInt16, math.MaxInt16},
	vss.DatatypeInt32:  {math.MinInt32, math.MaxInt32},
	vss.DatatypeInt64:  {math.MinInt64, math.MaxInt64},
}

// Coerce normalizes a candidate value against the leaf's metadata datatype.
// It does not apply min/max/allowed bounds; call CheckBounds afterward.
func Coerce(meta *vss.Metadata, value any) (any, *brokererr.BrokerError) {
	if meta == nil {
		return nil, brokererr.New(brokererr.CodeUnsupportedType, "leaf has no metadata")
	}
	dt := meta.Datatype
	if dt.IsArray() {
		return coerceArray(dt, value)
	}
	return coerceScalar(dt, value)
}

func coerceScalar(dt vss.Datatype, value any) (any, *brokererr.BrokerError) {
	switch dt {
	case vss.DatatypeUint8, vss.DatatypeUint16, vss.DatatypeUint32, vss.DatatypeUint64,
		vss.DatatypeInt8, vss.DatatypeInt16, vss.DatatypeInt32, vss.DatatypeInt64:
		return coerceInteger(dt, value)
	case vss.DatatypeFloat:
		return coerceFloat(value, math.MaxFloat32)
	case vss.DatatypeDouble:
		return coerceFloat(value, math.MaxFloat64)
	case vss.DatatypeBoolean:
		return coerceBoolean(value)
	case vss.DatatypeString:
		return coerceString(value)
	default:
		return nil, brokererr.New(brokererr.CodeUnsupportedType, fmt.Sprintf("unsupported datatype %q", dt))
	}
}

// coerceInteger rejects non-numeric strings, fractional values, and values
// outside the width's signed/unsigned range. Hex literals ("0x..") are
// accepted for unsigned types, per spec.md §4.2.
func coerceInteger(dt vss.Datatype, value any) (any, *brokererr.BrokerError) {
	f, ok := toIntegerFloat(dt, value)
	if !ok {
		return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %v is not a valid %s", value, dt))
	}
	rng, ok := integerRanges[dt]
	if !ok {
		return nil, brokererr.New(brokererr.CodeUnsupportedType, fmt.Sprintf("unsupported datatype %q", dt))
	}
	if f < rng[0] || f > rng[1] {
		return nil, brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v out of range for %s", value, dt))
	}
	return f, nil
}

func toIntegerFloat(dt vss.Datatype, value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		isUnsigned := dt == vss.DatatypeUint8 || dt == vss.DatatypeUint16 ||
			dt == vss.DatatypeUint32 || dt == vss.DatatypeUint64
		if isUnsigned && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
			n, err := strconv.ParseUint(s[2:], 16, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// coerceFloat rejects values outside the type's representable magnitude.
func coerceFloat(value any, maxMagnitude float64) (any, *brokererr.BrokerError) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %q is not a valid float", v))
		}
		f = parsed
	default:
		return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %v is not a valid float", value))
	}
	if math.Abs(f) > maxMagnitude {
		return nil, brokererr.New(brokererr.CodeOutOfBounds, fmt.Sprintf("value %v exceeds representable range", f))
	}
	return f, nil
}

// coerceBoolean accepts only the two case-sensitive literals true/false.
func coerceBoolean(value any) (any, *brokererr.BrokerError) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "true" {
			return true, nil
		}
		if v == "false" {
			return false, nil
		}
		return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %q is not a valid boolean", v))
	default:
		return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %v is not a valid boolean", value))
	}
}

// coerceString accepts any value, including the empty string.
func coerceString(value any) (any, *brokererr.BrokerError) {
	switch v := value.(type) {
	case string:
		return v, nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// coerceArray validates each element of a JSON-array candidate against the
// elemental datatype; non-array candidates fail with type_mismatch.
func coerceArray(dt vss.Datatype, value any) (any, *brokererr.BrokerError) {
	arr, ok := value.([]any)
	if !ok {
		return nil, brokererr.New(brokererr.CodeTypeMismatch, fmt.Sprintf("value %v is not an array", value))
	}
	elemType := dt.Elemental()
	out := make([]any, len(arr))
	for i, elem := range arr {
		coerced, err := coerceScalar(elemType, elem)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}
