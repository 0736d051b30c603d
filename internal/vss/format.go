package vss

import (
	"encoding/json"
	"strconv"
)

// AsString renders a coerced leaf value to the canonical string form the
// wire protocol's asString rendering calls for (spec.md §4.3
// "getSignal(path, attr, asString)"). Grounded on
// original_source/kuksa-val-server/src/VssDatabase.cpp's
// "result[attr].as<string>()" (jsoncons' canonical number-to-string
// conversion): integers render without a decimal point, floats always carry
// at least one fractional digit (100 -> "100.0"), booleans render as
// "true"/"false", and strings pass through unchanged.
//
// A nil value (an unwritten slot) renders as the empty string; callers
// needing the unavailable_data error path handle that before reaching here.
func AsString(dt Datatype, value any) string {
	if value == nil {
		return ""
	}
	if dt.IsArray() {
		return arrayAsString(value)
	}
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case float64:
		return numberAsString(dt, v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func numberAsString(dt Datatype, v float64) string {
	if dt == DatatypeFloat || dt == DatatypeDouble {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return ensureDecimalPoint(s)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ensureDecimalPoint appends ".0" to an integral-looking float rendering, so
// a float leaf holding an exact whole number still renders with its
// fractional marker, matching jsoncons' double formatting.
func ensureDecimalPoint(s string) string {
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return s
		}
	}
	return s + ".0"
}

// arrayAsString renders a coerced array value as its JSON array text, since
// the original has no single-string representation for array datapoints.
func arrayAsString(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}
