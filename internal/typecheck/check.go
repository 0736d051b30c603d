package typecheck

import (
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
)

// Check validates a candidate value against a leaf's metadata: it coerces
// the value to the declared datatype, then enforces min/max and allowed-set
// bounds if present. It returns the normalized value or a BrokerError coded
// out_of_bounds, type_mismatch, or unsupported_type (spec.md §4.2).
func Check(meta *vss.Metadata, candidate any) (any, *brokererr.BrokerError) {
	normalized, err := Coerce(meta, candidate)
	if err != nil {
		return nil, err
	}
	if err := CheckBounds(meta, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
