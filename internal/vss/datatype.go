// Package vss defines the tagged domain types of the VSS signal tree:
// datatypes, values, node kinds, and the metadata/data slots a leaf carries.
//
// Separation from wire format: these are hand-written Go types kept outside
// any serialization-generated package, mirroring the trapperkeeper teacher's
// internal/types package, which keeps domain models free of protobuf deps.
package vss

import "fmt"

// Datatype is a tagged variant over the scalar and one-dimensional array
// types a leaf may declare. There are no nested compound types.
type Datatype int

const (
	DatatypeUnspecified Datatype = iota
	DatatypeUint8
	DatatypeUint16
	DatatypeUint32
	DatatypeUint64
	DatatypeInt8
	DatatypeInt16
	DatatypeInt32
	DatatypeInt64
	DatatypeFloat
	DatatypeDouble
	DatatypeBoolean
	DatatypeString
	DatatypeUint8Array
	DatatypeUint16Array
	DatatypeUint32Array
	DatatypeUint64Array
	DatatypeInt8Array
	DatatypeInt16Array
	DatatypeInt32Array
	DatatypeInt64Array
	DatatypeFloatArray
	DatatypeDoubleArray
	DatatypeBooleanArray
	DatatypeStringArray
)

var datatypeNames = map[string]Datatype{
	"uint8":        DatatypeUint8,
	"uint16":       DatatypeUint16,
	"uint32":       DatatypeUint32,
	"uint64":       DatatypeUint64,
	"int8":         DatatypeInt8,
	"int16":        DatatypeInt16,
	"int32":        DatatypeInt32,
	"int64":        DatatypeInt64,
	"float":        DatatypeFloat,
	"double":       DatatypeDouble,
	"boolean":      DatatypeBoolean,
	"string":       DatatypeString,
	"uint8[]":      DatatypeUint8Array,
	"uint16[]":     DatatypeUint16Array,
	"uint32[]":     DatatypeUint32Array,
	"uint64[]":     DatatypeUint64Array,
	"int8[]":       DatatypeInt8Array,
	"int16[]":      DatatypeInt16Array,
	"int32[]":      DatatypeInt32Array,
	"int64[]":      DatatypeInt64Array,
	"float[]":      DatatypeFloatArray,
	"double[]":     DatatypeDoubleArray,
	"boolean[]":    DatatypeBooleanArray,
	"string[]":     DatatypeStringArray,
}

// ParseDatatype maps a VSS tree-definition "datatype" tag to a Datatype.
// Unknown tags return DatatypeUnspecified and ok=false; the caller must
// translate that into an unsupported_type failure.
func ParseDatatype(tag string) (Datatype, bool) {
	dt, ok := datatypeNames[tag]
	return dt, ok
}

// String renders the canonical VSS tree-definition tag for the datatype.
func (d Datatype) String() string {
	for tag, dt := range datatypeNames {
		if dt == d {
			return tag
		}
	}
	return fmt.Sprintf("unspecified(%d)", int(d))
}

// IsArray reports whether the datatype is a one-dimensional array variant.
func (d Datatype) IsArray() bool {
	return d >= DatatypeUint8Array && d <= DatatypeStringArray
}

// Elemental returns the scalar datatype carried by an array variant.
// Calling it on a non-array datatype returns the datatype unchanged.
func (d Datatype) Elemental() Datatype {
	if !d.IsArray() {
		return d
	}
	return d - (DatatypeUint8Array - DatatypeUint8)
}
