package vss

import "testing"

func TestAsString(t *testing.T) {
	tests := []struct {
		name  string
		dt    Datatype
		value any
		want  string
	}{
		{
			name:  "float leaf set to a whole number still carries a decimal point",
			dt:    DatatypeFloat,
			value: float64(100),
			want:  "100.0",
		},
		{
			name:  "float leaf with a fractional value",
			dt:    DatatypeDouble,
			value: 42.5,
			want:  "42.5",
		},
		{
			name:  "integer leaf never carries a decimal point",
			dt:    DatatypeUint8,
			value: float64(255),
			want:  "255",
		},
		{
			name:  "boolean leaf",
			dt:    DatatypeBoolean,
			value: true,
			want:  "true",
		},
		{
			name:  "string leaf passes through",
			dt:    DatatypeString,
			value: "eco",
			want:  "eco",
		},
		{
			name:  "unwritten slot renders as the empty string",
			dt:    DatatypeFloat,
			value: nil,
			want:  "",
		},
		{
			name:  "array leaf renders its JSON array text",
			dt:    DatatypeUint8Array,
			value: []any{float64(1), float64(2), float64(3)},
			want:  "[1,2,3]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsString(tt.dt, tt.value)
			if got != tt.want {
				t.Fatalf("AsString(%v, %v) = %q, want %q", tt.dt, tt.value, got, tt.want)
			}
		})
	}
}
