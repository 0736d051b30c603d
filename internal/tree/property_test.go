package tree

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// newUint8SensorTree builds a single-leaf tree: Vehicle.Speed, a uint8 sensor.
func newUint8SensorTree() *Tree {
	root := vss.NewBranch("Vehicle", "", "")
	meta := &vss.Metadata{Datatype: vss.DatatypeUint8}
	root.AddChild(vss.NewLeaf("Speed", vss.KindSensor, meta))
	return New(root, nil)
}

func mustVSSPath(t *testing.T, dotted string) vsspath.Path {
	t.Helper()
	p, err := vsspath.New(dotted)
	if err != nil {
		t.Fatalf("vsspath.New(%q): %v", dotted, err)
	}
	return p
}

// TestPropertySetThenGetIsIdentityOnValueSlot is spec.md §8's round-trip
// law: for any in-range value of the leaf's datatype, set-then-get is the
// identity on the value slot. Grounded on the trapperkeeper teacher's
// gopter usage in internal/rules/fieldpath_test.go (TestResolve_Property*),
// generalized from arbitrary JSON-path shapes to arbitrary in-range
// uint8 values.
func TestPropertySetThenGetIsIdentityOnValueSlot(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	path := mustVSSPath(t, "Vehicle.Speed")

	properties.Property("set-then-get round-trips the value slot", prop.ForAll(
		func(v int) bool {
			tr := newUint8SensorTree()
			if berr := tr.SetSignal(path, AttrValue, float64(v)); berr != nil {
				t.Fatalf("SetSignal: %v", berr)
			}
			dps, berr := tr.GetSignal(path, AttrValue)
			if berr != nil {
				t.Fatalf("GetSignal: %v", berr)
			}
			if len(dps) != 1 {
				return false
			}
			got, ok := dps[0].Value.(float64)
			return ok && got == float64(v)
		},
		gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}

// TestPropertyUpdateVSSTreeKeepsMetadataAndDataCongruent is spec.md §8's
// congruence law: after any updateVSSTree, the metadata and data trees have
// identical shapes. Every leaf this property adds must resolve to exactly
// one node with a non-nil Data slot, and GetSignal on it must succeed.
func TestPropertyUpdateVSSTreeKeepsMetadataAndDataCongruent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	names := []string{"Temperature", "Pressure", "RPM", "FuelLevel"}
	datatypes := []string{"uint8", "int32", "boolean", "string"}

	properties.Property("every leaf grafted by a merge has a populated data slot", prop.ForAll(
		func(nameIdx int, dtIdx int) bool {
			tr := newUint8SensorTree()
			leafName := names[nameIdx]
			patch := []byte(`{"Vehicle":{"type":"branch","children":{"` + leafName + `":{"type":"sensor","datatype":"` + datatypes[dtIdx] + `"}}}}`)

			if _, berr := tr.UpdateVSSTree(patch); berr != nil {
				return false
			}
			p := mustVSSPath(t, "Vehicle."+leafName)
			matches := resolveNodesForPath(tr.root, p)
			if len(matches) != 1 || matches[0].node.Data == nil {
				return false
			}
			_, berr := tr.GetSignal(p, AttrValue)
			return berr == nil
		},
		gen.IntRange(0, len(names)-1),
		gen.IntRange(0, len(datatypes)-1),
	))

	properties.TestingRun(t)
}
