package tree

import (
	"testing"

	"github.com/kuksa/vssbroker/internal/vss"
)

const sampleDefinition = `{
  "Vehicle": {
    "type": "branch",
    "uuid": "a1b2c3",
    "description": "root",
    "children": {
      "Speed": {
        "type": "sensor",
        "datatype": "float",
        "uuid": "d4e5f6",
        "unit": "km/h",
        "min": 0,
        "max": 300
      },
      "Cabin": {
        "type": "branch",
        "children": {
          "Door": {
            "type": "actuator",
            "datatype": "boolean",
            "uuid": "aabbcc"
          },
          "Mode": {
            "type": "attribute",
            "datatype": "string",
            "uuid": "112233",
            "allowed": ["eco", "sport"],
            "default": "eco"
          }
        }
      }
    }
  }
}`

func TestParseDefinition(t *testing.T) {
	root, err := ParseDefinition([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	if root.Name != "Vehicle" || root.Kind != vss.KindBranch {
		t.Fatalf("unexpected root: %+v", root)
	}

	speed, ok := root.Child("Speed")
	if !ok || speed.Kind != vss.KindSensor || speed.Meta.Datatype != vss.DatatypeFloat {
		t.Fatalf("unexpected Speed node: %+v", speed)
	}
	if speed.Meta.Min == nil || *speed.Meta.Min != 0 || speed.Meta.Max == nil || *speed.Meta.Max != 300 {
		t.Fatalf("unexpected Speed bounds: %+v", speed.Meta)
	}

	cabin, ok := root.Child("Cabin")
	if !ok || cabin.Kind != vss.KindBranch {
		t.Fatalf("unexpected Cabin node: %+v", cabin)
	}
	door, ok := cabin.Child("Door")
	if !ok || door.Kind != vss.KindActuator || door.Meta.Datatype != vss.DatatypeBoolean {
		t.Fatalf("unexpected Door node: %+v", door)
	}
	mode, ok := cabin.Child("Mode")
	if !ok || mode.Kind != vss.KindAttribute {
		t.Fatalf("unexpected Mode node: %+v", mode)
	}
	if len(mode.Meta.Allowed) != 2 || mode.Meta.Default != "eco" {
		t.Fatalf("unexpected Mode metadata: %+v", mode.Meta)
	}
}

func TestParseDefinitionEnumAlias(t *testing.T) {
	doc := `{"Vehicle":{"type":"attribute","datatype":"string","enum":["a","b"]}}`
	root, err := ParseDefinition([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	if len(root.Meta.Allowed) != 2 {
		t.Fatalf("expected enum to populate Allowed, got %+v", root.Meta)
	}
}

func TestParseDefinitionRejectsUnknownDatatype(t *testing.T) {
	doc := `{"Vehicle":{"type":"sensor","datatype":"bogus"}}`
	if _, err := ParseDefinition([]byte(doc)); err == nil {
		t.Fatal("expected error for unsupported datatype")
	}
}

func TestParseDefinitionRejectsUnknownNodeType(t *testing.T) {
	doc := `{"Vehicle":{"type":"bogus"}}`
	if _, err := ParseDefinition([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown node type")
	}
}

func TestApplyDefaultsDoesNotOverwriteExistingValue(t *testing.T) {
	root, err := ParseDefinition([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	cabin, _ := root.Child("Cabin")
	mode, _ := cabin.Child("Mode")
	mode.Data.Value = "sport"
	mode.Data.HasValue = true
	mode.Data.ValueTs = 42

	ApplyDefaults(root, 100)

	if mode.Data.Value != "sport" || mode.Data.ValueTs != 42 {
		t.Fatalf("ApplyDefaults overwrote an already-set value: %+v", mode.Data)
	}
}

func TestApplyDefaultsMaterializesUnsetDefault(t *testing.T) {
	root, err := ParseDefinition([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	cabin, _ := root.Child("Cabin")
	mode, _ := cabin.Child("Mode")

	ApplyDefaults(root, 123)

	if !mode.Data.HasValue || mode.Data.Value != "eco" || mode.Data.ValueTs != 123 {
		t.Fatalf("ApplyDefaults did not materialize default: %+v", mode.Data)
	}

	door, _ := cabin.Child("Door")
	if door.Data.HasValue {
		t.Fatalf("ApplyDefaults should not touch actuators without a default: %+v", door.Data)
	}
}
