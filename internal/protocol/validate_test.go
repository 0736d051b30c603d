package protocol

import "testing"

func TestDecodeUnknownAction(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	action, _, requestID, berr := v.Decode([]byte(`{"action":"frobnicate","requestId":"1"}`))
	if berr == nil {
		t.Fatal("expected an error for an unknown action")
	}
	if action != "frobnicate" {
		t.Fatalf("expected the unknown action name echoed back, got %q", action)
	}
	if requestID != "1" {
		t.Fatalf("expected requestId 1, got %q", requestID)
	}
}

func TestDecodeCoercesNumericRequestID(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, doc, requestID, berr := v.Decode([]byte(`{"action":"get","requestId":100,"path":"Vehicle.Speed"}`))
	if berr != nil {
		t.Fatalf("unexpected error: %v", berr)
	}
	if requestID != "100" {
		t.Fatalf("expected requestId coerced to \"100\", got %q", requestID)
	}
	if doc["requestId"] != "100" {
		t.Fatalf("expected the document's own requestId to be coerced in place, got %v", doc["requestId"])
	}
}

func TestDecodeMissingRequiredFieldFails(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, _, _, berr := v.Decode([]byte(`{"action":"get","requestId":"1"}`))
	if berr == nil {
		t.Fatal("expected a schema violation for a get request missing path")
	}
}

func TestDecodeMalformedJSONReturnsUnknownRequestID(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, _, requestID, berr := v.Decode([]byte(`not json at all`))
	if berr == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if requestID != unknownRequestID {
		t.Fatalf("expected %q, got %q", unknownRequestID, requestID)
	}
}

func TestDecodeMissingRequestIDFallsBackToUnknown(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, _, requestID, _ := v.Decode([]byte(`{"action":"get","path":"Vehicle.Speed"}`))
	if requestID != unknownRequestID {
		t.Fatalf("expected %q, got %q", unknownRequestID, requestID)
	}
}

func TestDecodeEveryActionSchemaCompiles(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	for _, action := range []string{
		actionAuthorize, actionGet, actionSet, actionSubscribe,
		actionUnsubscribe, actionGetMetaData, actionUpdateMetaData, actionUpdateVSSTree,
	} {
		if _, ok := v.schemas[action]; !ok {
			t.Fatalf("expected a compiled schema for action %q", action)
		}
	}
}
