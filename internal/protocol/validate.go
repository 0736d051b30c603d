// Package protocol implements the Request Validator and Request Processor
// sitting at the front of every transport (spec.md §4.8, §4.9): decode,
// best-effort requestId extraction, JSON-Schema validation, authorization
// gating, and dispatch to the Signal Tree / Permission Resolver /
// Subscription Registry.
//
// Grounded on the trapperkeeper teacher's internal/core/api/service.go
// validate -> authorize -> dispatch -> respond state machine, with JSON
// Schema validation (santhosh-tekuri/jsonschema/v5) supplied from
// original_source/include/VSSRequestValidator.hpp, which has no
// teacher-native analogue but is explicitly named in spec.md §4.8.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kuksa/vssbroker/internal/brokererr"
)

const (
	actionAuthorize      = "authorize"
	actionGet            = "get"
	actionSet            = "set"
	actionSubscribe      = "subscribe"
	actionUnsubscribe    = "unsubscribe"
	actionGetMetaData    = "getMetaData"
	actionUpdateMetaData = "updateMetaData"
	actionUpdateVSSTree  = "updateVSSTree"
)

// unknownRequestID is echoed when a request's requestId cannot be
// extracted at all, e.g. malformed JSON (spec.md §6 "on malformed JSON,
// requestId is the literal string UNKNOWN").
const unknownRequestID = "UNKNOWN"

// Validator compiles and holds the eight per-action JSON Schemas once at
// startup (spec.md §4.8), rather than re-parsing schema text per request.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every schema in schemaSource. A compile failure is
// a programmer error in the embedded schema text, not a runtime condition.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	for action, src := range schemaSource {
		resource := action + ".json"
		if err := compiler.AddResource(resource, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", resource, err)
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(schemaSource))}
	for action := range schemaSource {
		schema, err := compiler.Compile(action + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", action, err)
		}
		v.schemas[action] = schema
	}
	return v, nil
}

// Decode unmarshals raw into a generic document, extracts and coerces the
// requestId, resolves the action's schema, and validates against it.
// Every error path still returns the best-effort requestId so the caller
// can echo it in the error envelope (spec.md §6).
func (v *Validator) Decode(raw []byte) (action string, doc map[string]any, requestID string, berr *brokererr.BrokerError) {
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", nil, unknownRequestID, brokererr.Wrap(brokererr.CodeBadRequest, "malformed JSON request", err)
	}
	requestID = coerceRequestID(doc)

	action, ok := doc["action"].(string)
	if !ok || action == "" {
		return "", doc, requestID, brokererr.New(brokererr.CodeBadRequest, "missing or non-string action field")
	}

	schema, ok := v.schemas[action]
	if !ok {
		return action, doc, requestID, brokererr.New(brokererr.CodeBadRequest, "unknown action: "+action)
	}
	if err := schema.Validate(doc); err != nil {
		return action, doc, requestID, brokererr.Wrap(brokererr.CodeBadRequest, "schema violation for action "+action, err)
	}
	return action, doc, requestID, nil
}

// coerceRequestID extracts doc["requestId"] as a string, coercing a bare
// JSON number in place so both the schema's "requestId is a string"
// constraint and every later echo see the same normalized value (spec.md
// §9 Open Question). Missing or otherwise-typed values fall back to
// unknownRequestID.
func coerceRequestID(doc map[string]any) string {
	raw, ok := doc["requestId"]
	if !ok {
		return unknownRequestID
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return unknownRequestID
		}
		return v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		doc["requestId"] = s
		return s
	default:
		return unknownRequestID
	}
}
