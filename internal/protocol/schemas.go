package protocol

// schemaSource holds the Draft 2020-12 JSON Schema text for each of the
// eight request actions (spec.md §4.8 "Seven [sic; eight counting
// authorize] JSON schemas, one per action"). requestId is intentionally
// typed "string" here: the validator coerces a numeric requestId to its
// string form before schema validation runs, so the constraint is always
// satisfiable by the time Validate sees the document (spec.md §9 Open
// Question: "preserve this coercion to string in error paths").
var schemaSource = map[string]string{
	actionAuthorize: `{
		"type": "object",
		"required": ["action", "requestId", "tokens"],
		"properties": {
			"action": {"const": "authorize"},
			"requestId": {"type": "string"},
			"tokens": {}
		}
	}`,
	actionGet: `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"action": {"const": "get"},
			"requestId": {"type": "string"},
			"path": {"type": "string", "minLength": 1},
			"attribute": {"enum": ["value", "targetValue"]}
		}
	}`,
	actionSet: `{
		"type": "object",
		"required": ["action", "requestId", "path", "value"],
		"properties": {
			"action": {"const": "set"},
			"requestId": {"type": "string"},
			"path": {"type": "string", "minLength": 1},
			"attribute": {"enum": ["value", "targetValue"]},
			"value": {}
		}
	}`,
	actionSubscribe: `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"action": {"const": "subscribe"},
			"requestId": {"type": "string"},
			"path": {"type": "string", "minLength": 1},
			"attribute": {"enum": ["value", "targetValue"]}
		}
	}`,
	actionUnsubscribe: `{
		"type": "object",
		"required": ["action", "requestId", "subscriptionId"],
		"properties": {
			"action": {"const": "unsubscribe"},
			"requestId": {"type": "string"},
			"subscriptionId": {"type": "string", "minLength": 1}
		}
	}`,
	actionGetMetaData: `{
		"type": "object",
		"required": ["action", "requestId", "path"],
		"properties": {
			"action": {"const": "getMetaData"},
			"requestId": {"type": "string"},
			"path": {"type": "string", "minLength": 1}
		}
	}`,
	actionUpdateMetaData: `{
		"type": "object",
		"required": ["action", "requestId", "path", "metadata"],
		"properties": {
			"action": {"const": "updateMetaData"},
			"requestId": {"type": "string"},
			"path": {"type": "string", "minLength": 1},
			"metadata": {"type": "object"}
		}
	}`,
	actionUpdateVSSTree: `{
		"type": "object",
		"required": ["action", "requestId", "metadata"],
		"properties": {
			"action": {"const": "updateVSSTree"},
			"requestId": {"type": "string"},
			"metadata": {"type": "object"}
		}
	}`,
}
