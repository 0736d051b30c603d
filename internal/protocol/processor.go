package protocol

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kuksa/vssbroker/internal/audit"
	"github.com/kuksa/vssbroker/internal/auth"
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/republish"
	"github.com/kuksa/vssbroker/internal/subscription"
	"github.com/kuksa/vssbroker/internal/tree"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// Processor is the Request Processor (spec.md §4.9): one instance per
// broker, shared by every connection's session. It owns no per-connection
// state itself — that lives on the *auth.Session the caller passes in —
// mirroring the trapperkeeper teacher's internal/core/api/service.go
// constructor-injected, stateless-beyond-its-deps Service.
type Processor struct {
	validator     *Validator
	tree          *tree.Tree
	authenticator *auth.Authenticator
	subscriptions *subscription.Registry
	republisher   republish.Republisher
	recorder      *audit.Recorder
	now           func() time.Time
	logger        *zap.Logger
}

// NewProcessor wires the Request Processor. A nil republisher installs
// republish.Noop; a nil logger installs zap.NewNop(); a nil recorder
// leaves audit logging a no-op (see audit.Recorder).
func NewProcessor(validator *Validator, t *tree.Tree, authenticator *auth.Authenticator, subs *subscription.Registry, republisher republish.Republisher, recorder *audit.Recorder, logger *zap.Logger) *Processor {
	if republisher == nil {
		republisher = republish.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		validator:     validator,
		tree:          t,
		authenticator: authenticator,
		subscriptions: subs,
		republisher:   republisher,
		recorder:      recorder,
		now:           time.Now,
		logger:        logger,
	}
}

// handler processes one already-schema-validated request and returns
// either a populated success envelope's fields or a BrokerError for the
// Processor to translate at the boundary.
type handler func(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError)

// Process decodes, validates, authorizes, and dispatches one raw request
// on behalf of session, returning a fully encoded JSON response (success
// or error envelope) ready to write back to the transport.
func (p *Processor) Process(session *auth.Session, raw []byte) []byte {
	action, doc, requestID, berr := p.validator.Decode(raw)
	if berr != nil {
		p.audit(session, action, doc, requestID, berr)
		return p.errorEnvelope(action, requestID, berr)
	}

	if action != actionAuthorize && !session.IsAuthorized() {
		berr := brokererr.New(brokererr.CodeInvalidToken, "session is not authorized")
		p.audit(session, action, doc, requestID, berr)
		return p.errorEnvelope(action, requestID, berr)
	}

	h, ok := p.dispatchTable()[action]
	if !ok {
		berr := brokererr.New(brokererr.CodeBadRequest, "unsupported action: "+action)
		p.audit(session, action, doc, requestID, berr)
		return p.errorEnvelope(action, requestID, berr)
	}

	fields, berr := h(session, requestID, doc)
	p.audit(session, action, doc, requestID, berr)
	if berr != nil {
		return p.errorEnvelope(action, requestID, berr)
	}
	return p.successEnvelope(action, requestID, fields)
}

// audit records one outcome row per request; a nil recorder makes this a
// no-op (audit.Recorder.Record tolerates a nil receiver).
func (p *Processor) audit(session *auth.Session, action string, doc map[string]any, requestID string, berr *brokererr.BrokerError) {
	rec := audit.Record{
		Action:    action,
		RequestID: requestID,
		Outcome:   "ok",
	}
	if session != nil {
		rec.ConnectionID = session.ConnectionID
	}
	if doc != nil {
		if pathStr, ok := doc["path"].(string); ok {
			rec.Path = pathStr
		}
	}
	if berr != nil {
		rec.Outcome = "error"
		rec.ErrorReason = berr.Reason()
	}
	p.recorder.Record(context.Background(), rec)
}

func (p *Processor) dispatchTable() map[string]handler {
	return map[string]handler{
		actionAuthorize:      p.handleAuthorize,
		actionGet:            p.handleGet,
		actionSet:            p.handleSet,
		actionSubscribe:      p.handleSubscribe,
		actionUnsubscribe:    p.handleUnsubscribe,
		actionGetMetaData:    p.handleGetMetaData,
		actionUpdateMetaData: p.handleUpdateMetaData,
		actionUpdateVSSTree:  p.handleUpdateVSSTree,
	}
}

// handleAuthorize validates the bearer token carried in "tokens" (spec.md
// §6 action catalog: field named tokens, singular bearer value) and
// installs the resolved permission set on session.
func (p *Processor) handleAuthorize(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	token, ok := extractToken(doc["tokens"])
	if !ok {
		return nil, brokererr.New(brokererr.CodeInvalidToken, "missing bearer token")
	}
	ttl, err := p.authenticator.Validate(session, token)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.CodeInvalidToken, "token validation failed", err)
	}
	return map[string]any{"TTL": ttl}, nil
}

// handleGet resolves path, checks read permission per-leaf, and returns
// the matched datapoints. A single non-wildcard leaf denied outright fails
// with no_access; a multi-leaf or wildcard query silently skips denied
// leaves (spec.md §4.9, §8 scenario S5). If nothing readable ever received
// a value, the whole response fails unavailable_data (scenario S1).
func (p *Processor) handleGet(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	path, attr, berr := pathAndAttribute(doc)
	if berr != nil {
		return nil, berr
	}

	leaves := p.tree.Leaves(path)
	if len(leaves) == 0 {
		return nil, brokererr.New(brokererr.CodePathNotFound, "path not found: "+path.String())
	}

	skipDenied := path.HasWildcard() || len(leaves) > 1
	perms := session.Permissions()
	var allowed []vsspath.Path
	for _, leaf := range leaves {
		if perms.Check(leaf, auth.LetterRead) {
			allowed = append(allowed, leaf)
			continue
		}
		if !skipDenied {
			return nil, brokererr.New(brokererr.CodeNoAccess, "no_access: "+path.String())
		}
	}
	if len(allowed) == 0 {
		return nil, brokererr.New(brokererr.CodeNoAccess, "no_access: "+path.String())
	}

	var dataPoints []any
	anyAvailable := false
	for _, leaf := range allowed {
		dps, berr := p.tree.GetSignal(leaf, attr)
		if berr != nil {
			continue
		}
		for _, dp := range dps {
			if dp.Available {
				anyAvailable = true
			}
			dataPoints = append(dataPoints, datapointToJSON(attr, dp))
		}
	}
	if !anyAvailable {
		return nil, brokererr.New(brokererr.CodeUnavailableData, "unavailable_data: "+path.String())
	}

	if len(dataPoints) == 1 && !path.HasWildcard() && len(leaves) == 1 {
		return map[string]any{"data": dataPoints[0]}, nil
	}
	return map[string]any{"data": dataPoints}, nil
}

// handleSet type-checks and writes exactly one leaf, gated by writability,
// then permission, per spec.md §4.9's ordering (path existence and kind
// before the permission check, so a forbidden branch write reports the
// branch error rather than leaking a permission denial — scenario S3).
func (p *Processor) handleSet(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	path, attr, berr := pathAndAttribute(doc)
	if berr != nil {
		return nil, berr
	}
	if !p.tree.Exists(path) {
		return nil, brokererr.New(brokererr.CodePathNotFound, "path not found: "+path.String())
	}
	if !p.tree.IsWritable(path) {
		return nil, brokererr.New(brokererr.CodeForbidden, "only sensor or actuator leaves can be set: "+path.String())
	}
	if !p.tree.IsAttributable(path, attr) {
		return nil, brokererr.New(brokererr.CodeForbidden, "targetValue may only be set on an actuator: "+path.String())
	}
	if !session.Permissions().Check(path, auth.LetterWrite) {
		return nil, brokererr.New(brokererr.CodeNoAccess, "no_access: "+path.String())
	}

	if berr := p.tree.SetSignal(path, attr, doc["value"]); berr != nil {
		return nil, berr
	}

	p.republishSet(path, attr, doc["value"])
	return map[string]any{}, nil
}

func (p *Processor) republishSet(path vsspath.Path, attr tree.Attribute, value any) {
	datatype, berr := p.tree.DatatypeOf(path)
	if berr != nil {
		return
	}
	p.republisher.Republish(republish.Event{
		Path:      path,
		Datatype:  datatype,
		Attribute: string(attr),
		Value:     value,
		TsNanos:   p.now().UnixNano(),
	})
}

// handleSubscribe registers session for change notifications at path,
// delegating the exists/readable/permission checks to the registry
// (spec.md §4.3 "Subscribe" shares the get path's validation).
func (p *Processor) handleSubscribe(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	path, attr, berr := pathAndAttribute(doc)
	if berr != nil {
		return nil, berr
	}
	id, berr := p.subscriptions.Subscribe(session, p.tree, path, attr)
	if berr != nil {
		return nil, berr
	}
	return map[string]any{"subscriptionId": id}, nil
}

// handleUnsubscribe tears down one subscription. A malformed or unknown id
// reports a dedicated 400/"Unknown" error rather than bad_request or
// no_access (spec.md §6 "on unknown id respond with a 400 Unknown error").
func (p *Processor) handleUnsubscribe(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	idStr, _ := doc["subscriptionId"].(string)
	if _, err := uuid.Parse(idStr); err != nil {
		return nil, brokererr.New(brokererr.CodeUnknownID, "unknown subscriptionId: "+idStr)
	}
	if !p.subscriptions.Unsubscribe(idStr) {
		return nil, brokererr.New(brokererr.CodeUnknownID, "unknown subscriptionId: "+idStr)
	}
	return map[string]any{"subscriptionId": idStr}, nil
}

// handleGetMetaData is always allowed once authorized — metadata carries no
// permission check of its own (spec.md §4.9 "getMetaData: always allowed,
// metadata is not sensitive").
func (p *Processor) handleGetMetaData(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	pathStr, _ := doc["path"].(string)
	path, err := vsspath.New(pathStr)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.CodeBadRequest, "invalid path", err)
	}
	view, berr := p.tree.GetMetaData(path)
	if berr != nil {
		return nil, berr
	}
	return map[string]any{"metadata": metadataViewToJSON(view)}, nil
}

// handleUpdateMetaData requires the modify-tree capability and shallow-
// merges the patch into exactly one leaf (spec.md §8 scenario S6).
func (p *Processor) handleUpdateMetaData(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	if !session.Permissions().ModifyTree() {
		return nil, brokererr.New(brokererr.CodeNoAccess, "modify-tree capability required")
	}
	pathStr, _ := doc["path"].(string)
	path, err := vsspath.New(pathStr)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.CodeBadRequest, "invalid path", err)
	}
	metaRaw, _ := doc["metadata"].(map[string]any)
	if berr := p.tree.UpdateMetaData(path, metadataPatchFromJSON(metaRaw)); berr != nil {
		return nil, berr
	}
	return map[string]any{}, nil
}

// handleUpdateVSSTree requires the modify-tree capability and deep-merges
// a whole patch document into the live tree (spec.md §4.3 "never removes
// keys, only adds or replaces").
func (p *Processor) handleUpdateVSSTree(session *auth.Session, requestID string, doc map[string]any) (map[string]any, *brokererr.BrokerError) {
	if !session.Permissions().ModifyTree() {
		return nil, brokererr.New(brokererr.CodeNoAccess, "modify-tree capability required")
	}
	metaRaw, ok := doc["metadata"]
	if !ok {
		return nil, brokererr.New(brokererr.CodeBadRequest, "missing metadata")
	}
	patchBytes, err := json.Marshal(metaRaw)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.CodeBadRequest, "invalid metadata", err)
	}
	result, berr := p.tree.UpdateVSSTree(patchBytes)
	if berr != nil {
		return nil, berr
	}
	p.logger.Info("updateVSSTree merge complete",
		zap.Int("added", len(result.Added)),
		zap.Int("replaced", len(result.Replaced)),
	)
	return map[string]any{}, nil
}

func pathAndAttribute(doc map[string]any) (vsspath.Path, tree.Attribute, *brokererr.BrokerError) {
	pathStr, _ := doc["path"].(string)
	path, err := vsspath.New(pathStr)
	if err != nil {
		return vsspath.Path{}, "", brokererr.Wrap(brokererr.CodeBadRequest, "invalid path", err)
	}
	attr := tree.AttrValue
	if s, ok := doc["attribute"].(string); ok && s == string(tree.AttrTargetValue) {
		attr = tree.AttrTargetValue
	}
	return path, attr, nil
}

func extractToken(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case []any:
		if len(v) == 0 {
			return "", false
		}
		s, ok := v[0].(string)
		return s, ok && s != ""
	default:
		return "", false
	}
}

// datapointToJSON renders a {path, dp} response entry. The value is rendered
// to its canonical string form (spec.md §4.3 "getSignal(path, attr,
// asString)", confirmed against original_source/kuksa-val-server/test/
// unit-test/Gen2GetTests.cpp's "100.0" expectation for a float leaf set to
// "100"), under the key matching the requested attribute so a targetValue
// read echoes "targetValue", not "value".
func datapointToJSON(attr tree.Attribute, dp tree.Datapoint) map[string]any {
	return map[string]any{
		"path": dp.Path.String(),
		"dp": map[string]any{
			string(attr): vss.AsString(dp.Datatype, dp.Value),
			"ts":         dp.Timestamp,
		},
	}
}

func metadataPatchFromJSON(raw map[string]any) tree.MetadataPatch {
	var patch tree.MetadataPatch
	if v, ok := raw["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := raw["unit"].(string); ok {
		patch.Unit = &v
	}
	if v, ok := raw["min"].(float64); ok {
		patch.Min = &v
	}
	if v, ok := raw["max"].(float64); ok {
		patch.Max = &v
	}
	if v, ok := raw["allowed"].([]any); ok {
		patch.Allowed = v
	}
	if v, ok := raw["enum"].([]any); ok && patch.Allowed == nil {
		patch.Allowed = v
	}
	if v, hasDefault := raw["default"]; hasDefault {
		patch.Default = v
		patch.HasDefault = true
	}
	return patch
}

func metadataViewToJSON(v *tree.MetadataView) map[string]any {
	out := map[string]any{}
	if v.Description != "" {
		out["description"] = v.Description
	}
	if v.UUID != "" {
		out["uuid"] = v.UUID
	}
	if v.Meta != nil {
		out["type"] = v.Kind.String()
		out["datatype"] = v.Meta.Datatype.String()
		if v.Meta.Unit != "" {
			out["unit"] = v.Meta.Unit
		}
		if v.Meta.Min != nil {
			out["min"] = *v.Meta.Min
		}
		if v.Meta.Max != nil {
			out["max"] = *v.Meta.Max
		}
		if len(v.Meta.Allowed) > 0 {
			out["allowed"] = v.Meta.Allowed
		}
		if v.Meta.Default != nil {
			out["default"] = v.Meta.Default
		}
		return out
	}
	out["type"] = "branch"
	children := make(map[string]any, len(v.Children))
	for name, child := range v.Children {
		children[name] = metadataViewToJSON(child)
	}
	out["children"] = children
	return out
}

// successEnvelope stamps the shared action/requestId/ts fields and merges
// in the handler's own result fields (spec.md §6).
func (p *Processor) successEnvelope(action, requestID string, fields map[string]any) []byte {
	out := map[string]any{
		"action":    action,
		"requestId": requestID,
		"ts":        vss.TimestampToISO(p.now().UnixNano()),
	}
	for k, v := range fields {
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return p.errorEnvelope(action, requestID, brokererr.Wrap(brokererr.CodeUnknown, "failed to encode response", err))
	}
	return b
}

// errorEnvelope builds the {action?, requestId, ts, error} shape spec.md
// §6 requires. action is omitted when it could not even be determined
// (e.g. malformed JSON).
func (p *Processor) errorEnvelope(action, requestID string, berr *brokererr.BrokerError) []byte {
	out := map[string]any{
		"requestId": requestID,
		"ts":        vss.TimestampToISO(p.now().UnixNano()),
		"error": map[string]any{
			"number":  berr.Number(),
			"reason":  berr.Reason(),
			"message": berr.Message,
		},
	}
	if action != "" {
		out["action"] = action
	}
	b, err := json.Marshal(out)
	if err != nil {
		p.logger.Error("failed to encode error envelope", zap.Error(err))
		return []byte(`{"requestId":"UNKNOWN","error":{"number":"500","reason":"unknown","message":"internal encoding failure"}}`)
	}
	return b
}
