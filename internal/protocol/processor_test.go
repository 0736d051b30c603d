package protocol

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kuksa/vssbroker/internal/auth"
	"github.com/kuksa/vssbroker/internal/subscription"
	"github.com/kuksa/vssbroker/internal/tree"
)

const testDefinition = `{
  "Vehicle": {
    "type": "branch",
    "children": {
      "Speed": {"type": "sensor", "datatype": "float", "uuid": "d4e5f6"},
      "Cabin": {"type": "branch", "children": {
        "Door": {"type": "actuator", "datatype": "boolean", "uuid": "aabbcc"},
        "Lateral": {"type": "sensor", "datatype": "float", "uuid": "ddeeff"}
      }},
      "Mode": {"type": "attribute", "datatype": "string", "uuid": "001122", "allowed": ["eco", "sport"], "default": "eco"}
    }
  }
}`

type discardSink struct{}

func (discardSink) Deliver(subscription.Notification) error { return nil }

func buildTree(t *testing.T) *tree.Tree {
	t.Helper()
	root, err := tree.ParseDefinition([]byte(testDefinition))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	return tree.New(root, nil)
}

func authorizedSession(t *testing.T, perms map[string]string, modifyTree bool) *auth.Session {
	t.Helper()
	compiled, _ := auth.CompilePermissions(perms, modifyTree)
	return auth.NewAuthorizedSession("conn-1", "test", compiled)
}

func newTestProcessor(t *testing.T, tr *tree.Tree) (*Processor, *subscription.Registry) {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	reg := subscription.New(discardSink{}, 16, nil)
	tr.SetPublisher(reg)
	authenticator := auth.NewAuthenticator("", nil)
	p := NewProcessor(v, tr, authenticator, reg, nil, nil, nil)
	return p, reg
}

func decodeResponse(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode response: %v, raw=%s", err, raw)
	}
	return out
}

func requireError(t *testing.T, out map[string]any, number string) map[string]any {
	t.Helper()
	errField, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %+v", out)
	}
	if number != "" && errField["number"] != number {
		t.Fatalf("expected error number %s, got %v", number, errField["number"])
	}
	return errField
}

// S1: a single sensor's get, before any set, fails unavailable_data.
func TestScenarioSingleSensorUnavailableBeforeSet(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "r"}, false)

	req := []byte(`{"action":"get","requestId":"1","path":"Vehicle.Speed"}`)
	out := decodeResponse(t, p.Process(session, req))

	errField := requireError(t, out, "404")
	if errField["reason"] != "unavailable_data" {
		t.Fatalf("expected unavailable_data reason, got %+v", errField)
	}
	if out["requestId"] != "1" {
		t.Fatalf("expected requestId echoed, got %+v", out)
	}
}

// S2: set then get round-trips the same value.
func TestScenarioSetThenGetRoundTrips(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "rw"}, false)

	setReq := []byte(`{"action":"set","requestId":"2","path":"Vehicle.Speed","value":42.5}`)
	setOut := decodeResponse(t, p.Process(session, setReq))
	if _, hasErr := setOut["error"]; hasErr {
		t.Fatalf("unexpected set error: %+v", setOut)
	}

	getReq := []byte(`{"action":"get","requestId":"3","path":"Vehicle.Speed"}`)
	getOut := decodeResponse(t, p.Process(session, getReq))
	data, ok := getOut["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected single data object, got %+v", getOut)
	}
	dp, ok := data["dp"].(map[string]any)
	if !ok {
		t.Fatalf("expected dp object, got %+v", data)
	}
	if dp["value"] != "42.5" {
		t.Fatalf("expected round-tripped value %q, got %v", "42.5", dp["value"])
	}
}

// S3: setting a branch path is rejected with a forbidden message, not a
// permission error.
func TestScenarioBranchSetRejectedForbidden(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.*": "rw"}, false)

	req := []byte(`{"action":"set","requestId":"4","path":"Vehicle.Cabin","value":"x"}`)
	out := decodeResponse(t, p.Process(session, req))
	requireError(t, out, "403")
}

// S4 (request side): subscribe returns a subscriptionId, and a later set on
// the subscribed leaf succeeds while the Publisher Loop is running. The sink
// here discards notifications, so delivery itself is not observed; the
// subscription package's tests cover delivery.
func TestScenarioSubscribeThenSetSucceeds(t *testing.T) {
	tr := buildTree(t)
	p, reg := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "rw"}, false)

	subReq := []byte(`{"action":"subscribe","requestId":"5","path":"Vehicle.Speed"}`)
	subOut := decodeResponse(t, p.Process(session, subReq))
	if _, hasErr := subOut["error"]; hasErr {
		t.Fatalf("unexpected subscribe error: %+v", subOut)
	}
	if subOut["subscriptionId"] == nil || subOut["subscriptionId"] == "" {
		t.Fatalf("expected a subscriptionId, got %+v", subOut)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg.Start(ctx, nil)
	defer reg.Stop()

	setReq := []byte(`{"action":"set","requestId":"6","path":"Vehicle.Speed","value":10.0}`)
	if out := decodeResponse(t, p.Process(session, setReq)); out["error"] != nil {
		t.Fatalf("unexpected set error: %+v", out)
	}

	// Publisher loop delivery is asynchronous; give it a moment.
	time.Sleep(50 * time.Millisecond)
}

// S5: a wildcard get with mixed permissions silently skips the denied leaf
// and returns data for the permitted one.
func TestScenarioWildcardGetMixedPermissions(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Cabin.Lateral": "rw"}, false)

	setReq := []byte(`{"action":"set","requestId":"7","path":"Vehicle.Cabin.Lateral","value":1.5}`)
	if out := decodeResponse(t, p.Process(session, setReq)); out["error"] != nil {
		t.Fatalf("unexpected set error: %+v", out)
	}

	getReq := []byte(`{"action":"get","requestId":"8","path":"Vehicle.Cabin.*"}`)
	out := decodeResponse(t, p.Process(session, getReq))
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("unexpected wildcard get error: %+v", out)
	}
	data, ok := out["data"].([]any)
	if !ok {
		t.Fatalf("expected a data array for a wildcard get, got %+v", out)
	}
	if len(data) != 1 {
		t.Fatalf("expected exactly one readable leaf in the result, got %d: %+v", len(data), data)
	}
}

// S6: updateMetaData changes a leaf's max bound and the change is visible
// through getMetaData.
func TestScenarioUpdateMetaDataMaxChange(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "rw"}, true)

	req := []byte(`{"action":"updateMetaData","requestId":"9","path":"Vehicle.Speed","metadata":{"max":200}}`)
	out := decodeResponse(t, p.Process(session, req))
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("unexpected updateMetaData error: %+v", out)
	}

	metaReq := []byte(`{"action":"getMetaData","requestId":"10","path":"Vehicle.Speed"}`)
	metaOut := decodeResponse(t, p.Process(session, metaReq))
	metadata, ok := metaOut["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata object, got %+v", metaOut)
	}
	children, _ := metadata["children"].(map[string]any)
	speedMeta, ok := children["Speed"].(map[string]any)
	if !ok {
		t.Fatalf("expected Speed metadata, got %+v", metadata)
	}
	if speedMeta["max"] != float64(200) {
		t.Fatalf("expected max=200 after updateMetaData, got %v", speedMeta["max"])
	}
}

func TestUpdateMetaDataRequiresModifyTreeCapability(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "rw"}, false)

	req := []byte(`{"action":"updateMetaData","requestId":"11","path":"Vehicle.Speed","metadata":{"max":1}}`)
	out := decodeResponse(t, p.Process(session, req))
	requireError(t, out, "403")
}

func TestUnsubscribeUnknownIDReturns400Unknown(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "r"}, false)

	req := []byte(`{"action":"unsubscribe","requestId":"12","subscriptionId":"does-not-exist"}`)
	out := decodeResponse(t, p.Process(session, req))
	errField := requireError(t, out, "400")
	if errField["reason"] != "Unknown" {
		t.Fatalf("expected reason Unknown, got %+v", errField)
	}
}

func TestMalformedJSONEchoesUnknownRequestID(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, nil, false)

	out := decodeResponse(t, p.Process(session, []byte(`{not json`)))
	if out["requestId"] != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN requestId, got %+v", out)
	}
	requireError(t, out, "400")
}

func TestSchemaViolationMissingPathIsBadRequest(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := authorizedSession(t, map[string]string{"Vehicle.Speed": "r"}, false)

	req := []byte(`{"action":"get","requestId":"13"}`)
	out := decodeResponse(t, p.Process(session, req))
	requireError(t, out, "400")
}

func TestUnauthorizedSessionRejectedBeforeDispatch(t *testing.T) {
	tr := buildTree(t)
	p, _ := newTestProcessor(t, tr)
	session := auth.NewSession("conn-2", "test")

	req := []byte(`{"action":"get","requestId":"14","path":"Vehicle.Speed"}`)
	out := decodeResponse(t, p.Process(session, req))
	requireError(t, out, "401")
}

func TestAuthorizeEstablishesSessionPermissions(t *testing.T) {
	tr := buildTree(t)
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	reg := subscription.New(discardSink{}, 16, nil)
	tr.SetPublisher(reg)
	authenticator := auth.NewAuthenticator("", nil)

	key, pubPEM := generateTestKeyPair(t)
	if err := authenticator.UpdatePublicKey(pubPEM); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}
	p := NewProcessor(v, tr, authenticator, reg, nil, nil, nil)

	token := signTestToken(t, key, map[string]string{"Vehicle.Speed": "r"}, false, time.Hour)
	session := auth.NewSession("conn-3", "test")

	req, _ := json.Marshal(map[string]any{
		"action":    "authorize",
		"requestId": "15",
		"tokens":    token,
	})
	out := decodeResponse(t, p.Process(session, req))
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("unexpected authorize error: %+v", out)
	}
	if !session.IsAuthorized() {
		t.Fatal("expected session to be authorized after a valid token")
	}

	getReq := []byte(`{"action":"get","requestId":"16","path":"Vehicle.Speed"}`)
	getOut := decodeResponse(t, p.Process(session, getReq))
	requireError(t, getOut, "404") // unavailable_data, not no_access or unauthorized
}

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return key, string(pemBytes)
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, perms map[string]string, modifyTree bool, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"exp":         time.Now().Add(ttl).Unix(),
		"permissions": perms,
		"modifyTree":  modifyTree,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}
