package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return key, string(pemBytes)
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, perms map[string]string, modifyTree bool, expiresIn time.Duration) string {
	t.Helper()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
		Permissions: perms,
		ModifyTree:  modifyTree,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestValidateAcceptsWellFormedToken(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	a := NewAuthenticator("", nil)
	if err := a.UpdatePublicKey(pubPEM); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}

	token := signTestToken(t, key, map[string]string{"Vehicle.Speed": "r"}, true, time.Hour)
	session := NewSession("conn-1", "ws")

	ttl, err := a.Validate(session, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("expected positive TTL, got %d", ttl)
	}
	if !session.IsAuthorized() {
		t.Fatal("expected session to become authorized")
	}
	if !session.Permissions().Check(mustPath(t, "Vehicle.Speed"), LetterRead) {
		t.Fatal("expected resolved permissions to grant read on Vehicle.Speed")
	}
	if !session.Permissions().ModifyTree() {
		t.Fatal("expected modify-tree bit to be resolved")
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	key, _ := generateTestKeyPair(t)
	_, otherPubPEM := generateTestKeyPair(t)

	a := NewAuthenticator("", nil)
	if err := a.UpdatePublicKey(otherPubPEM); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}

	token := signTestToken(t, key, map[string]string{}, false, time.Hour)
	session := NewSession("conn-2", "ws")

	ttl, err := a.Validate(session, token)
	if err == nil {
		t.Fatal("expected validation error for a token signed by a different key")
	}
	if ttl != -1 {
		t.Fatalf("expected TTL -1 on failure, got %d", ttl)
	}
	if session.IsAuthorized() {
		t.Fatal("expected session to remain unauthorized")
	}
}

func TestValidateWithNoKeyInstalled(t *testing.T) {
	a := NewAuthenticator("", nil)
	session := NewSession("conn-3", "ws")
	_, err := a.Validate(session, "anything")
	if err != ErrNoPublicKey {
		t.Fatalf("expected ErrNoPublicKey, got %v", err)
	}
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	a := NewAuthenticator("", nil)
	session := NewSession("conn-4", "ws")
	_, err := a.Validate(session, "")
	if err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestIsStillValidRevalidatesStoredToken(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	a := NewAuthenticator("", nil)
	if err := a.UpdatePublicKey(pubPEM); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}

	token := signTestToken(t, key, map[string]string{}, false, time.Hour)
	session := NewSession("conn-5", "ws")
	if _, err := a.Validate(session, token); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if !a.IsStillValid(session) {
		t.Fatal("expected still-valid token to re-validate")
	}

	// Disabling the key should invalidate the session on the next check.
	if err := a.UpdatePublicKey(""); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}
	if a.IsStillValid(session) {
		t.Fatal("expected IsStillValid to fail once the key is removed")
	}
	if session.IsAuthorized() {
		t.Fatal("expected session to transition back to unauthorized")
	}
}

func TestUpdatePublicKeyRejectsMalformedPEM(t *testing.T) {
	a := NewAuthenticator("", nil)
	if err := a.UpdatePublicKey("not a pem"); err == nil {
		t.Fatal("expected error for malformed PEM")
	}
}
