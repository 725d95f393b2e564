package topup_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/topup"
	"pgregory.net/rapid"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_AcceptsValidSignature(t *testing.T) {
	svc := topup.NewService(nil, nil, "webhook-secret", logging.NewLogger("topup-test"))

	body := []byte(`{"gateway_ref":"abc","status":"completed"}`)
	if !svc.VerifySignature(body, sign("webhook-secret", body)) {
		t.Fatal("Valid signature rejected")
	}
}

func TestVerifySignature_RejectsWrongSecret(t *testing.T) {
	svc := topup.NewService(nil, nil, "webhook-secret", logging.NewLogger("topup-test"))

	body := []byte(`{"gateway_ref":"abc","status":"completed"}`)
	if svc.VerifySignature(body, sign("other-secret", body)) {
		t.Fatal("Signature from the wrong secret accepted")
	}
}

func TestVerifySignature_RejectsTamperedBody(t *testing.T) {
	svc := topup.NewService(nil, nil, "webhook-secret", logging.NewLogger("topup-test"))

	rapid.Check(t, func(t *rapid.T) {
		body := []byte(rapid.StringN(1, 256, 256).Draw(t, "body"))
		signature := sign("webhook-secret", body)

		// Flip one byte; the signature must no longer match.
		idx := rapid.IntRange(0, len(body)-1).Draw(t, "idx")
		tampered := append([]byte(nil), body...)
		tampered[idx] ^= 0x01

		if svc.VerifySignature(tampered, signature) {
			t.Fatal("Tampered body accepted")
		}
	})
}

func TestVerifySignature_RejectsGarbageSignature(t *testing.T) {
	svc := topup.NewService(nil, nil, "webhook-secret", logging.NewLogger("topup-test"))

	body := []byte(`{}`)
	for _, sig := range []string{"", "zz", "deadbeef"} {
		if svc.VerifySignature(body, sig) {
			t.Fatalf("Garbage signature %q accepted", sig)
		}
	}
}
