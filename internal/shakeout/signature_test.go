package shakeout

import (
	"errors"
	"testing"
)

func TestCanonicalStringSortsAndDropsSignature(t *testing.T) {
	payload := map[string]any{
		"signature": "abc",
		"b":         "2",
		"a":         "1",
		"c":         true,
	}
	got := CanonicalString(payload)
	want := "a=1&b=2&c=true"
	if got != want {
		t.Fatalf("canonical string = %q, want %q", got, want)
	}
}

func TestSignatureOrderIndependent(t *testing.T) {
	bodyA := []byte(`{"data":{"invoice_id":"INV-1","amount":"100.00"},"extra":"x"}`)
	bodyB := []byte(`{"extra":"x","data":{"amount":"100.00","invoice_id":"INV-1"}}`)

	payloadA, err := DecodePayload(bodyA)
	if err != nil {
		t.Fatalf("decode A: %v", err)
	}
	payloadB, err := DecodePayload(bodyB)
	if err != nil {
		t.Fatalf("decode B: %v", err)
	}

	sigA := ComputeSignature(payloadA, "secret")
	sigB := ComputeSignature(payloadB, "secret")
	if sigA != sigB {
		t.Fatalf("signature depends on field order: %s vs %s", sigA, sigB)
	}
}

func TestSignaturePreservesNumberFormatting(t *testing.T) {
	withTrailing, err := DecodePayload([]byte(`{"amount":100.00}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bare, err := DecodePayload([]byte(`{"amount":100}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ComputeSignature(withTrailing, "s") == ComputeSignature(bare, "s") {
		t.Fatal("expected 100.00 and 100 to canonicalise differently")
	}
}

func TestVerifySignature(t *testing.T) {
	payload := map[string]any{
		"data": map[string]any{"invoice_id": "INV-9", "invoice_status": "paid"},
	}
	payload["signature"] = ComputeSignature(payload, "topsecret")

	ok, err := VerifySignature(payload, "topsecret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature to verify")
	}

	ok, err = VerifySignature(payload, "wrong-secret")
	if err != nil {
		t.Fatalf("verify with wrong secret: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch with wrong secret")
	}
}

func TestVerifySignatureMissing(t *testing.T) {
	_, err := VerifySignature(map[string]any{"data": map[string]any{}}, "s")
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	payload := map[string]any{
		"data": map[string]any{"invoice_id": "INV-9", "invoice_status": "pending"},
	}
	payload["signature"] = ComputeSignature(payload, "topsecret")
	payload["data"].(map[string]any)["invoice_status"] = "paid"

	ok, err := VerifySignature(payload, "topsecret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected tampered payload to fail verification")
	}
}
