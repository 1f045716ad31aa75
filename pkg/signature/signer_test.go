package signature

import "testing"

func TestSignIsDeterministic(t *testing.T) {
	payload := []byte(`{"orderId":"ord_1"}`)
	secret := "0123456789abcdef0123456789abcdef"

	first := Sign(payload, secret)
	second := Sign(payload, secret)
	if first != second {
		t.Errorf("same payload+secret produced different signatures: %s vs %s", first, second)
	}
}

func TestSignChangesWithPayload(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	a := Sign([]byte(`{"orderId":"ord_1"}`), secret)
	b := Sign([]byte(`{"orderId":"ord_2"}`), secret)
	if a == b {
		t.Error("different payloads produced the same signature")
	}
}

func TestSignChangesWithSecret(t *testing.T) {
	payload := []byte(`{"orderId":"ord_1"}`)
	a := Sign(payload, "0123456789abcdef0123456789abcdef")
	b := Sign(payload, "fedcba9876543210fedcba9876543210")
	if a == b {
		t.Error("different secrets produced the same signature")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"orderId":"ord_1"}`)
	secret := "0123456789abcdef0123456789abcdef"
	sig := Sign(payload, secret)

	if !Verify(payload, secret, sig) {
		t.Error("expected signature to verify")
	}
	if Verify(payload, secret, sig+"00") {
		t.Error("expected tampered signature to fail verification")
	}
}
