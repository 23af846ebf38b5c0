package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

// sign returns the plain-hex HMAC-SHA256 of body.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"ref":"main"}`)
	expectedSig := sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{"plain hex", body, expectedSig, secret, false},
		{"github format", body, "sha256=" + expectedSig, secret, false},
		{"wrong signature", body, "0000000000000000000000000000000000000000000000000000000000000000", secret, true},
		{"tampered body", []byte(`{"ref":"evil"}`), expectedSig, secret, true},
		{"wrong secret", body, expectedSig, "other-secret", true},
		{"empty signature", body, "", secret, true},
		{"empty secret", body, expectedSig, "", true},
		{"not hex", body, "sha256=zzzz", secret, true},
		{"truncated", body, expectedSig[:32], secret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != errVerification {
				t.Errorf("verifySignature() leaked detail: %v", err)
			}
		})
	}
}
