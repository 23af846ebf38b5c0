package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// errVerification is deliberately uninformative; callers answer 403.
var errVerification = errors.New("webhook verification failed")

// verifySignature checks an HMAC-SHA256 of body. The signature may be plain
// hex or GitHub's "sha256=<hex>".
func verifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}

	actual, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errVerification
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), actual) {
		return errVerification
	}
	return nil
}
