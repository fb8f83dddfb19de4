package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	payload := []byte(`{"event":"subscription.authenticated"}`)
	secret := "whsec_test"

	sig := signPayload(payload, secret)
	assert.True(t, VerifyWebhookSignature(payload, sig, secret))
}

func TestVerifyWebhookSignature_UppercaseHexAccepted(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	secret := "whsec_test"

	sig := signPayload(payload, secret)
	upper := ""
	for _, r := range sig {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	assert.True(t, VerifyWebhookSignature(payload, upper, secret))
}

func TestVerifyWebhookSignature_Rejections(t *testing.T) {
	payload := []byte(`{"event":"subscription.cancelled","id":"evt_1"}`)
	secret := "whsec_test"
	sig := signPayload(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
	}{
		{"empty signature", payload, "", secret},
		{"empty secret", payload, sig, ""},
		{"wrong secret", payload, sig, "whsec_other"},
		{"garbage signature", payload, "deadbeef", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyWebhookSignature(tt.payload, tt.signature, tt.secret))
		})
	}
}

func TestVerifyWebhookSignature_SingleByteFlipRejected(t *testing.T) {
	payload := []byte(`{"event":"subscription.authenticated","id":"evt_2"}`)
	secret := "whsec_test"
	sig := signPayload(payload, secret)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] ^= 0x01
	assert.False(t, VerifyWebhookSignature(tampered, sig, secret))
}
