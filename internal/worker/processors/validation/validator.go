// Package validation authenticates and shape-checks inbound webhooks before
// they are queued.
package validation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"shopmirror/internal/logger"
	apperrors "shopmirror/pkg/errors"

	"go.uber.org/zap"
)

// reservedPrefix is used for sync jobs and never accepted from outside.
const reservedPrefix = "sync/"

type Validator struct {
	secret []byte
	logger *logger.Logger
}

func New(secret string, log *logger.Logger) *Validator {
	return &Validator{
		secret: []byte(secret),
		logger: log.Named("webhook-validator"),
	}
}

// Configured reports whether a shared secret is set.
func (v *Validator) Configured() bool {
	return len(v.secret) > 0
}

// Verify checks that signature is the base64 HMAC-SHA256 of body under the
// shared secret. The comparison runs in constant time.
func (v *Validator) Verify(body []byte, signature string) error {
	if !v.Configured() || signature == "" {
		return apperrors.ErrInvalidWebhookSignature
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		v.logger.Warn("malformed webhook signature")
		return apperrors.ErrInvalidWebhookSignature
	}
	if !hmac.Equal(got, mac(v.secret, body)) {
		v.logger.Warn("invalid webhook signature", zap.Int("body_bytes", len(body)))
		return apperrors.ErrInvalidWebhookSignature
	}
	return nil
}

// Sign returns the header value a sender computes for body.
func Sign(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(mac([]byte(secret), body))
}

func mac(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}

// CheckShape rejects requests without a usable topic or JSON object body.
func CheckShape(topic string, body []byte) error {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return &apperrors.ErrValidation{Message: "missing webhook topic"}
	case strings.HasPrefix(topic, reservedPrefix):
		return &apperrors.ErrValidation{Message: "reserved webhook topic", Fields: map[string]string{"topic": topic}}
	case len(body) == 0:
		return &apperrors.ErrValidation{Message: "empty webhook body"}
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return &apperrors.ErrValidation{Message: "webhook body is not a JSON object"}
	}
	return nil
}
