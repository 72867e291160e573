// Package webhook verifies an inbound redeploy webhook's HMAC signature
// and triggers the deployment pipeline's redeploy path, following the
// platform's own GitHub webhook handler's signature-validation shape.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/glinrdock-paas/supervisor/internal/registry"
)

// ErrNotConfigured is returned when the target app has no webhook secret set.
var ErrNotConfigured = errors.New("webhook: app has no configured secret")

// ErrInvalidSignature is returned when the signature header is missing,
// malformed, or does not match the computed HMAC.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

const signaturePrefix = "sha256="

// Redeployer verifies signed webhook deliveries and triggers a redeploy.
type Redeployer struct {
	reg      *registry.Registry
	redeploy func(name string) error
}

// New builds a Redeployer. redeploy is called once signature verification
// succeeds; it is the deploy pipeline's Redeploy method.
func New(reg *registry.Registry, redeploy func(name string) error) *Redeployer {
	return &Redeployer{reg: reg, redeploy: redeploy}
}

// Handle verifies signature against body using appName's configured secret
// and, on success, triggers a redeploy.
func (r *Redeployer) Handle(appName string, body []byte, signature string) error {
	app, err := r.reg.Get(appName)
	if err != nil {
		return err
	}

	if err := VerifySignature(app.WebhookSecret, body, signature); err != nil {
		return err
	}

	return r.redeploy(appName)
}

// VerifySignature computes the HMAC-SHA256 of body with secret and compares
// it, in constant time, against the hex digest in signature (format
// "sha256=<hex>").
func VerifySignature(secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return ErrNotConfigured
	}
	if signature == "" {
		return ErrInvalidSignature
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return ErrInvalidSignature
	}

	expected, err := hex.DecodeString(signature[len(signaturePrefix):])
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	computed := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, computed) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
