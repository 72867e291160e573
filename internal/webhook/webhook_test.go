package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinrdock-paas/supervisor/internal/registry"
)

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	secret := []byte("abc123")
	body := []byte(`{"ref":"refs/heads/main"}`)
	assert.NoError(t, VerifySignature(secret, body, sign(secret, body)))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	sig := sign([]byte("zzz"), body)
	assert.ErrorIs(t, VerifySignature([]byte("abc123"), body, sig), ErrInvalidSignature)
}

func TestVerifySignatureRejectsMissingHeader(t *testing.T) {
	assert.ErrorIs(t, VerifySignature([]byte("abc123"), []byte("x"), ""), ErrInvalidSignature)
}

func TestVerifySignatureRejectsNoSecretConfigured(t *testing.T) {
	assert.ErrorIs(t, VerifySignature(nil, []byte("x"), "sha256=deadbeef"), ErrNotConfigured)
}

func TestHandleTriggersRedeployOnValidSignature(t *testing.T) {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "apps.json"))
	require.NoError(t, err)

	secret := []byte("shh")
	require.NoError(t, reg.Create(registry.App{Name: "site", Port: 5300, WebhookSecret: secret}))

	called := false
	r := New(reg, func(name string) error {
		called = true
		assert.Equal(t, "site", name)
		return nil
	})

	body := []byte(`push`)
	require.NoError(t, r.Handle("site", body, sign(secret, body)))
	assert.True(t, called)
}

func TestHandleRejectsBadSignatureWithoutRedeploying(t *testing.T) {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "apps.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Create(registry.App{Name: "site", Port: 5300, WebhookSecret: []byte("shh")}))

	called := false
	r := New(reg, func(name string) error {
		called = true
		return nil
	})

	err = r.Handle("site", []byte("push"), "sha256=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, called)
}
