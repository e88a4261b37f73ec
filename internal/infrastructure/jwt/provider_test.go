package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeys(t *testing.T, key *rsa.PrivateKey) *config.Config {
	t.Helper()
	dir := t.TempDir()
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	cfg := &config.Config{
		AppName:           "FormSG",
		JWTPrivateKeyPath: filepath.Join(dir, "private.pem"),
		JWTPublicKeyPath:  filepath.Join(dir, "public.pem"),
	}
	require.NoError(t, os.WriteFile(cfg.JWTPrivateKeyPath, priv, 0o600))
	require.NoError(t, os.WriteFile(cfg.JWTPublicKeyPath, pub, 0o600))
	return cfg
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p, err := NewProvider(writeKeys(t, key))
	require.NoError(t, err)
	return p
}

func TestAttestation_RoundTrip(t *testing.T) {
	p := newTestProvider(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	signed, err := p.SignAttestation(domain.Attestation{
		TransactionID: "txn", FormID: "form", FieldID: "field", Answer: "a@b.com", ExpiresAt: exp,
	})
	require.NoError(t, err)

	got, err := p.VerifyAttestation(signed)
	require.NoError(t, err)
	assert.Equal(t, "txn", got.TransactionID)
	assert.Equal(t, "form", got.FormID)
	assert.Equal(t, "field", got.FieldID)
	assert.Equal(t, "a@b.com", got.Answer)
	assert.True(t, exp.Equal(got.ExpiresAt))
}

func TestAttestation_Expired(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.SignAttestation(domain.Attestation{FormID: "form", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	_, err = p.VerifyAttestation(signed)
	assert.Error(t, err)
}

func TestAttestation_OtherKeyRejected(t *testing.T) {
	a, b := newTestProvider(t), newTestProvider(t)
	signed, err := a.SignAttestation(domain.Attestation{FormID: "form", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = b.VerifyAttestation(signed)
	assert.Error(t, err)
}

func TestNewProvider_MissingKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)
}
