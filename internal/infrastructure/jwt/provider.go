package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// AttestationClaims is the payload of a verified-field attestation.
type AttestationClaims struct {
	TransactionID string `json:"transaction_id"`
	FormID        string `json:"form_id"`
	FieldID       string `json:"field_id"`
	Answer        string `json:"answer"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 attestations.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, issuer: cfg.AppName, now: time.Now}, nil
}

func (p *Provider) SignAttestation(a domain.Attestation) (string, error) {
	claims := AttestationClaims{
		TransactionID: a.TransactionID,
		FormID:        a.FormID,
		FieldID:       a.FieldID,
		Answer:        a.Answer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(a.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(p.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// VerifyAttestation checks the signature and expiry and returns the attested values.
func (p *Provider) VerifyAttestation(tokenStr string) (*domain.Attestation, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AttestationClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithIssuer(p.issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AttestationClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid attestation claims")
	}
	a := &domain.Attestation{
		TransactionID: claims.TransactionID,
		FormID:        claims.FormID,
		FieldID:       claims.FieldID,
		Answer:        claims.Answer,
	}
	if claims.ExpiresAt != nil {
		a.ExpiresAt = claims.ExpiresAt.Time
	}
	return a, nil
}
