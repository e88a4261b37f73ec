package sso

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier checks RS256 tokens issued by one SSO provider.
type Verifier struct {
	key   jwk.Key
	clock func() time.Time
}

// NewVerifierFromFile loads the provider's PEM encoded public key.
func NewVerifierFromFile(path string) (*Verifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sso public key: %w", err)
	}
	key, err := jwk.ParseKey(b, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse sso public key: %w", err)
	}
	return &Verifier{key: key, clock: time.Now}, nil
}

func NewVerifier(pub *rsa.PublicKey) (*Verifier, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("jwk from raw: %w", err)
	}
	return &Verifier{key: key, clock: time.Now}, nil
}

// Verify validates signature and time claims and returns the token payload,
// registered claims included.
func (v *Verifier) Verify(token string) (map[string]any, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.RS256, v.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
	)
	if err != nil {
		return nil, fmt.Errorf("verify sso token: %w", err)
	}
	claims, err := tok.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read sso claims: %w", err)
	}
	return claims, nil
}
