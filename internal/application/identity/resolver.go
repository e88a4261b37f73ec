package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-form-verify/internal/domain"
)

// Cookie names set by the login flows of each auth mode.
const (
	CookieSingpass   = "jwtSp"
	CookieCorppass   = "jwtCp"
	CookieSgid       = "jwtSgid"
	CookieSgidMyInfo = "jwtSgidMyInfo"
	CookieMyInfo     = "MyInfoCookie"
)

const myInfoStateSuccess = "success"

// Cookies maps cookie name to raw value for one request.
type Cookies map[string]string

// TokenVerifier validates a signed token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (map[string]any, error)
}

type Resolver interface {
	Resolve(ctx context.Context, authType domain.AuthType, cookies Cookies) (*domain.Assertion, error)
}

// Verifiers holds one verifier per auth mode. A nil verifier disables its mode.
type Verifiers struct {
	Singpass   TokenVerifier
	Corppass   TokenVerifier
	Sgid       TokenVerifier
	SgidMyInfo TokenVerifier
	MyInfo     TokenVerifier
}

// mode describes how one auth type carries and proves the respondent's identity.
type mode struct {
	cookie    string
	extract   func(raw string) (string, error)
	verifier  TokenVerifier
	normalize func(claims map[string]any) (*domain.Assertion, error)
}

type resolver struct {
	modes map[domain.AuthType]mode
}

func NewResolver(v Verifiers) Resolver {
	return &resolver{modes: map[domain.AuthType]mode{
		domain.AuthTypeSP: {
			cookie: CookieSingpass, extract: bearer, verifier: v.Singpass,
			normalize: subjectFrom(domain.AuthTypeSP, "userName", ""),
		},
		domain.AuthTypeCP: {
			cookie: CookieCorppass, extract: bearer, verifier: v.Corppass,
			normalize: subjectFrom(domain.AuthTypeCP, "userName", "userInfo"),
		},
		domain.AuthTypeSGID: {
			cookie: CookieSgid, extract: bearer, verifier: v.Sgid,
			normalize: subjectFrom(domain.AuthTypeSGID, "userName", ""),
		},
		domain.AuthTypeSGIDMyInfo: {
			cookie: CookieSgidMyInfo, extract: bearer, verifier: v.SgidMyInfo,
			normalize: subjectFrom(domain.AuthTypeSGIDMyInfo, "uinFin", ""),
		},
		domain.AuthTypeMyInfo: {
			cookie: CookieMyInfo, extract: myInfoAccessToken, verifier: v.MyInfo,
			normalize: subjectFrom(domain.AuthTypeMyInfo, "sub", ""),
		},
	}}
}

// Resolve returns the respondent identity for authType, or nil for forms without
// authentication.
func (r *resolver) Resolve(_ context.Context, authType domain.AuthType, cookies Cookies) (*domain.Assertion, error) {
	if authType == domain.AuthTypeNil || authType == "" {
		return nil, nil
	}
	m, ok := r.modes[authType]
	if !ok {
		return nil, fmt.Errorf("unsupported auth type %q: %w", authType, domain.ErrInvalidAssertion)
	}
	raw, ok := cookies[m.cookie]
	if !ok || raw == "" {
		return nil, fmt.Errorf("%s cookie absent: %w", m.cookie, domain.ErrMissingAssertion)
	}
	token, err := m.extract(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", m.cookie, domain.ErrMissingAssertion, err)
	}
	if m.verifier == nil {
		return nil, fmt.Errorf("no verifier for %s: %w", authType, domain.ErrInvalidAssertion)
	}
	claims, err := m.verifier.Verify(token)
	if err != nil {
		slog.Warn("identity assertion rejected", "auth_type", authType, "err", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidAssertion, err)
	}
	return m.normalize(claims)
}

func bearer(raw string) (string, error) {
	return strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "), nil
}

type myInfoCookie struct {
	State       string `json:"state"`
	AccessToken string `json:"accessToken"`
	UsedCount   int    `json:"usedCount"`
}

func myInfoAccessToken(raw string) (string, error) {
	var c myInfoCookie
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return "", fmt.Errorf("decode myinfo cookie: %w", err)
	}
	if c.State != myInfoStateSuccess || c.AccessToken == "" {
		return "", fmt.Errorf("myinfo login state %q", c.State)
	}
	return c.AccessToken, nil
}

func subjectFrom(authType domain.AuthType, subjectClaim, secondaryClaim string) func(map[string]any) (*domain.Assertion, error) {
	return func(claims map[string]any) (*domain.Assertion, error) {
		subject, _ := claims[subjectClaim].(string)
		if subject == "" {
			return nil, fmt.Errorf("claim %s missing: %w", subjectClaim, domain.ErrInvalidAssertion)
		}
		a := &domain.Assertion{AuthType: authType, Subject: subject}
		if secondaryClaim != "" {
			secondary, _ := claims[secondaryClaim].(string)
			if secondary == "" {
				return nil, fmt.Errorf("claim %s missing: %w", secondaryClaim, domain.ErrInvalidAssertion)
			}
			a.Secondary = secondary
		}
		return a, nil
	}
}
