package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-form-verify/internal/application/identity"
	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/id"
	"github.com/go-form-verify/internal/pkg/validate"
)

const keyTag = "required,max=64,printascii,excludesall=/ "

// transactionID returns the transactionId URL param, which must be a ULID.
func transactionID(r *http.Request) (string, error) {
	v := chi.URLParam(r, "transactionId")
	if !id.Valid(v) {
		return "", domain.ErrMalformedParams
	}
	return v, nil
}

// keyParam returns a form or field id URL param. These are minted by the form
// builder so only their shape is checked.
func keyParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if err := validate.Var(v, keyTag); err != nil {
		return "", domain.ErrMalformedParams
	}
	return v, nil
}

func requestCookies(r *http.Request) identity.Cookies {
	cookies := identity.Cookies{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}
