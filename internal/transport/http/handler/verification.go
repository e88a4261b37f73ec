package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-form-verify/internal/application/identity"
	"github.com/go-form-verify/internal/application/verification"
	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/validate"
	"github.com/go-form-verify/internal/transport/http/middleware"
)

type generateOtpRequest struct {
	Answer string `json:"answer" validate:"required,max=320"`
}

type verifyOtpRequest struct {
	Otp string `json:"otp" validate:"required,len=6,numeric"`
}

// VerificationHandler serves the transaction and OTP endpoints.
type VerificationHandler struct {
	svc      verification.Service
	identity identity.Resolver
	errs     ErrorMapper
}

func NewVerificationHandler(svc verification.Service, resolver identity.Resolver, errs ErrorMapper) *VerificationHandler {
	return &VerificationHandler{svc: svc, identity: resolver, errs: errs}
}

func (h *VerificationHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	formID, err := keyParam(r, "formId")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	txn, err := h.svc.CreateTransaction(r.Context(), formID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if txn == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusCreated, TransactionEnvelope{TransactionID: txn.TransactionID, ExpireAt: txn.ExpireAt})
}

func (h *VerificationHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID, err := transactionID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	txn, err := h.svc.GetTransactionMetadata(r.Context(), txID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionMetadataEnvelope{FormID: txn.FormID, ExpireAt: txn.ExpireAt})
}

// GenerateOtp resolves the respondent's identity when the form requires it, then
// issues an OTP for the field.
func (h *VerificationHandler) GenerateOtp(w http.ResponseWriter, r *http.Request) {
	txID, fieldID, err := fieldParams(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req generateOtpRequest
	if err := decodeBody(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	form, err := h.svc.FormForTransaction(r.Context(), txID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if _, err := h.identity.Resolve(r.Context(), form.AuthType, requestCookies(r)); err != nil {
		h.errs.write(w, r, err)
		return
	}

	prefix, err := verification.NewOtpPrefix()
	if err != nil {
		h.errs.write(w, r, fmt.Errorf("otp prefix: %w", err))
		return
	}
	_, err = h.svc.SendNewOtp(r.Context(), verification.SendOtpParams{
		TransactionID: txID,
		FieldID:       fieldID,
		Recipient:     req.Answer,
		SenderIP:      middleware.ClientIP(r),
		OtpPrefix:     prefix,
		Form:          form,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, OtpPrefixEnvelope{OtpPrefix: prefix})
}

func (h *VerificationHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	txID, fieldID, err := fieldParams(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req verifyOtpRequest
	if err := decodeBody(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	signed, err := h.svc.VerifyOtp(r.Context(), txID, fieldID, req.Otp)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (h *VerificationHandler) ResetField(w http.ResponseWriter, r *http.Request) {
	txID, fieldID, err := fieldParams(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.svc.ResetField(r.Context(), txID, fieldID); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fieldParams(r *http.Request) (string, string, error) {
	txID, err := transactionID(r)
	if err != nil {
		return "", "", err
	}
	fieldID, err := keyParam(r, "fieldId")
	if err != nil {
		return "", "", err
	}
	return txID, fieldID, nil
}

// decodeBody decodes and validates a JSON body. Any failure is ErrMalformedParams.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", domain.ErrMalformedParams)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrMalformedParams)
	}
	return nil
}
