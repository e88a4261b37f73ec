package handler

import (
	"net/http"

	"github.com/go-form-verify/internal/application/submission"
	"github.com/go-form-verify/internal/domain"
)

const msgSubmissionSuccess = "Form submission successful."

type submitRequest struct {
	EncryptedContent string               `json:"encryptedContent" validate:"required"`
	Version          int                  `json:"version" validate:"min=0"`
	Responses        []domain.Response    `json:"responses" validate:"dive"`
	Attachments      map[string]string    `json:"attachments"`
	PaymentProducts  []domain.ProductItem `json:"paymentProducts" validate:"dive"`
	Amount           int64                `json:"amount" validate:"min=0"`
}

type SubmissionHandler struct {
	svc  submission.Service
	errs ErrorMapper
}

func NewSubmissionHandler(svc submission.Service, errs ErrorMapper) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, errs: errs}
}

// SubmitEncrypted accepts an encrypted submission. Forms with payments enabled
// return the payment id and provider client secret alongside the submission id.
func (h *SubmissionHandler) SubmitEncrypted(w http.ResponseWriter, r *http.Request) {
	formID, err := keyParam(r, "formId")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	res, err := h.svc.SubmitEncrypted(r.Context(), submission.SubmitParams{
		FormID:           formID,
		EncryptedContent: req.EncryptedContent,
		Version:          req.Version,
		Responses:        req.Responses,
		Attachments:      req.Attachments,
		Cookies:          requestCookies(r),
		Products:         req.PaymentProducts,
		AmountCents:      req.Amount,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	env := SubmissionEnvelope{
		Message:      msgSubmissionSuccess,
		SubmissionID: res.SubmissionID,
		Timestamp:    res.CreatedAt.UnixMilli(),
	}
	if res.PaymentID != "" {
		env.PaymentData = &PaymentData{PaymentID: res.PaymentID, ClientSecret: res.ClientSecret}
	}
	writeJSON(w, http.StatusOK, env)
}
