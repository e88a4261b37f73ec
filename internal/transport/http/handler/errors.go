package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-form-verify/internal/domain"
)

// Client-facing copy. The frontend matches on some of these strings.
const (
	msgGenericRefresh   = "Sorry, something went wrong. Please refresh and try again."
	msgGenericRetry     = "Sorry, something went wrong. Please try again."
	msgSessionExpired   = "Your session has expired, please refresh and try again."
	msgMissingHashData  = "Field could not be verified. Please request a new OTP."
	msgFormOutdated     = "Sorry, this form is outdated. Please refresh your browser to get the latest version of the form."
	msgInvalidNumber    = "This phone number does not seem to be valid. Please try again with a valid phone number."
	msgSendFailure      = "Sorry, we could not send an OTP to this contact. Please check it and try again."
	msgWaitForOtp       = "You must wait for %d seconds between each OTP request."
	msgOtpExpired       = "Your OTP has expired, please request for a new one."
	msgRetryExceeded    = "You have entered too many invalid OTPs. Please request for a new OTP and try again."
	msgWrongOtp         = "Wrong OTP."
	msgLoginFailure     = "Something went wrong with your login. Please try logging in and submitting again."
	msgFormNotOpen      = "This form is no longer active."
	msgInvalidSignature = "Your verified fields could not be validated. Please refresh and verify them again."
	msgAttachments      = "Your attachments could not be uploaded. Please try again."
	msgPaymentSettings  = "There is a problem with the payment settings of this form. Please contact the form administrator."
	msgPaymentAmount    = "The payment amount is invalid. Please check it and try again."
	msgReceiptEmail     = "A valid email address is required to receive the payment receipt."
	msgPaymentSave      = "There was a problem saving your payment. Please try again."
	msgPendingSave      = "There was a problem saving your submission. Please check your responses and try again."
	msgPaymentProvider  = "There was a problem connecting to the payment provider. Please try again."
)

// ErrorMapper turns domain errors into a status and fixed message. The cooldown
// message embeds the configured wait.
type ErrorMapper struct {
	WaitSeconds int
}

type errorCase struct {
	target error
	status int
	msg    string
}

// Order matters: specific sentinels come before the base sentinels they wrap.
var errorCases = []errorCase{
	{domain.ErrMalformedParams, http.StatusBadRequest, msgGenericRefresh},
	{domain.ErrNonVerifiedFieldType, http.StatusBadRequest, msgGenericRefresh},
	{domain.ErrInvalidSubmission, http.StatusBadRequest, msgGenericRefresh},
	{domain.ErrFormNotFound, http.StatusNotFound, msgGenericRefresh},
	{domain.ErrTransactionNotFound, http.StatusNotFound, msgGenericRefresh},
	{domain.ErrFieldNotFound, http.StatusNotFound, msgGenericRefresh},
	{domain.ErrFormNotOpen, http.StatusNotFound, msgFormNotOpen},
	{domain.ErrTransactionExpired, http.StatusBadRequest, msgSessionExpired},
	{domain.ErrMissingHashData, http.StatusBadRequest, msgMissingHashData},
	{domain.ErrSmsLimitExceeded, http.StatusBadRequest, msgFormOutdated},
	{domain.ErrInvalidNumber, http.StatusBadRequest, msgInvalidNumber},
	{domain.ErrSmsSend, http.StatusBadRequest, msgSendFailure},
	{domain.ErrMailSend, http.StatusBadRequest, msgSendFailure},
	{domain.ErrOtpExpired, http.StatusUnprocessableEntity, msgOtpExpired},
	{domain.ErrOtpRetryExceeded, http.StatusUnprocessableEntity, msgRetryExceeded},
	{domain.ErrWrongOtp, http.StatusUnprocessableEntity, msgWrongOtp},
	{domain.ErrMissingAssertion, http.StatusBadRequest, msgLoginFailure},
	{domain.ErrInvalidAssertion, http.StatusBadRequest, msgLoginFailure},
	{domain.ErrInvalidSignature, http.StatusBadRequest, msgInvalidSignature},
	{domain.ErrAttachmentUpload, http.StatusInternalServerError, msgAttachments},
	{domain.ErrPaymentMisconfigured, http.StatusInternalServerError, msgPaymentSettings},
	{domain.ErrPaymentAmountInvalid, http.StatusBadRequest, msgPaymentAmount},
	{domain.ErrMissingReceiptEmail, http.StatusBadRequest, msgReceiptEmail},
	{domain.ErrPaymentSave, http.StatusInternalServerError, msgPaymentSave},
	{domain.ErrPendingSubmissionSave, http.StatusBadRequest, msgPendingSave},
	{domain.ErrPaymentIntentCreate, http.StatusBadGateway, msgPaymentProvider},
	{domain.ErrPaymentLink, http.StatusInternalServerError, msgPaymentSave},
}

func (m ErrorMapper) resolve(err error) (int, string) {
	if errors.Is(err, domain.ErrWaitForOtp) {
		return http.StatusUnprocessableEntity, fmt.Sprintf(msgWaitForOtp, m.WaitSeconds)
	}
	for _, c := range errorCases {
		if errors.Is(err, c.target) {
			return c.status, c.msg
		}
	}
	return http.StatusInternalServerError, msgGenericRetry
}

// write logs err and writes the mapped response.
func (m ErrorMapper) write(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := m.resolve(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		slog.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, msg)
}
