package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
	ErrDatabase   = errors.New("database error")
)

// Verification errors. Each kind maps to exactly one status and message in the HTTP layer.
var (
	ErrMalformedParams      = fmt.Errorf("malformed parameters: %w", ErrBadRequest)
	ErrFormNotFound         = fmt.Errorf("form: %w", ErrNotFound)
	ErrTransactionNotFound  = fmt.Errorf("transaction: %w", ErrNotFound)
	ErrFieldNotFound        = fmt.Errorf("field not in transaction: %w", ErrNotFound)
	ErrTransactionExpired   = errors.New("transaction expired")
	ErrNonVerifiedFieldType = fmt.Errorf("field type is not verifiable: %w", ErrBadRequest)
	ErrSmsLimitExceeded     = errors.New("otp request limit exceeded")
	ErrWaitForOtp           = errors.New("otp requested too soon")
	ErrHashing              = errors.New("hashing failed")
	ErrSmsSend              = errors.New("sms send failed")
	ErrInvalidNumber        = errors.New("invalid phone number")
	ErrMailSend             = errors.New("mail send failed")
	ErrMissingHashData      = errors.New("no otp issued for field")
	ErrOtpExpired           = errors.New("otp expired")
	ErrOtpRetryExceeded     = errors.New("otp retries exceeded")
	ErrWrongOtp             = errors.New("wrong otp")
)

// Identity-assertion errors. Both collapse to one client message.
var (
	ErrMissingAssertion = errors.New("identity assertion missing")
	ErrInvalidAssertion = errors.New("identity assertion invalid")
)

// Submission and payment errors.
var (
	ErrFormNotOpen           = errors.New("form is not open for submissions")
	ErrInvalidSignature      = errors.New("verified field signature invalid")
	ErrInvalidSubmission     = fmt.Errorf("invalid submission: %w", ErrBadRequest)
	ErrAttachmentUpload      = errors.New("attachment upload failed")
	ErrPaymentMisconfigured  = errors.New("form payment settings invalid")
	ErrPaymentAmountInvalid  = errors.New("payment amount out of bounds")
	ErrMissingReceiptEmail   = errors.New("payment receipt email missing")
	ErrPaymentSave           = errors.New("payment record save failed")
	ErrPendingSubmissionSave = errors.New("pending submission save failed")
	ErrPaymentIntentCreate   = errors.New("payment intent creation failed")
	ErrPaymentLink           = errors.New("payment link update failed")
)
