package http

import (
	"context"
	"time"

	"github.com/go-form-verify/internal/domain"
)

// FormRepository is the minimal interface the router requires from the form store.
type FormRepository interface {
	Get(ctx context.Context, formID string) (*domain.Form, error)
}

// TransactionRepository persists verification transactions. Every mutation is a
// conditional single-item write that fails with domain.ErrConflict.
type TransactionRepository interface {
	Get(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error)
	Create(ctx context.Context, t *domain.VerificationTransaction) error
	RecordOtpIssued(ctx context.Context, transactionID string, issue domain.OtpIssue) error
	IncrementRetries(ctx context.Context, transactionID string, attempt domain.OtpAttempt) error
	ConsumeOtp(ctx context.Context, transactionID string, attempt domain.OtpAttempt) error
	ResetField(ctx context.Context, transactionID string, reset domain.FieldReset) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	LinkIntent(ctx context.Context, paymentID, intentID, pendingSubmissionID string, now time.Time) error
}

type PendingSubmissionRepository interface {
	Create(ctx context.Context, s *domain.PendingSubmission) error
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *domain.Submission) error
}

// AttachmentStore is the minimal interface the router requires from an object storage backend.
type AttachmentStore interface {
	UploadAttachment(ctx context.Context, submissionID, fieldID, b64Content string) (string, error)
	Delete(ctx context.Context, key string) error
}

type OtpHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hashed string) (bool, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// AttestationProvider signs verified answers and checks them on submission.
type AttestationProvider interface {
	SignAttestation(a domain.Attestation) (string, error)
	VerifyAttestation(token string) (*domain.Attestation, error)
}

type PaymentProvider interface {
	CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.PaymentIntent, error)
	CancelIntent(ctx context.Context, targetAccountID, intentID string) error
}
