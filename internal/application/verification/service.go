package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/id"
)

type transactionStore interface {
	Get(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error)
	Create(ctx context.Context, t *domain.VerificationTransaction) error
	RecordOtpIssued(ctx context.Context, transactionID string, issue domain.OtpIssue) error
	IncrementRetries(ctx context.Context, transactionID string, attempt domain.OtpAttempt) error
	ConsumeOtp(ctx context.Context, transactionID string, attempt domain.OtpAttempt) error
	ResetField(ctx context.Context, transactionID string, reset domain.FieldReset) error
}

type formStore interface {
	Get(ctx context.Context, formID string) (*domain.Form, error)
}

// Hasher hashes OTPs and compares candidates against stored hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hashed string) (bool, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type AttestationSigner interface {
	SignAttestation(a domain.Attestation) (string, error)
}

// SendOtpParams is the input of SendNewOtp. Form is the transaction's owning form.
type SendOtpParams struct {
	TransactionID string
	FieldID       string
	Recipient     string
	SenderIP      string
	OtpPrefix     string
	Form          *domain.Form
}

type Service interface {
	CreateTransaction(ctx context.Context, formID string) (*domain.VerificationTransaction, error)
	GetTransactionMetadata(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error)
	FormForTransaction(ctx context.Context, transactionID string) (*domain.Form, error)
	SendNewOtp(ctx context.Context, p SendOtpParams) (*domain.VerificationTransaction, error)
	VerifyOtp(ctx context.Context, transactionID, fieldID, inputOtp string) (string, error)
	ResetField(ctx context.Context, transactionID, fieldID string) error
}

// Limits are the externally configured ceilings of the OTP lifecycle.
type Limits struct {
	Wait                 time.Duration
	OtpExpiry            time.Duration
	MaxRetries           int
	MaxRequests          int
	MaxRequestsOnboarded int
	TransactionExpiry    time.Duration
}

type ServiceDeps struct {
	Transactions transactionStore
	Forms        formStore
	Hasher       Hasher
	SMSSender    SMSSender
	Mailer       Mailer
	Signer       AttestationSigner
	Limits       Limits
	AppName      string
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	transactions transactionStore
	forms        formStore
	hasher       Hasher
	sms          SMSSender
	mailer       Mailer
	signer       AttestationSigner
	limits       Limits
	appName      string
	now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		transactions: deps.Transactions,
		forms:        deps.Forms,
		hasher:       deps.Hasher,
		sms:          deps.SMSSender,
		mailer:       deps.Mailer,
		signer:       deps.Signer,
		limits:       deps.Limits,
		appName:      deps.AppName,
		now:          now,
	}
}

// CreateTransaction opens a transaction for formID. It returns nil without error when
// the form has nothing to verify.
func (s *service) CreateTransaction(ctx context.Context, formID string) (*domain.VerificationTransaction, error) {
	form, err := s.getForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	var fields []domain.FieldVerification
	for _, ff := range form.VerifiableFields() {
		fields = append(fields, domain.FieldVerification{FieldID: ff.FieldID, FieldType: ff.FieldType})
	}
	if form.Payments.Enabled {
		fields = append(fields, domain.FieldVerification{
			FieldID:   domain.PaymentContactFieldID,
			FieldType: domain.FieldTypeEmail,
		})
	}
	if len(fields) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	txn := &domain.VerificationTransaction{
		TransactionID: id.New(),
		FormID:        form.FormID,
		CreatedAt:     now,
		ExpireAt:      now.Add(s.limits.TransactionExpiry),
		Fields:        fields,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, dbErr("create transaction", err)
	}
	slog.Info("verification transaction created", "transaction_id", txn.TransactionID, "form_id", formID, "fields", len(fields))
	return txn, nil
}

// GetTransactionMetadata returns the transaction regardless of expiry.
func (s *service) GetTransactionMetadata(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error) {
	return s.getTransaction(ctx, transactionID)
}

func (s *service) FormForTransaction(ctx context.Context, transactionID string) (*domain.Form, error) {
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.getForm(ctx, txn.FormID)
}

// ResetField clears the OTP challenge of a field so the respondent can change the answer.
// OtpRequests is left untouched.
func (s *service) ResetField(ctx context.Context, transactionID, fieldID string) error {
	now := s.now()
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	check := func(t *domain.VerificationTransaction) (int, error) {
		if t.IsExpired(now) {
			return -1, domain.ErrTransactionExpired
		}
		_, idx := t.Field(fieldID)
		if idx < 0 {
			return -1, domain.ErrFieldNotFound
		}
		return idx, nil
	}
	idx, err := check(txn)
	if err != nil {
		return err
	}
	err = s.transactions.ResetField(ctx, transactionID, domain.FieldReset{Index: idx, FieldID: fieldID, Now: now})
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return dbErr("reset field", err)
	}
	return s.reclassify(ctx, transactionID, func(t *domain.VerificationTransaction) error {
		_, err := check(t)
		return err
	}, dbErr("reset field", err))
}

func (s *service) getTransaction(ctx context.Context, transactionID string) (*domain.VerificationTransaction, error) {
	txn, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, dbErr("get transaction", err)
	}
	return txn, nil
}

func (s *service) getForm(ctx context.Context, formID string) (*domain.Form, error) {
	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrFormNotFound
		}
		return nil, dbErr("get form", err)
	}
	return form, nil
}

// reclassify re-reads the transaction after a failed conditional write and reports
// which check the concurrent writer made fail. fallback is returned when every check passes.
func (s *service) reclassify(ctx context.Context, transactionID string, check func(*domain.VerificationTransaction) error, fallback error) error {
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := check(txn); err != nil {
		return err
	}
	return fallback
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDatabase, err)
}
