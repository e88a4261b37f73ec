package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/id"
	"github.com/go-form-verify/internal/pkg/validate"
)

// State is the furthest step a saga run reached.
type State string

const (
	StateValidating             State = "validating"
	StatePendingSubmissionSaved State = "pending_submission_saved"
	StateIntentCreated          State = "intent_created"
	StatePaymentLinked          State = "payment_linked"
)

type paymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	LinkIntent(ctx context.Context, paymentID, intentID, pendingSubmissionID string, now time.Time) error
}

type pendingSubmissionStore interface {
	Create(ctx context.Context, s *domain.PendingSubmission) error
}

// IntentProvider is the hosted payment provider.
type IntentProvider interface {
	CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.PaymentIntent, error)
	CancelIntent(ctx context.Context, targetAccountID, intentID string) error
}

// Input is one payment-enabled submission. Submission must carry its id.
type Input struct {
	Form        *domain.Form
	Submission  domain.Submission
	Responses   []domain.Response
	Products    []domain.ProductItem
	AmountCents int64
	Email       string
}

type Result struct {
	SubmissionID string
	PaymentID    string
	IntentID     string
	ClientSecret string
	State        State
	CreatedAt    time.Time
}

type Saga interface {
	Run(ctx context.Context, in Input) (*Result, error)
}

// Limits are the platform-wide payment bounds.
type Limits struct {
	Currency       string
	MinAmountCents int64
	MaxAmountCents int64
}

type SagaDeps struct {
	Payments           paymentStore
	PendingSubmissions pendingSubmissionStore
	Provider           IntentProvider
	Limits             Limits
	Env                string
	PendingRetention   time.Duration
	Now                func() time.Time
}

type saga struct {
	payments  paymentStore
	pending   pendingSubmissionStore
	provider  IntentProvider
	limits    Limits
	env       string
	retention time.Duration
	now       func() time.Time
}

func NewSaga(deps SagaDeps) Saga {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &saga{
		payments:  deps.Payments,
		pending:   deps.PendingSubmissions,
		provider:  deps.Provider,
		limits:    deps.Limits,
		env:       deps.Env,
		retention: deps.PendingRetention,
		now:       now,
	}
}

// Run validates the payment, records it with a pending submission, opens the provider
// intent and links the two. A link failure cancels the intent once; earlier failures
// leave their records for diagnosis.
func (s *saga) Run(ctx context.Context, in Input) (*Result, error) {
	form := in.Form
	amount, err := s.amount(form.Payments, in)
	if err != nil {
		return nil, err
	}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		return nil, domain.ErrMissingReceiptEmail
	}

	now := s.now().UTC()
	submissionID := in.Submission.SubmissionID
	p := &domain.Payment{
		PaymentID:       id.New(),
		FormID:          form.FormID,
		TargetAccountID: form.Payments.TargetAccountID,
		AmountCents:     amount,
		Email:           in.Email,
		Responses:       in.Responses,
		Products:        in.Products,
		FeeSnapshot:     domain.FeeSnapshot{Currency: s.limits.Currency, GstEnabled: form.Payments.GstEnabled},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentSave, err)
	}

	pending := &domain.PendingSubmission{
		Submission: in.Submission,
		PaymentID:  p.PaymentID,
		PurgeAt:    now.Add(s.retention).Unix(),
	}
	pending.CreatedAt = now
	if err := s.pending.Create(ctx, pending); err != nil {
		slog.Error("pending submission save failed", "payment_id", p.PaymentID, "form_id", form.FormID, "err", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrPendingSubmissionSave, err)
	}
	s.step(StatePendingSubmissionSaved, p.PaymentID, submissionID)

	intent, err := s.provider.CreateIntent(ctx, domain.IntentRequest{
		AmountCents:     amount,
		Currency:        s.limits.Currency,
		ReceiptEmail:    in.Email,
		Description:     description(form),
		TargetAccountID: form.Payments.TargetAccountID,
		IdempotencyKey:  p.PaymentID,
		Metadata: map[string]string{
			"env":                 s.env,
			"formTitle":           form.Title,
			"formId":              form.FormID,
			"submissionId":        submissionID,
			"paymentId":           p.PaymentID,
			"paymentContactEmail": in.Email,
		},
	})
	if err != nil {
		slog.Error("payment intent creation failed", "payment_id", p.PaymentID, "submission_id", submissionID, "err", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentIntentCreate, err)
	}
	s.step(StateIntentCreated, p.PaymentID, submissionID)

	if err := s.payments.LinkIntent(ctx, p.PaymentID, intent.ID, submissionID, s.now().UTC()); err != nil {
		if cerr := s.provider.CancelIntent(ctx, form.Payments.TargetAccountID, intent.ID); cerr != nil {
			slog.Error("payment intent cancellation failed", "payment_id", p.PaymentID, "intent_id", intent.ID, "err", cerr)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentLink, err)
	}
	s.step(StatePaymentLinked, p.PaymentID, submissionID)

	return &Result{
		SubmissionID: submissionID,
		PaymentID:    p.PaymentID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		State:        StatePaymentLinked,
		CreatedAt:    now,
	}, nil
}

func (s *saga) step(state State, paymentID, submissionID string) {
	slog.Info("payment saga step", "state", state, "payment_id", paymentID, "submission_id", submissionID)
}

func description(form *domain.Form) string {
	if form.Payments.Description != "" {
		return form.Payments.Description
	}
	return form.Title
}
