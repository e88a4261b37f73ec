package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-form-verify/internal/application/identity"
	"github.com/go-form-verify/internal/application/payment"
	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/id"
)

type formStore interface {
	Get(ctx context.Context, formID string) (*domain.Form, error)
}

type submissionStore interface {
	Create(ctx context.Context, s *domain.Submission) error
}

type attachmentStore interface {
	UploadAttachment(ctx context.Context, submissionID, fieldID, b64Content string) (string, error)
	Delete(ctx context.Context, key string) error
}

// AttestationVerifier checks signatures produced on successful OTP verification.
type AttestationVerifier interface {
	VerifyAttestation(token string) (*domain.Attestation, error)
}

// SubmitParams is one encrypted submission. Attachments maps field id to
// client-encrypted base64 content.
type SubmitParams struct {
	FormID           string
	EncryptedContent string
	Version          int
	Responses        []domain.Response
	Attachments      map[string]string
	Cookies          identity.Cookies
	Products         []domain.ProductItem
	AmountCents      int64
}

type Result struct {
	SubmissionID string
	PaymentID    string
	ClientSecret string
	CreatedAt    time.Time
}

type Service interface {
	SubmitEncrypted(ctx context.Context, p SubmitParams) (*Result, error)
}

type ServiceDeps struct {
	Forms       formStore
	Submissions submissionStore
	Attachments attachmentStore
	Identity    identity.Resolver
	Attestation AttestationVerifier
	Payments    payment.Saga
	Now         func() time.Time
}

type service struct {
	forms       formStore
	submissions submissionStore
	attachments attachmentStore
	identity    identity.Resolver
	attestation AttestationVerifier
	payments    payment.Saga
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		forms:       deps.Forms,
		submissions: deps.Submissions,
		attachments: deps.Attachments,
		identity:    deps.Identity,
		attestation: deps.Attestation,
		payments:    deps.Payments,
		now:         now,
	}
}

func (s *service) SubmitEncrypted(ctx context.Context, p SubmitParams) (*Result, error) {
	if p.EncryptedContent == "" {
		return nil, fmt.Errorf("empty content: %w", domain.ErrInvalidSubmission)
	}
	form, err := s.forms.Get(ctx, p.FormID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrFormNotFound
		}
		return nil, fmt.Errorf("get form: %w: %w", domain.ErrDatabase, err)
	}
	if !form.IsPublic() {
		return nil, domain.ErrFormNotOpen
	}

	if _, err := s.identity.Resolve(ctx, form.AuthType, p.Cookies); err != nil {
		return nil, err
	}

	responses := make(map[string]domain.Response, len(p.Responses))
	for _, r := range p.Responses {
		responses[r.FieldID] = r
	}
	if err := s.checkSignatures(form, responses); err != nil {
		return nil, err
	}

	submissionID := id.New()
	keys, err := s.uploadAttachments(ctx, submissionID, p.Attachments)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub := domain.Submission{
		SubmissionID:     submissionID,
		FormID:           form.FormID,
		EncryptedContent: p.EncryptedContent,
		Version:          p.Version,
		Attachments:      keys,
		AuthType:         form.AuthType,
		CreatedAt:        now,
	}

	if form.Payments.Enabled {
		res, err := s.payments.Run(ctx, payment.Input{
			Form:        form,
			Submission:  sub,
			Responses:   p.Responses,
			Products:    p.Products,
			AmountCents: p.AmountCents,
			Email:       responses[domain.PaymentContactFieldID].Answer,
		})
		if err != nil {
			return nil, err
		}
		return &Result{SubmissionID: submissionID, PaymentID: res.PaymentID, ClientSecret: res.ClientSecret, CreatedAt: now}, nil
	}

	if err := s.submissions.Create(ctx, &sub); err != nil {
		s.discardAttachments(ctx, keys)
		return nil, fmt.Errorf("save submission: %w: %w", domain.ErrDatabase, err)
	}
	slog.Info("submission saved", "submission_id", submissionID, "form_id", form.FormID, "attachments", len(keys))
	return &Result{SubmissionID: submissionID, CreatedAt: now}, nil
}

// checkSignatures requires a valid attestation for every answered verifiable field
// and, on payment forms, for the payment contact. Optional verifiable fields left
// blank carry nothing to attest.
func (s *service) checkSignatures(form *domain.Form, responses map[string]domain.Response) error {
	type signed struct {
		fieldID  string
		required bool
	}
	fields := make([]signed, 0, len(form.Fields)+1)
	for _, f := range form.VerifiableFields() {
		fields = append(fields, signed{f.FieldID, f.Required})
	}
	if form.Payments.Enabled {
		fields = append(fields, signed{domain.PaymentContactFieldID, true})
	}
	for _, f := range fields {
		r, ok := responses[f.fieldID]
		if !f.required && strings.TrimSpace(r.Answer) == "" {
			continue
		}
		if !ok || r.Signature == "" {
			return fmt.Errorf("field %s unsigned: %w", f.fieldID, domain.ErrInvalidSignature)
		}
		a, err := s.attestation.VerifyAttestation(r.Signature)
		if err != nil {
			slog.Warn("attestation rejected", "form_id", form.FormID, "field_id", f.fieldID, "err", err)
			return fmt.Errorf("field %s: %w", f.fieldID, domain.ErrInvalidSignature)
		}
		if a.FormID != form.FormID || a.FieldID != f.fieldID || a.Answer != r.Answer {
			return fmt.Errorf("field %s attestation mismatch: %w", f.fieldID, domain.ErrInvalidSignature)
		}
	}
	return nil
}

func (s *service) uploadAttachments(ctx context.Context, submissionID string, attachments map[string]string) (map[string]string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	fieldIDs := make([]string, 0, len(attachments))
	for fieldID := range attachments {
		fieldIDs = append(fieldIDs, fieldID)
	}
	sort.Strings(fieldIDs)

	keys := make(map[string]string, len(attachments))
	for _, fieldID := range fieldIDs {
		key, err := s.attachments.UploadAttachment(ctx, submissionID, fieldID, attachments[fieldID])
		if err != nil {
			s.discardAttachments(ctx, keys)
			return nil, fmt.Errorf("%w: %w", domain.ErrAttachmentUpload, err)
		}
		keys[fieldID] = key
	}
	return keys, nil
}

func (s *service) discardAttachments(ctx context.Context, keys map[string]string) {
	for _, key := range keys {
		if err := s.attachments.Delete(ctx, key); err != nil {
			slog.Warn("attachment cleanup failed", "key", key, "err", err)
		}
	}
}
