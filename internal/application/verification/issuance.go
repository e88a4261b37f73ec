package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-form-verify/internal/domain"
	"github.com/go-form-verify/internal/pkg/validate"
)

const otpDigits = 6

// SendNewOtp issues a fresh OTP for a field and dispatches it to the recipient.
// Nothing is persisted when dispatch fails.
func (s *service) SendNewOtp(ctx context.Context, p SendOtpParams) (*domain.VerificationTransaction, error) {
	now := s.now()
	txn, err := s.getTransaction(ctx, p.TransactionID)
	if err != nil {
		return nil, err
	}
	field, idx, err := s.checkIssuable(txn, p.FieldID, p.Form, now)
	if err != nil {
		return nil, err
	}

	otp, err := generateOtp()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w: %w", domain.ErrHashing, err)
	}
	hashed, err := s.hasher.Hash(otp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrHashing, err)
	}

	if err := s.dispatch(ctx, field.FieldType, p.Recipient, otp, p.OtpPrefix); err != nil {
		slog.Warn("otp dispatch failed",
			"transaction_id", p.TransactionID, "field_id", p.FieldID, "field_type", field.FieldType,
			"sender_ip", p.SenderIP, "err", err)
		return nil, err
	}

	issue := domain.OtpIssue{
		Index:            idx,
		FieldID:          p.FieldID,
		HashedOtp:        hashed,
		Answer:           p.Recipient,
		Now:              now,
		MaxRequests:      s.requestCeiling(p.Form),
		CooldownBoundary: now.Add(-s.limits.Wait),
	}
	if err := s.transactions.RecordOtpIssued(ctx, p.TransactionID, issue); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, dbErr("record otp", err)
		}
		return nil, s.reclassify(ctx, p.TransactionID, func(t *domain.VerificationTransaction) error {
			_, _, err := s.checkIssuable(t, p.FieldID, p.Form, now)
			return err
		}, dbErr("record otp", err))
	}

	issuedAt := now
	field.HashedOtp = &hashed
	field.HashCreatedAt = &issuedAt
	field.HashRetries = 0
	field.OtpRequests++
	field.Answer = p.Recipient
	field.SignedData = nil

	slog.Info("otp issued",
		"transaction_id", p.TransactionID, "field_id", p.FieldID, "otp_requests", field.OtpRequests, "sender_ip", p.SenderIP)
	return txn, nil
}

// checkIssuable applies the issuance preconditions in order.
func (s *service) checkIssuable(txn *domain.VerificationTransaction, fieldID string, form *domain.Form, now time.Time) (*domain.FieldVerification, int, error) {
	if txn.IsExpired(now) {
		return nil, -1, domain.ErrTransactionExpired
	}
	field, idx := txn.Field(fieldID)
	if field == nil {
		return nil, -1, domain.ErrFieldNotFound
	}
	if !domain.IsVerifiableType(field.FieldType) {
		return nil, -1, domain.ErrNonVerifiedFieldType
	}
	if field.OtpRequests >= s.requestCeiling(form) {
		return nil, -1, domain.ErrSmsLimitExceeded
	}
	if field.HashCreatedAt != nil && now.Sub(*field.HashCreatedAt) < s.limits.Wait {
		return nil, -1, domain.ErrWaitForOtp
	}
	return field, idx, nil
}

func (s *service) requestCeiling(form *domain.Form) int {
	if form != nil && form.Onboarded {
		return s.limits.MaxRequestsOnboarded
	}
	return s.limits.MaxRequests
}

func (s *service) dispatch(ctx context.Context, fieldType, recipient, otp, prefix string) error {
	switch fieldType {
	case domain.FieldTypeMobile:
		if err := validate.Var(recipient, "required,e164strict"); err != nil {
			return domain.ErrInvalidNumber
		}
		if s.sms == nil {
			return fmt.Errorf("sms sender not configured: %w", domain.ErrSmsSend)
		}
		if err := s.sms.SendSMS(ctx, recipient, s.smsBody(prefix, otp)); err != nil {
			if errors.Is(err, domain.ErrInvalidNumber) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrSmsSend, err)
		}
		return nil
	case domain.FieldTypeEmail:
		if err := validate.Var(recipient, "required,email"); err != nil {
			return fmt.Errorf("invalid email recipient: %w", domain.ErrMailSend)
		}
		if s.mailer == nil {
			return fmt.Errorf("mailer not configured: %w", domain.ErrMailSend)
		}
		subject := fmt.Sprintf("Your OTP for submitting a form on %s", s.appName)
		if err := s.mailer.SendEmail(ctx, recipient, subject, s.mailBody(prefix, otp)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMailSend, err)
		}
		return nil
	default:
		return domain.ErrNonVerifiedFieldType
	}
}

func (s *service) smsBody(prefix, otp string) string {
	return fmt.Sprintf("Use the OTP %s-%s to complete your submission on %s.\n\n"+
		"Never share your OTP with anyone else. If you did not request this OTP, you can safely ignore this SMS.",
		prefix, otp, s.appName)
}

func (s *service) mailBody(prefix, otp string) string {
	return fmt.Sprintf("You are currently submitting a form on %s.\n\n"+
		"Your OTP is %s-%s. It will expire in %d minutes. Please use this to verify your submission.\n\n"+
		"Never share your OTP with anyone else. If you did not request this OTP, you can safely ignore this email.",
		s.appName, prefix, otp, int(s.limits.OtpExpiry/time.Minute))
}

func generateOtp() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// NewOtpPrefix returns three random uppercase letters shown next to the OTP so a
// respondent can match a message to the request that produced it.
func NewOtpPrefix() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 3)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		b[i] = letters[idx.Int64()]
	}
	return string(b), nil
}
