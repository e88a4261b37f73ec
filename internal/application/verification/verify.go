package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-form-verify/internal/domain"
)

// VerifyOtp checks inputOtp against the field's live challenge. On success the challenge
// is consumed and a signed attestation of the committed answer is returned.
func (s *service) VerifyOtp(ctx context.Context, transactionID, fieldID, inputOtp string) (string, error) {
	now := s.now()
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return "", err
	}
	field, idx, err := s.checkVerifiable(txn, fieldID, now)
	if err != nil {
		return "", err
	}
	hashed := *field.HashedOtp

	match, err := s.hasher.Compare(inputOtp, hashed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrHashing, err)
	}

	attempt := domain.OtpAttempt{
		Index:      idx,
		FieldID:    fieldID,
		HashedOtp:  hashed,
		MaxRetries: s.limits.MaxRetries,
		Now:        now,
	}
	recheck := func(t *domain.VerificationTransaction) error {
		_, _, err := s.checkVerifiable(t, fieldID, now)
		return err
	}

	if !match {
		if err := s.transactions.IncrementRetries(ctx, transactionID, attempt); err != nil {
			if !errors.Is(err, domain.ErrConflict) {
				return "", dbErr("increment retries", err)
			}
			// The challenge changed underneath; report it, or keep the wrong-otp outcome.
			return "", s.reclassify(ctx, transactionID, recheck, domain.ErrWrongOtp)
		}
		slog.Info("wrong otp", "transaction_id", transactionID, "field_id", fieldID, "hash_retries", field.HashRetries+1)
		return "", domain.ErrWrongOtp
	}

	signed, err := s.signer.SignAttestation(domain.Attestation{
		TransactionID: transactionID,
		FormID:        txn.FormID,
		FieldID:       fieldID,
		Answer:        field.Answer,
		ExpiresAt:     txn.ExpireAt,
	})
	if err != nil {
		return "", fmt.Errorf("sign attestation: %w", err)
	}
	attempt.SignedData = signed
	if err := s.transactions.ConsumeOtp(ctx, transactionID, attempt); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return "", dbErr("consume otp", err)
		}
		return "", s.reclassify(ctx, transactionID, recheck, domain.ErrWrongOtp)
	}
	slog.Info("otp verified", "transaction_id", transactionID, "field_id", fieldID)
	return signed, nil
}

// checkVerifiable applies the verification preconditions in order.
func (s *service) checkVerifiable(txn *domain.VerificationTransaction, fieldID string, now time.Time) (*domain.FieldVerification, int, error) {
	if txn.IsExpired(now) {
		return nil, -1, domain.ErrTransactionExpired
	}
	field, idx := txn.Field(fieldID)
	if field == nil {
		return nil, -1, domain.ErrFieldNotFound
	}
	if field.HashedOtp == nil || field.HashCreatedAt == nil {
		return nil, -1, domain.ErrMissingHashData
	}
	if now.Sub(*field.HashCreatedAt) >= s.limits.OtpExpiry {
		return nil, -1, domain.ErrOtpExpired
	}
	if field.HashRetries >= s.limits.MaxRetries {
		return nil, -1, domain.ErrOtpRetryExceeded
	}
	return field, idx, nil
}
