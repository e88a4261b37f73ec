package domain

import "time"

// PaymentContactFieldID is the reserved field id for the payment receipt email.
// It is routed through the same endpoints as ordinary fields.
const PaymentContactFieldID = "payment_contact_field"

// VerificationTransaction is the time-boxed verification state for one form-fill session.
// ExpireAt is fixed at creation.
type VerificationTransaction struct {
	TransactionID string              `json:"transactionId"`
	FormID        string              `json:"formId"`
	CreatedAt     time.Time           `json:"createdAt"`
	ExpireAt      time.Time           `json:"expireAt"`
	Fields        []FieldVerification `json:"-"`
}

// FieldVerification is the per-field OTP state inside a transaction.
type FieldVerification struct {
	FieldID       string
	FieldType     string
	Answer        string
	HashedOtp     *string
	HashCreatedAt *time.Time
	HashRetries   int
	OtpRequests   int
	SignedData    *string
}

// IsExpired reports whether the transaction is unusable at now.
func (t *VerificationTransaction) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpireAt)
}

// Field returns the field state and its index, or -1 when the field is absent.
func (t *VerificationTransaction) Field(fieldID string) (*FieldVerification, int) {
	for i := range t.Fields {
		if t.Fields[i].FieldID == fieldID {
			return &t.Fields[i], i
		}
	}
	return nil, -1
}

// OtpIssue is the state written when a new OTP is issued for a field.
// Stores apply it atomically, conditioned on the field still sitting at Index,
// the transaction being unexpired at Now, the request ceiling and the cooldown.
type OtpIssue struct {
	Index       int
	FieldID     string
	HashedOtp   string
	Answer      string
	Now         time.Time
	MaxRequests int
	// CooldownBoundary is Now minus the wait window; the previous hash must be at or before it.
	CooldownBoundary time.Time
}

// OtpAttempt identifies the challenge a verify attempt was checked against.
// A wrong attempt increments retries; a correct one consumes the challenge and stores SignedData.
// Both are conditioned on HashedOtp still being the live hash and retries below MaxRetries.
type OtpAttempt struct {
	Index      int
	FieldID    string
	HashedOtp  string
	MaxRetries int
	Now        time.Time
	SignedData string
}

// FieldReset clears the OTP challenge and signed data of one field.
type FieldReset struct {
	Index   int
	FieldID string
	Now     time.Time
}

// Attestation is the claim set signed after a successful OTP verification.
type Attestation struct {
	TransactionID string
	FormID        string
	FieldID       string
	Answer        string
	ExpiresAt     time.Time
}
