package verification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-form-verify/internal/domain"
)

// memStore mirrors the conditional-update semantics of the DynamoDB transaction repo.
type memStore struct {
	mu    sync.Mutex
	txns  map[string]*domain.VerificationTransaction
	fail  error // returned by every write when set
	calls int   // successful conditional writes
}

func newMemStore() *memStore {
	return &memStore{txns: map[string]*domain.VerificationTransaction{}}
}

func cloneTxn(t *domain.VerificationTransaction) *domain.VerificationTransaction {
	c := *t
	c.Fields = make([]domain.FieldVerification, len(t.Fields))
	copy(c.Fields, t.Fields)
	return &c
}

func (m *memStore) Get(_ context.Context, id string) (*domain.VerificationTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", domain.ErrNotFound)
	}
	return cloneTxn(t), nil
}

func (m *memStore) Create(_ context.Context, t *domain.VerificationTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.txns[t.TransactionID] = cloneTxn(t)
	return nil
}

func (m *memStore) field(id string, idx int, fieldID string, now time.Time) (*domain.FieldVerification, error) {
	t, ok := m.txns[id]
	if !ok || t.IsExpired(now) || idx < 0 || idx >= len(t.Fields) || t.Fields[idx].FieldID != fieldID {
		return nil, fmt.Errorf("condition failed: %w", domain.ErrConflict)
	}
	return &t.Fields[idx], nil
}

func (m *memStore) RecordOtpIssued(_ context.Context, id string, issue domain.OtpIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	f, err := m.field(id, issue.Index, issue.FieldID, issue.Now)
	if err != nil {
		return err
	}
	if f.OtpRequests >= issue.MaxRequests || (f.HashCreatedAt != nil && f.HashCreatedAt.After(issue.CooldownBoundary)) {
		return fmt.Errorf("condition failed: %w", domain.ErrConflict)
	}
	h, now := issue.HashedOtp, issue.Now
	f.HashedOtp, f.HashCreatedAt = &h, &now
	f.HashRetries = 0
	f.OtpRequests++
	f.Answer = issue.Answer
	f.SignedData = nil
	m.calls++
	return nil
}

func (m *memStore) attempt(id string, a domain.OtpAttempt) (*domain.FieldVerification, error) {
	f, err := m.field(id, a.Index, a.FieldID, a.Now)
	if err != nil {
		return nil, err
	}
	if f.HashedOtp == nil || *f.HashedOtp != a.HashedOtp || f.HashRetries >= a.MaxRetries {
		return nil, fmt.Errorf("condition failed: %w", domain.ErrConflict)
	}
	return f, nil
}

func (m *memStore) IncrementRetries(_ context.Context, id string, a domain.OtpAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	f, err := m.attempt(id, a)
	if err != nil {
		return err
	}
	f.HashRetries++
	m.calls++
	return nil
}

func (m *memStore) ConsumeOtp(_ context.Context, id string, a domain.OtpAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	f, err := m.attempt(id, a)
	if err != nil {
		return err
	}
	sd := a.SignedData
	f.SignedData = &sd
	f.HashedOtp, f.HashCreatedAt = nil, nil
	m.calls++
	return nil
}

func (m *memStore) ResetField(_ context.Context, id string, r domain.FieldReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	f, err := m.field(id, r.Index, r.FieldID, r.Now)
	if err != nil {
		return err
	}
	f.HashedOtp, f.HashCreatedAt, f.SignedData = nil, nil, nil
	f.HashRetries = 0
	m.calls++
	return nil
}

type memForms map[string]*domain.Form

func (m memForms) Get(_ context.Context, id string) (*domain.Form, error) {
	f, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("form not found: %w", domain.ErrNotFound)
	}
	return f, nil
}

// plainHasher is deterministic so tests can predict stored hashes.
type plainHasher struct{ err error }

func (h plainHasher) Hash(plain string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plain, nil
}

func (h plainHasher) Compare(plain, hashed string) (bool, error) {
	if h.err != nil {
		return false, h.err
	}
	return "hashed:"+plain == hashed, nil
}

type sentMessage struct{ to, subject, body string }

// outbox captures SMS and mail dispatches.
type outbox struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (o *outbox) SendSMS(_ context.Context, to, message string) error {
	return o.record(to, "", message)
}

func (o *outbox) SendEmail(_ context.Context, to, subject, body string) error {
	return o.record(to, subject, body)
}

func (o *outbox) record(to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

// lastOtp extracts the 6-digit code from the most recent message ("PFX-123456").
func (o *outbox) lastOtp() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return ""
	}
	m := otpPattern.FindStringSubmatch(o.sent[len(o.sent)-1].body)
	if m == nil {
		return ""
	}
	return m[1]
}

var otpPattern = regexp.MustCompile(`[A-Z]{3}-(\d{6})`)

type fakeSigner struct{ err error }

func (f fakeSigner) SignAttestation(a domain.Attestation) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("signed:%s:%s:%s", a.FormID, a.FieldID, a.Answer), nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var errBoom = errors.New("boom")
