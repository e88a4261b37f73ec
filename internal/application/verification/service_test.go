package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-form-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFormID    = "01HZY8Q6V3K9M2N4P5R7S8T9VW"
	emailFieldID  = "email-field"
	mobileFieldID = "mobile-field"
	textFieldID   = "text-field"
)

var testLimits = Limits{
	Wait:                 30 * time.Second,
	OtpExpiry:            10 * time.Minute,
	MaxRetries:           4,
	MaxRequests:          3,
	MaxRequestsOnboarded: 5,
	TransactionExpiry:    4 * time.Hour,
}

type harness struct {
	svc    Service
	store  *memStore
	forms  memForms
	outbox *outbox
	clock  *clock
	form   *domain.Form
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	form := &domain.Form{
		FormID:   testFormID,
		Title:    "Registration",
		AuthType: domain.AuthTypeNil,
		Status:   domain.FormStatusPublic,
		Fields: []domain.FormField{
			{FieldID: emailFieldID, FieldType: domain.FieldTypeEmail, IsVerifiable: true},
			{FieldID: mobileFieldID, FieldType: domain.FieldTypeMobile, IsVerifiable: true},
			{FieldID: textFieldID, FieldType: "textfield"},
		},
	}
	h := &harness{
		store:  newMemStore(),
		forms:  memForms{testFormID: form},
		outbox: &outbox{},
		clock:  &clock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
		form:   form,
	}
	h.svc = NewService(ServiceDeps{
		Transactions: h.store,
		Forms:        h.forms,
		Hasher:       plainHasher{},
		SMSSender:    h.outbox,
		Mailer:       h.outbox,
		Signer:       fakeSigner{},
		Limits:       testLimits,
		AppName:      "FormSG",
		Now:          h.clock.Now,
	})
	return h
}

func (h *harness) createTxn(t *testing.T) *domain.VerificationTransaction {
	t.Helper()
	txn, err := h.svc.CreateTransaction(context.Background(), testFormID)
	require.NoError(t, err)
	require.NotNil(t, txn)
	return txn
}

func (h *harness) send(txnID, fieldID, recipient string) error {
	_, err := h.svc.SendNewOtp(context.Background(), SendOtpParams{
		TransactionID: txnID,
		FieldID:       fieldID,
		Recipient:     recipient,
		SenderIP:      "10.0.0.1",
		OtpPrefix:     "ABC",
		Form:          h.form,
	})
	return err
}

func (h *harness) stored(t *testing.T, txnID, fieldID string) domain.FieldVerification {
	t.Helper()
	txn, err := h.store.Get(context.Background(), txnID)
	require.NoError(t, err)
	f, _ := txn.Field(fieldID)
	require.NotNil(t, f)
	return *f
}

// --- CreateTransaction ---

func TestCreateTransaction_VerifiableFieldsOnly(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	assert.Equal(t, testFormID, txn.FormID)
	assert.Equal(t, h.clock.t.Add(4*time.Hour), txn.ExpireAt)
	require.Len(t, txn.Fields, 2)
	assert.Equal(t, emailFieldID, txn.Fields[0].FieldID)
	assert.Equal(t, mobileFieldID, txn.Fields[1].FieldID)
}

func TestCreateTransaction_PaymentFormAddsContactField(t *testing.T) {
	h := newHarness(t)
	h.form.Fields = nil
	h.form.Payments.Enabled = true

	txn := h.createTxn(t)
	require.Len(t, txn.Fields, 1)
	assert.Equal(t, domain.PaymentContactFieldID, txn.Fields[0].FieldID)
	assert.Equal(t, domain.FieldTypeEmail, txn.Fields[0].FieldType)
}

func TestCreateTransaction_NothingToVerify(t *testing.T) {
	h := newHarness(t)
	h.form.Fields = []domain.FormField{{FieldID: textFieldID, FieldType: "textfield"}}

	txn, err := h.svc.CreateTransaction(context.Background(), testFormID)
	require.NoError(t, err)
	assert.Nil(t, txn)
	assert.Empty(t, h.store.txns)
}

func TestCreateTransaction_FormNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateTransaction(context.Background(), "01HZY8Q6V3K9M2N4P5R7S8T9ZZ")
	assert.ErrorIs(t, err, domain.ErrFormNotFound)
}

func TestCreateTransaction_StoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.fail = errBoom
	_, err := h.svc.CreateTransaction(context.Background(), testFormID)
	assert.ErrorIs(t, err, domain.ErrDatabase)
}

// --- SendNewOtp ---

func TestSendNewOtp_PersistsHashAndCounts(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))

	f := h.stored(t, txn.TransactionID, emailFieldID)
	otp := h.outbox.lastOtp()
	require.Len(t, otp, 6)
	require.NotNil(t, f.HashedOtp)
	assert.Equal(t, "hashed:"+otp, *f.HashedOtp)
	assert.Equal(t, h.clock.t, *f.HashCreatedAt)
	assert.Equal(t, 1, f.OtpRequests)
	assert.Equal(t, 0, f.HashRetries)
	assert.Equal(t, "a@b.com", f.Answer)
	assert.Equal(t, "a@b.com", h.outbox.sent[0].to)
	assert.Contains(t, h.outbox.sent[0].subject, "FormSG")
}

func TestSendNewOtp_ResetsRetriesAndIncrementsRequests(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "000000x")
	require.ErrorIs(t, err, domain.ErrWrongOtp)
	require.Equal(t, 1, h.stored(t, txn.TransactionID, emailFieldID).HashRetries)

	h.clock.Advance(testLimits.Wait)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))

	f := h.stored(t, txn.TransactionID, emailFieldID)
	assert.Equal(t, 0, f.HashRetries)
	assert.Equal(t, 2, f.OtpRequests)
}

func TestSendNewOtp_CooldownRejectsWithoutMutation(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	before := h.stored(t, txn.TransactionID, emailFieldID)

	h.clock.Advance(testLimits.Wait - time.Second)
	err := h.send(txn.TransactionID, emailFieldID, "other@b.com")

	assert.ErrorIs(t, err, domain.ErrWaitForOtp)
	assert.Equal(t, before, h.stored(t, txn.TransactionID, emailFieldID))
	assert.Len(t, h.outbox.sent, 1)
}

func TestSendNewOtp_QuotaExceededIndependentOfCooldown(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	for i := 0; i < testLimits.MaxRequests; i++ {
		require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
		h.clock.Advance(testLimits.Wait)
	}

	err := h.send(txn.TransactionID, emailFieldID, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrSmsLimitExceeded)

	// Still over quota well past any cooldown.
	h.clock.Advance(time.Hour)
	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrSmsLimitExceeded)
}

func TestSendNewOtp_OnboardedFormHasHigherCeiling(t *testing.T) {
	h := newHarness(t)
	h.form.Onboarded = true
	txn := h.createTxn(t)
	for i := 0; i < testLimits.MaxRequestsOnboarded; i++ {
		require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
		h.clock.Advance(testLimits.Wait)
	}
	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrSmsLimitExceeded)
}

func TestSendNewOtp_Preconditions(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	assert.ErrorIs(t, h.send("01HZY8Q6V3K9M2N4P5R7S8T9ZZ", emailFieldID, "a@b.com"), domain.ErrTransactionNotFound)
	assert.ErrorIs(t, h.send(txn.TransactionID, "nope", "a@b.com"), domain.ErrFieldNotFound)

	h.clock.Advance(testLimits.TransactionExpiry)
	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrTransactionExpired)
}

func TestSendNewOtp_NonVerifiableFieldType(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.store.txns[txn.TransactionID].Fields[0].FieldType = "textfield"

	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrNonVerifiedFieldType)
}

func TestSendNewOtp_Mobile(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	require.NoError(t, h.send(txn.TransactionID, mobileFieldID, "+6591234567"))
	assert.Equal(t, "+6591234567", h.outbox.sent[0].to)
	assert.Contains(t, h.outbox.sent[0].body, "Use the OTP ABC-")
}

func TestSendNewOtp_InvalidNumberNotPersisted(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	for _, n := range []string{"91234567", "6591234567"} {
		err := h.send(txn.TransactionID, mobileFieldID, n)
		assert.ErrorIs(t, err, domain.ErrInvalidNumber, n)
	}
	f := h.stored(t, txn.TransactionID, mobileFieldID)
	assert.Nil(t, f.HashedOtp)
	assert.Empty(t, f.Answer)
	assert.Equal(t, 0, f.OtpRequests)
	assert.Empty(t, h.outbox.sent)
}

func TestSendNewOtp_DispatchFailureAbortsPersistence(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.outbox.err = errBoom

	assert.ErrorIs(t, h.send(txn.TransactionID, mobileFieldID, "+6591234567"), domain.ErrSmsSend)
	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrMailSend)
	assert.Equal(t, 0, h.stored(t, txn.TransactionID, emailFieldID).OtpRequests)
	assert.Equal(t, 0, h.store.calls)
}

func TestSendNewOtp_ProviderInvalidNumberPassesThrough(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.outbox.err = domain.ErrInvalidNumber

	assert.ErrorIs(t, h.send(txn.TransactionID, mobileFieldID, "+6591234567"), domain.ErrInvalidNumber)
}

func TestSendNewOtp_HashingError(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.svc.(*service).hasher = plainHasher{err: errBoom}

	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrHashing)
	assert.Empty(t, h.outbox.sent)
}

func TestSendNewOtp_StoreFailureIsDatabaseError(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.store.fail = errBoom

	assert.ErrorIs(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"), domain.ErrDatabase)
}

func TestSendNewOtp_ConcurrentRequestsIssueOnce(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.send(txn.TransactionID, emailFieldID, "a@b.com")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrWaitForOtp)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, h.stored(t, txn.TransactionID, emailFieldID).OtpRequests)
}

// --- VerifyOtp ---

func TestVerifyOtp_SucceedsOnceThenSingleUse(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	otp := h.outbox.lastOtp()

	signed, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, otp)
	require.NoError(t, err)
	assert.Equal(t, "signed:"+testFormID+":"+emailFieldID+":a@b.com", signed)

	f := h.stored(t, txn.TransactionID, emailFieldID)
	require.NotNil(t, f.SignedData)
	assert.Equal(t, signed, *f.SignedData)
	assert.Nil(t, f.HashedOtp)

	_, err = h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, otp)
	assert.ErrorIs(t, err, domain.ErrMissingHashData)
}

func TestVerifyOtp_WrongOtpIncrementsRetries(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))

	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "wrong")
	assert.ErrorIs(t, err, domain.ErrWrongOtp)
	assert.Equal(t, 1, h.stored(t, txn.TransactionID, emailFieldID).HashRetries)
}

func TestVerifyOtp_RetryCeilingBlocksCorrectOtp(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	otp := h.outbox.lastOtp()

	for i := 0; i < testLimits.MaxRetries; i++ {
		_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "wrong")
		require.ErrorIs(t, err, domain.ErrWrongOtp)
	}
	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, otp)
	assert.ErrorIs(t, err, domain.ErrOtpRetryExceeded)
	assert.Equal(t, testLimits.MaxRetries, h.stored(t, txn.TransactionID, emailFieldID).HashRetries)
}

func TestVerifyOtp_Expiry(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	otp := h.outbox.lastOtp()

	h.clock.Advance(testLimits.OtpExpiry)
	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, otp)
	assert.ErrorIs(t, err, domain.ErrOtpExpired)
}

func TestVerifyOtp_TransactionExpiredRegardlessOfState(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	h.clock.Advance(testLimits.TransactionExpiry)
	for _, fieldID := range []string{emailFieldID, mobileFieldID, "missing"} {
		_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, fieldID, "123456")
		assert.ErrorIs(t, err, domain.ErrTransactionExpired)
	}
}

func TestVerifyOtp_MissingHashAndField(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "123456")
	assert.ErrorIs(t, err, domain.ErrMissingHashData)
	_, err = h.svc.VerifyOtp(context.Background(), txn.TransactionID, "nope", "123456")
	assert.ErrorIs(t, err, domain.ErrFieldNotFound)
	_, err = h.svc.VerifyOtp(context.Background(), "01HZY8Q6V3K9M2N4P5R7S8T9ZZ", emailFieldID, "123456")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestVerifyOtp_HashingError(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	h.svc.(*service).hasher = plainHasher{err: errBoom}

	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "123456")
	assert.ErrorIs(t, err, domain.ErrHashing)
}

func TestVerifyOtp_ConcurrentWrongAttemptsBounded(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, "wrong")
		}()
	}
	wg.Wait()
	assert.Equal(t, testLimits.MaxRetries, h.stored(t, txn.TransactionID, emailFieldID).HashRetries)
}

// --- ResetField ---

func TestResetField_ClearsChallengeKeepsRequests(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	require.NoError(t, h.send(txn.TransactionID, emailFieldID, "a@b.com"))
	_, err := h.svc.VerifyOtp(context.Background(), txn.TransactionID, emailFieldID, h.outbox.lastOtp())
	require.NoError(t, err)

	require.NoError(t, h.svc.ResetField(context.Background(), txn.TransactionID, emailFieldID))

	f := h.stored(t, txn.TransactionID, emailFieldID)
	assert.Nil(t, f.HashedOtp)
	assert.Nil(t, f.HashCreatedAt)
	assert.Nil(t, f.SignedData)
	assert.Equal(t, 1, f.OtpRequests)

	// Reset lifts the cooldown.
	assert.NoError(t, h.send(txn.TransactionID, emailFieldID, "c@d.com"))
}

func TestResetField_Errors(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)

	assert.ErrorIs(t, h.svc.ResetField(context.Background(), txn.TransactionID, "nope"), domain.ErrFieldNotFound)
	h.store.fail = errBoom
	assert.ErrorIs(t, h.svc.ResetField(context.Background(), txn.TransactionID, emailFieldID), domain.ErrDatabase)
	h.store.fail = nil
	h.clock.Advance(testLimits.TransactionExpiry)
	assert.ErrorIs(t, h.svc.ResetField(context.Background(), txn.TransactionID, emailFieldID), domain.ErrTransactionExpired)
}

// --- metadata ---

func TestGetTransactionMetadata_ReadableAfterExpiry(t *testing.T) {
	h := newHarness(t)
	txn := h.createTxn(t)
	h.clock.Advance(24 * time.Hour)

	got, err := h.svc.GetTransactionMetadata(context.Background(), txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, txn.ExpireAt, got.ExpireAt)

	form, err := h.svc.FormForTransaction(context.Background(), txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, testFormID, form.FormID)
}

func TestNewOtpPrefix(t *testing.T) {
	p, err := NewOtpPrefix()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z]{3}$`, p)
}
