package dynamo

// DynamoDB attribute names used in key, update and condition expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrFormID              = "form_id"
	attrTransactionID       = "transaction_id"
	attrPaymentID           = "payment_id"
	attrSubmissionID        = "submission_id"
	attrExpireAt            = "expire_at"
	attrFields              = "fields"
	attrPurgeAt             = "purge_at"
	attrCreatedAt           = "created_at"
	attrUpdatedAt           = "updated_at"
	attrPaymentIntentID     = "payment_intent_id"
	attrPendingSubmissionID = "pending_submission_id"

	// Per-field attributes inside the transaction's fields list.
	fieldFieldID       = "field_id"
	fieldAnswer        = "answer"
	fieldHashedOtp     = "hashed_otp"
	fieldHashCreatedAt = "hash_created_at"
	fieldHashRetries   = "hash_retries"
	fieldOtpRequests   = "otp_requests"
	fieldSignedData    = "signed_data"
)
