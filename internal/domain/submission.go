package domain

import "time"

// Response is one field's answer as submitted. Signature carries the attestation
// for verifiable fields.
type Response struct {
	FieldID   string `json:"_id" dynamodbav:"field_id" validate:"required"`
	FieldType string `json:"fieldType" dynamodbav:"field_type"`
	Question  string `json:"question" dynamodbav:"question"`
	Answer    string `json:"answer" dynamodbav:"answer"`
	Signature string `json:"signature,omitempty" dynamodbav:"-"`
}

// Submission is a finalized encrypted submission.
type Submission struct {
	SubmissionID     string            `json:"id" dynamodbav:"submission_id"`
	FormID           string            `json:"formId" dynamodbav:"form_id"`
	EncryptedContent string            `json:"-" dynamodbav:"encrypted_content"`
	Version          int               `json:"version" dynamodbav:"version"`
	Attachments      map[string]string `json:"-" dynamodbav:"attachments,omitempty"`
	AuthType         AuthType          `json:"authType,omitempty" dynamodbav:"auth_type,omitempty"`
	CreatedAt        time.Time         `json:"created" dynamodbav:"created_at"`
}

// PendingSubmission is held until its payment completes.
type PendingSubmission struct {
	Submission
	PaymentID string `json:"paymentId" dynamodbav:"payment_id"`
	PurgeAt   int64  `json:"-" dynamodbav:"purge_at"` // TTL (Unix seconds)
}
