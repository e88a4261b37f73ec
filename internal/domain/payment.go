package domain

import "time"

// Payment is created before the provider intent exists; PaymentIntentID and
// PendingSubmissionID are filled in by the link step.
type Payment struct {
	PaymentID           string            `json:"id" dynamodbav:"payment_id"`
	FormID              string            `json:"formId" dynamodbav:"form_id"`
	TargetAccountID     string            `json:"-" dynamodbav:"target_account_id"`
	AmountCents         int64             `json:"amount" dynamodbav:"amount_cents"`
	Email               string            `json:"email" dynamodbav:"email"`
	Responses           []Response        `json:"-" dynamodbav:"responses"`
	Products            []ProductItem     `json:"products,omitempty" dynamodbav:"products,omitempty"`
	FeeSnapshot         FeeSnapshot       `json:"-" dynamodbav:"fee_snapshot"`
	PaymentIntentID     *string           `json:"paymentIntentId" dynamodbav:"payment_intent_id,omitempty"`
	PendingSubmissionID *string           `json:"pendingSubmissionId" dynamodbav:"pending_submission_id,omitempty"`
	CreatedAt           time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time         `json:"updated" dynamodbav:"updated_at"`
}

type FeeSnapshot struct {
	Currency   string `dynamodbav:"currency"`
	GstEnabled bool   `dynamodbav:"gst_enabled"`
}

// ProductItem is a product selection in a submission.
type ProductItem struct {
	ProductID string `json:"_id" dynamodbav:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity" validate:"min=1"`
	Selected  bool   `json:"selected" dynamodbav:"selected"`
}

// PaymentIntent is the provider's handle for an opened payment.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// IntentRequest is what the provider needs to open a payment intent.
type IntentRequest struct {
	AmountCents     int64
	Currency        string
	ReceiptEmail    string
	Description     string
	TargetAccountID string
	Metadata        map[string]string
	IdempotencyKey  string
}
