package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// MessageEnvelope is the body of every error response and of plain acknowledgements.
type MessageEnvelope struct {
	Message string `json:"message"`
}

type TransactionEnvelope struct {
	TransactionID string    `json:"transactionId"`
	ExpireAt      time.Time `json:"expireAt"`
}

type TransactionMetadataEnvelope struct {
	FormID   string    `json:"formId"`
	ExpireAt time.Time `json:"expireAt"`
}

type OtpPrefixEnvelope struct {
	OtpPrefix string `json:"otpPrefix"`
}

type PaymentData struct {
	PaymentID    string `json:"paymentId"`
	ClientSecret string `json:"paymentClientSecret,omitempty"`
}

// SubmissionEnvelope is returned on a successful submission. Timestamp is Unix millis.
type SubmissionEnvelope struct {
	Message      string       `json:"message"`
	SubmissionID string       `json:"submissionId"`
	Timestamp    int64        `json:"timestamp"`
	PaymentData  *PaymentData `json:"paymentData,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}
