package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	AppName  string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	// Attestation signing keys (RS256).
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int

	OTP      OTP
	SSO      SSO
	Payments Payments

	TransactionRetention       time.Duration
	PendingSubmissionRetention time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Forms              string
	Transactions       string
	Payments           string
	PendingSubmissions string
	Submissions        string
}

// OTP holds the verification ceilings. Onboarded forms get a higher request ceiling.
type OTP struct {
	WaitSeconds          int
	ExpireSeconds        int
	MaxRetries           int
	MaxRequests          int
	MaxRequestsOnboarded int
	TransactionExpiry    time.Duration
}

// Wait is the minimum interval between two OTP requests for one field.
func (o OTP) Wait() time.Duration { return time.Duration(o.WaitSeconds) * time.Second }

// Expiry is how long an issued OTP stays valid.
func (o OTP) Expiry() time.Duration { return time.Duration(o.ExpireSeconds) * time.Second }

// SSO holds the PEM public keys used to verify identity-assertion JWTs.
// An empty path disables the corresponding auth mode.
type SSO struct {
	SingpassPublicKeyPath   string
	CorppassPublicKeyPath   string
	SgidPublicKeyPath       string
	SgidMyInfoPublicKeyPath string
	MyInfoPublicKeyPath     string
}

type Payments struct {
	StripeSecretKey string
	Currency        string
	MinAmountCents  int64
	MaxAmountCents  int64
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AppName:        getEnv("APP_NAME", "FormSG"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "ap-southeast-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Forms:              getEnv("DYNAMO_TABLE_FORMS", "forms"),
			Transactions:       getEnv("DYNAMO_TABLE_TRANSACTIONS", "verification_transactions"),
			Payments:           getEnv("DYNAMO_TABLE_PAYMENTS", "payments"),
			PendingSubmissions: getEnv("DYNAMO_TABLE_PENDING_SUBMISSIONS", "pending_submissions"),
			Submissions:        getEnv("DYNAMO_TABLE_SUBMISSIONS", "submissions"),
		},
		S3BucketName:      getEnv("S3_ATTACHMENT_BUCKET", "form-attachments"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "donotreply@form.gov.sg"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSRegion:         getEnv("SNS_REGION", "ap-southeast-1"),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		OTP: OTP{
			WaitSeconds:          getEnvInt("OTP_WAIT_SECONDS", 30),
			ExpireSeconds:        getEnvInt("OTP_EXPIRE_SECONDS", 600),
			MaxRetries:           getEnvInt("OTP_MAX_RETRIES", 4),
			MaxRequests:          getEnvInt("OTP_MAX_REQUESTS", 10),
			MaxRequestsOnboarded: getEnvInt("OTP_MAX_REQUESTS_ONBOARDED", 50),
			TransactionExpiry:    time.Duration(getEnvInt("TRANSACTION_EXPIRE_SECONDS", 4*60*60)) * time.Second,
		},
		SSO: SSO{
			SingpassPublicKeyPath:   getEnv("SP_PUBLIC_KEY_PATH", ""),
			CorppassPublicKeyPath:   getEnv("CP_PUBLIC_KEY_PATH", ""),
			SgidPublicKeyPath:       getEnv("SGID_PUBLIC_KEY_PATH", ""),
			SgidMyInfoPublicKeyPath: getEnv("SGID_MYINFO_PUBLIC_KEY_PATH", ""),
			MyInfoPublicKeyPath:     getEnv("MYINFO_PUBLIC_KEY_PATH", ""),
		},
		Payments: Payments{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:        getEnv("PAYMENT_CURRENCY", "sgd"),
			MinAmountCents:  int64(getEnvInt("PAYMENT_MIN_AMOUNT_CENTS", 50)),
			MaxAmountCents:  int64(getEnvInt("PAYMENT_MAX_AMOUNT_CENTS", 1000000)),
		},
		TransactionRetention:       time.Duration(getEnvInt("TRANSACTION_RETENTION_HOURS", 24)) * time.Hour,
		PendingSubmissionRetention: time.Duration(getEnvInt("PENDING_SUBMISSION_RETENTION_DAYS", 30)) * 24 * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
