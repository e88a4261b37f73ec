package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-form-verify/internal/application/identity"
	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-form-verify/internal/infrastructure/jwt"
	s3infra "github.com/go-form-verify/internal/infrastructure/s3"
	"github.com/go-form-verify/internal/infrastructure/smtp"
	"github.com/go-form-verify/internal/infrastructure/sns"
	"github.com/go-form-verify/internal/infrastructure/sso"
	"github.com/go-form-verify/internal/infrastructure/stripe"
	"github.com/go-form-verify/internal/pkg/hash"
	transporthttp "github.com/go-form-verify/internal/transport/http"
	"github.com/joho/godotenv"
)

// bcrypt cost for OTP hashes.
const otpHashCost = 10

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	attestations, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("attestation keys not available", "err", err)
		os.Exit(1)
	}

	deps := &transporthttp.Deps{
		FormRepo:              dynamo.NewFormRepo(dynamoClient, cfg.DynamoTables.Forms),
		TransactionRepo:       dynamo.NewTransactionRepo(dynamoClient, cfg.DynamoTables.Transactions, cfg.TransactionRetention),
		PaymentRepo:           dynamo.NewPaymentRepo(dynamoClient, cfg.DynamoTables.Payments),
		PendingSubmissionRepo: dynamo.NewPendingSubmissionRepo(dynamoClient, cfg.DynamoTables.PendingSubmissions),
		SubmissionRepo:        dynamo.NewSubmissionRepo(dynamoClient, cfg.DynamoTables.Submissions),
		Attachments:           s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3BucketName),
		Hasher:                hash.NewBcrypt(otpHashCost),
		Mailer:                smtp.NewMailer(cfg),
		Attestations:          attestations,
		Payments:              stripe.NewProvider(cfg),
		SSO:                   loadVerifiers(cfg.SSO),
	}

	// SMS is optional; mobile verification fails with a send error without it.
	if sender, err := sns.NewSender(cfg); err == nil {
		deps.SMSSender = sender
	} else {
		slog.Warn("sns sender not available", "err", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// loadVerifiers builds a verifier for every auth mode with a configured key. Modes
// without one stay nil and reject their forms' requests.
func loadVerifiers(keys config.SSO) identity.Verifiers {
	var v identity.Verifiers
	for _, m := range []struct {
		name string
		path string
		dst  *identity.TokenVerifier
	}{
		{"singpass", keys.SingpassPublicKeyPath, &v.Singpass},
		{"corppass", keys.CorppassPublicKeyPath, &v.Corppass},
		{"sgid", keys.SgidPublicKeyPath, &v.Sgid},
		{"sgid_myinfo", keys.SgidMyInfoPublicKeyPath, &v.SgidMyInfo},
		{"myinfo", keys.MyInfoPublicKeyPath, &v.MyInfo},
	} {
		if m.path == "" {
			continue
		}
		verifier, err := sso.NewVerifierFromFile(m.path)
		if err != nil {
			slog.Warn("sso verifier not available", "mode", m.name, "err", err)
			continue
		}
		*m.dst = verifier
	}
	return v
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
