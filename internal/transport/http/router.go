package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-form-verify/internal/application/identity"
	"github.com/go-form-verify/internal/application/payment"
	"github.com/go-form-verify/internal/application/submission"
	"github.com/go-form-verify/internal/application/verification"
	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/transport/http/handler"
	appmiddleware "github.com/go-form-verify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	FormRepo              FormRepository
	TransactionRepo       TransactionRepository
	PaymentRepo           PaymentRepository
	PendingSubmissionRepo PendingSubmissionRepository
	SubmissionRepo        SubmissionRepository
	Attachments           AttachmentStore
	Hasher                OtpHasher
	SMSSender             SMSSender
	Mailer                Mailer
	Attestations          AttestationProvider
	Payments              PaymentProvider
	SSO                   identity.Verifiers
}

// NewRouter builds and returns the application router. ctx bounds the rate
// limiter's background sweep.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	resolver := identity.NewResolver(deps.SSO)
	verificationSvc := verification.NewService(verification.ServiceDeps{
		Transactions: deps.TransactionRepo,
		Forms:        deps.FormRepo,
		Hasher:       deps.Hasher,
		SMSSender:    deps.SMSSender,
		Mailer:       deps.Mailer,
		Signer:       deps.Attestations,
		Limits: verification.Limits{
			Wait:                 cfg.OTP.Wait(),
			OtpExpiry:            cfg.OTP.Expiry(),
			MaxRetries:           cfg.OTP.MaxRetries,
			MaxRequests:          cfg.OTP.MaxRequests,
			MaxRequestsOnboarded: cfg.OTP.MaxRequestsOnboarded,
			TransactionExpiry:    cfg.OTP.TransactionExpiry,
		},
		AppName: cfg.AppName,
	})
	saga := payment.NewSaga(payment.SagaDeps{
		Payments:           deps.PaymentRepo,
		PendingSubmissions: deps.PendingSubmissionRepo,
		Provider:           deps.Payments,
		Limits: payment.Limits{
			Currency:       cfg.Payments.Currency,
			MinAmountCents: cfg.Payments.MinAmountCents,
			MaxAmountCents: cfg.Payments.MaxAmountCents,
		},
		Env:              cfg.AppEnv,
		PendingRetention: cfg.PendingSubmissionRetention,
	})
	submissionSvc := submission.NewService(submission.ServiceDeps{
		Forms:       deps.FormRepo,
		Submissions: deps.SubmissionRepo,
		Attachments: deps.Attachments,
		Identity:    resolver,
		Attestation: deps.Attestations,
		Payments:    saga,
	})

	errs := handler.ErrorMapper{WaitSeconds: cfg.OTP.WaitSeconds}
	healthH := handler.NewHealthHandler()
	verificationH := handler.NewVerificationHandler(verificationSvc, resolver, errs)
	submissionH := handler.NewSubmissionHandler(submissionSvc, errs)

	r.Get("/health-check/{action}", healthH.Ping)

	r.Post("/forms/{formId}/transaction", verificationH.CreateTransaction)
	r.With(sensitiveRL.Limit).Post("/forms/{formId}/submissions/encrypt", submissionH.SubmitEncrypted)

	r.Get("/transactions/{transactionId}", verificationH.GetTransaction)
	r.Route("/transactions/{transactionId}/fields/{fieldId}", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/otp/generate", verificationH.GenerateOtp)
		r.With(sensitiveRL.Limit).Post("/otp/verify", verificationH.VerifyOtp)
		r.Post("/reset", verificationH.ResetField)
	})

	return r
}
