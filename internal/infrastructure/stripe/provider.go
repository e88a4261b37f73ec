package stripe

import (
	"context"
	"fmt"

	"github.com/go-form-verify/internal/config"
	"github.com/go-form-verify/internal/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type intentAPI interface {
	New(params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
	Cancel(id string, params *stripego.PaymentIntentCancelParams) (*stripego.PaymentIntent, error)
}

// Provider opens and cancels payment intents on connected Stripe accounts.
type Provider struct {
	intents intentAPI
}

func NewProvider(cfg *config.Config) *Provider {
	sc := &client.API{}
	sc.Init(cfg.Payments.StripeSecretKey, nil)
	return &Provider{intents: sc.PaymentIntents}
}

func (p *Provider) CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.PaymentIntent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:       stripego.Int64(req.AmountCents),
		Currency:     stripego.String(req.Currency),
		ReceiptEmail: stripego.String(req.ReceiptEmail),
		Description:  stripego.String(req.Description),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	if req.TargetAccountID != "" {
		params.SetStripeAccount(req.TargetAccountID)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &domain.PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *Provider) CancelIntent(ctx context.Context, targetAccountID, intentID string) error {
	params := &stripego.PaymentIntentCancelParams{}
	params.Context = ctx
	if targetAccountID != "" {
		params.SetStripeAccount(targetAccountID)
	}
	if _, err := p.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe cancel payment intent: %w", err)
	}
	return nil
}
