package payment

import (
	"fmt"

	"github.com/go-form-verify/internal/domain"
)

// amount returns the amount to charge in cents for the form's payment type.
func (s *saga) amount(settings domain.PaymentSettings, in Input) (int64, error) {
	switch settings.Type {
	case domain.PaymentTypeFixed:
		if settings.AmountCents <= 0 {
			return 0, fmt.Errorf("fixed amount not set: %w", domain.ErrPaymentMisconfigured)
		}
		if !s.withinLimits(settings.AmountCents) {
			return 0, fmt.Errorf("fixed amount %d outside platform bounds: %w", settings.AmountCents, domain.ErrPaymentMisconfigured)
		}
		return settings.AmountCents, nil

	case domain.PaymentTypeVariable:
		if settings.MinAmountCents <= 0 || settings.MaxAmountCents < settings.MinAmountCents {
			return 0, fmt.Errorf("variable bounds: %w", domain.ErrPaymentMisconfigured)
		}
		a := in.AmountCents
		if a < settings.MinAmountCents || a > settings.MaxAmountCents || !s.withinLimits(a) {
			return 0, fmt.Errorf("amount %d: %w", a, domain.ErrPaymentAmountInvalid)
		}
		return a, nil

	case domain.PaymentTypeProducts:
		total, err := productsTotal(settings.Products, in.Products)
		if err != nil {
			return 0, err
		}
		if !s.withinLimits(total) {
			return 0, fmt.Errorf("products total %d: %w", total, domain.ErrPaymentAmountInvalid)
		}
		return total, nil

	default:
		return 0, fmt.Errorf("payment type %q: %w", settings.Type, domain.ErrPaymentMisconfigured)
	}
}

func (s *saga) withinLimits(a int64) bool {
	return a >= s.limits.MinAmountCents && a <= s.limits.MaxAmountCents
}

func productsTotal(catalogue []domain.Product, selected []domain.ProductItem) (int64, error) {
	if len(catalogue) == 0 {
		return 0, fmt.Errorf("no products: %w", domain.ErrPaymentMisconfigured)
	}
	byID := make(map[string]domain.Product, len(catalogue))
	for _, p := range catalogue {
		byID[p.ProductID] = p
	}
	var total int64
	seen := map[string]bool{}
	for _, item := range selected {
		if !item.Selected {
			continue
		}
		p, ok := byID[item.ProductID]
		if !ok || seen[item.ProductID] {
			return 0, fmt.Errorf("product %q: %w", item.ProductID, domain.ErrPaymentAmountInvalid)
		}
		seen[item.ProductID] = true
		if !quantityAllowed(p, item.Quantity) {
			return 0, fmt.Errorf("product %q quantity %d: %w", item.ProductID, item.Quantity, domain.ErrPaymentAmountInvalid)
		}
		total += p.AmountCents * int64(item.Quantity)
	}
	if total == 0 {
		return 0, fmt.Errorf("no product selected: %w", domain.ErrPaymentAmountInvalid)
	}
	return total, nil
}

func quantityAllowed(p domain.Product, qty int) bool {
	if !p.Multi {
		return qty == 1
	}
	return qty >= p.MinQty && qty <= p.MaxQty && qty > 0
}
