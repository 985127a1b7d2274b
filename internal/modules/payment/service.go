package payment

import (
	"context"
	"net/url"
	"strings"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

const defaultCurrency = "usd"

// Service validates payment requests and forwards them to the Gateway. A nil
// gateway means the processor is not configured.
type Service struct {
	gateway Gateway
}

func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

func (s *Service) available() error {
	if s.gateway == nil {
		return httpx.Unavailable("Payments are not configured")
	}
	return nil
}

func currency(c string) string {
	if c = strings.ToLower(strings.TrimSpace(c)); c == "" {
		return defaultCurrency
	}
	return c
}

func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, httpx.Validation("amount must be greater than 0")
	}
	req.Currency = currency(req.Currency)
	req.Metadata = cleanMetadata(req.Metadata)

	intent, err := s.gateway.CreatePaymentIntent(ctx, req)
	if err != nil {
		return nil, httpx.Upstream("Failed to create payment intent", err)
	}
	return intent, nil
}

// cleanMetadata drops keys Stripe or the audit store would misread.
func cleanMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			continue
		}
		out[k] = v
	}
	return out
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if len(req.LineItems) == 0 {
		return nil, httpx.Validation("at least one line item is required")
	}
	for i := range req.LineItems {
		li := &req.LineItems[i]
		if strings.TrimSpace(li.Name) == "" || li.UnitAmount <= 0 || li.Quantity <= 0 {
			return nil, httpx.Validation("line item %d needs a name, a positive unit_amount and a positive quantity", i)
		}
		li.Currency = currency(li.Currency)
	}
	if !validURL(req.SuccessURL) || !validURL(req.CancelURL) {
		return nil, httpx.Validation("success_url and cancel_url must be absolute http(s) URLs")
	}
	req.Metadata = cleanMetadata(req.Metadata)

	checkout, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, httpx.Upstream("Failed to create checkout session", err)
	}
	return checkout, nil
}
