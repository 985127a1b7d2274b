package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

type fakeGateway struct {
	intent   IntentRequest
	checkout CheckoutRequest
	err      error
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	g.intent = req
	if g.err != nil {
		return nil, g.err
	}
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	g.checkout = req
	if g.err != nil {
		return nil, g.err
	}
	return &Checkout{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
}

func kindOf(t *testing.T, err error) httpx.Kind {
	t.Helper()
	var e *httpx.Error
	require.True(t, errors.As(err, &e), "want *httpx.Error, got %v", err)
	return e.Kind
}

func TestCreateIntent(t *testing.T) {
	g := &fakeGateway{}
	s := NewService(g)

	intent, err := s.CreateIntent(context.Background(), IntentRequest{Amount: 1250})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "usd", g.intent.Currency)

	_, err = s.CreateIntent(context.Background(), IntentRequest{Amount: 0})
	assert.Equal(t, httpx.KindValidation, kindOf(t, err))
}

func TestCreateIntent_GatewayFailure(t *testing.T) {
	s := NewService(&fakeGateway{err: errors.New("card_declined")})
	_, err := s.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "EUR"})
	assert.Equal(t, httpx.KindUpstream, kindOf(t, err))
}

func TestService_UnconfiguredIsUnavailable(t *testing.T) {
	s := NewService(nil)
	_, err := s.CreateIntent(context.Background(), IntentRequest{Amount: 100})
	assert.Equal(t, httpx.KindUnavailable, kindOf(t, err))

	_, err = s.CreateCheckout(context.Background(), CheckoutRequest{})
	assert.Equal(t, httpx.KindUnavailable, kindOf(t, err))
}

func TestCreateCheckout(t *testing.T) {
	valid := func() CheckoutRequest {
		return CheckoutRequest{
			LineItems:  []LineItem{{Name: "Bento", UnitAmount: 900, Quantity: 2}},
			SuccessURL: "https://canteen42.example/success",
			CancelURL:  "https://canteen42.example/cancel",
		}
	}

	g := &fakeGateway{}
	s := NewService(g)
	out, err := s.CreateCheckout(context.Background(), valid())
	require.NoError(t, err)
	assert.Equal(t, "cs_1", out.ID)
	assert.Equal(t, "usd", g.checkout.LineItems[0].Currency)

	for name, mutate := range map[string]func(*CheckoutRequest){
		"no items":     func(r *CheckoutRequest) { r.LineItems = nil },
		"zero qty":     func(r *CheckoutRequest) { r.LineItems[0].Quantity = 0 },
		"no name":      func(r *CheckoutRequest) { r.LineItems[0].Name = " " },
		"relative url": func(r *CheckoutRequest) { r.SuccessURL = "/success" },
	} {
		t.Run(name, func(t *testing.T) {
			req := valid()
			mutate(&req)
			_, err := s.CreateCheckout(context.Background(), req)
			assert.Equal(t, httpx.KindValidation, kindOf(t, err))
		})
	}
}

func TestService_DropsOperatorMetadataKeys(t *testing.T) {
	g := &fakeGateway{}
	s := NewService(g)

	_, err := s.CreateIntent(context.Background(), IntentRequest{
		Amount:   100,
		Metadata: map[string]string{"order_id": "7", "$date": "soon", "a.b": "c", "user_id": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"order_id": "7", "user_id": "u1"}, g.intent.Metadata)
}
