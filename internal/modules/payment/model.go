package payment

import (
	"encoding/json"
	"time"
)

// Event types the webhook acts on. Anything else is acknowledged as unhandled.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// DispatchStatus is the outcome of handling one verified webhook event.
type DispatchStatus string

const (
	DispatchSuccess   DispatchStatus = "success"
	DispatchFailed    DispatchStatus = "failed"
	DispatchUnhandled DispatchStatus = "unhandled"
)

// Result is reported back to the payment processor in the webhook response.
type Result struct {
	Status DispatchStatus `json:"status"`
	Event  string         `json:"event"`
}

// StoredEvent is the audit copy of a verified webhook event.
type StoredEvent struct {
	EventID    string          `bson:"event_id" json:"event_id"`
	Type       string          `bson:"type" json:"type"`
	ReceivedAt time.Time       `bson:"received_at" json:"received_at"`
	Payload    json.RawMessage `bson:"-" json:"payload"`
}

// IntentRequest is the body of POST /payments/intents. Amount is in the
// currency's smallest unit.
type IntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int64  `json:"quantity"`
	Currency   string `json:"currency"`
}

// CheckoutRequest is the body of POST /payments/checkout.
type CheckoutRequest struct {
	LineItems  []LineItem        `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
