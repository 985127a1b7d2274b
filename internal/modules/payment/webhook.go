package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/metrics"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
)

const (
	SignatureHeader = "Stripe-Signature"

	// DefaultMaxPayloadBytes bounds the webhook body when no limit is configured.
	DefaultMaxPayloadBytes int64 = 512 << 10
)

// EventConstructor verifies a signed payload and returns the event it carries.
type EventConstructor interface {
	ConstructEvent(payload []byte, signature, secret string) (stripe.Event, error)
}

type stripeConstructor struct{}

// StripeConstructor verifies signatures with the Stripe webhook package.
func StripeConstructor() EventConstructor { return stripeConstructor{} }

func (stripeConstructor) ConstructEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// OrderStore is the subset of the orders record service the dispatcher needs.
type OrderStore interface {
	Get(ctx context.Context, id string, sc record.Scope) (*record.Record, error)
	Update(ctx context.Context, id string, patch []byte, sc record.Scope) (*record.Record, error)
}

// Dispatcher acts on verified events. Orders may be nil.
type Dispatcher struct {
	Orders OrderStore
	Log    logrus.FieldLogger
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev stripe.Event) (Result, error) {
	res := Result{Status: DispatchUnhandled, Event: string(ev.Type)}
	var paymentStatus string
	switch string(ev.Type) {
	case EventPaymentSucceeded:
		res.Status, paymentStatus = DispatchSuccess, "paid"
	case EventPaymentFailed:
		res.Status, paymentStatus = DispatchFailed, "failed"
	default:
		d.Log.WithField("event_type", ev.Type).Info("unhandled webhook event")
		return res, nil
	}

	if d.Orders == nil || ev.Data == nil {
		return res, nil
	}
	intent := gjson.ParseBytes(ev.Data.Raw)
	orderID := intent.Get("metadata.order_id").String()
	if orderID == "" {
		return res, nil
	}
	log := d.Log.WithFields(logrus.Fields{"order_id": orderID, "payment_intent": intent.Get("id").String()})

	order, err := d.Orders.Get(ctx, orderID, record.Scope{})
	if err != nil {
		if e := httpx.AsError(err); e.Kind == httpx.KindNotFound {
			log.Warn("webhook references unknown order")
			return res, nil
		}
		return res, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if reason := mismatch(order, intent, paymentStatus == "paid"); reason != "" {
		log.WithField("reason", reason).Warn("payment not applied to order")
		return res, nil
	}

	patch := fmt.Sprintf(`{"payment_status":%q,"payment_intent":%q}`, paymentStatus, intent.Get("id").String())
	if _, err := d.Orders.Update(ctx, orderID, []byte(patch), record.Scope{}); err != nil {
		return res, fmt.Errorf("mark order %s %s: %w", orderID, paymentStatus, err)
	}
	return res, nil
}

// mismatch reports why intent may not settle order: the payer must own the
// order and, for a successful payment, amount_received must equal data.total
// in minor units.
func mismatch(order *record.Record, intent gjson.Result, settled bool) string {
	owner := gjson.GetBytes(order.Data, record.Orders.OwnerKey).String()
	if owner == "" || intent.Get("metadata.user_id").String() != owner {
		return "payer does not own order"
	}
	if !settled {
		return ""
	}
	total, err := decimal.NewFromString(gjson.GetBytes(order.Data, "total").String())
	if err != nil {
		return "order has no valid total"
	}
	due := total.Shift(2)
	if !due.IsInteger() || !due.Equal(decimal.NewFromInt(intent.Get("amount_received").Int())) {
		return "amount received does not match order total"
	}
	return ""
}

// WebhookOptions configure a WebhookHandler.
type WebhookOptions struct {
	Secret           string
	ConstructTimeout time.Duration
	MaxPayloadBytes  int64
	Production       bool
}

// WebhookHandler serves POST /webhook/stripe.
type WebhookHandler struct {
	opts        WebhookOptions
	constructor EventConstructor
	dedup       Dedup
	events      EventRepository
	dispatcher  *Dispatcher
	resp        *httpx.Responder
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewWebhookHandler(opts WebhookOptions, constructor EventConstructor, dedup Dedup, events EventRepository, dispatcher *Dispatcher, resp *httpx.Responder, log logrus.FieldLogger) *WebhookHandler {
	if opts.ConstructTimeout <= 0 {
		opts.ConstructTimeout = 5 * time.Second
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if events == nil {
		events = NopRepository()
	}
	return &WebhookHandler{
		opts:        opts,
		constructor: constructor,
		dedup:       dedup,
		events:      events,
		dispatcher:  dispatcher,
		resp:        resp,
		log:         log,
		now:         time.Now,
	}
}

type webhookError struct {
	Error string `json:"error"`
}

type webhookAck struct {
	Received  bool    `json:"received"`
	Duplicate bool    `json:"duplicate,omitempty"`
	Result    *Result `json:"result,omitempty"`
}

var errConstructTimeout = errors.New("webhook event construction timed out")

func (h *WebhookHandler) fail(w http.ResponseWriter, status int, outcome, msg string) {
	metrics.RecordWebhook(outcome)
	h.resp.JSON(w, status, webhookError{Error: msg})
}

// construct runs the constructor under the configured timeout. On timeout the
// goroutine is abandoned; it holds only the payload copy.
func (h *WebhookHandler) construct(ctx context.Context, payload []byte, sig string) (stripe.Event, error) {
	type result struct {
		ev  stripe.Event
		err error
	}
	done := make(chan result, 1)
	go func() {
		ev, err := h.constructor.ConstructEvent(payload, sig, h.opts.Secret)
		done <- result{ev, err}
	}()

	timer := time.NewTimer(h.opts.ConstructTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.ev, r.err
	case <-timer.C:
		return stripe.Event{}, errConstructTimeout
	case <-ctx.Done():
		return stripe.Event{}, ctx.Err()
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" || h.opts.Secret == "" {
		h.fail(w, http.StatusBadRequest, "rejected", "Missing Stripe signature or webhook secret")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxPayloadBytes))
	if err != nil {
		h.fail(w, http.StatusBadRequest, "rejected", "Unable to read request body")
		return
	}

	ev, err := h.construct(r.Context(), payload, sig)
	if errors.Is(err, errConstructTimeout) {
		h.log.Error("webhook construction timed out")
		h.fail(w, http.StatusInternalServerError, "error", "Webhook processing failed")
		return
	}
	if err != nil {
		h.log.WithError(err).Warn("webhook signature verification failed")
		msg := "Webhook Error: " + err.Error()
		if h.opts.Production {
			msg = "Webhook Error: invalid payload or signature"
		}
		h.fail(w, http.StatusBadRequest, "rejected", msg)
		return
	}

	log := h.log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})
	claimed, err := h.dedup.Claim(r.Context(), ev.ID)
	if err != nil {
		log.WithError(err).Error("webhook dedup claim failed")
		h.fail(w, http.StatusInternalServerError, "error", "Webhook processing failed")
		return
	}
	if !claimed {
		log.Info("duplicate webhook event ignored")
		metrics.RecordWebhook("duplicate")
		h.resp.JSON(w, http.StatusOK, webhookAck{Received: true, Duplicate: true})
		return
	}

	res, err := h.process(r.Context(), ev, payload)
	if err != nil {
		log.WithError(err).Error("webhook dispatch failed")
		if rerr := h.dedup.Release(context.WithoutCancel(r.Context()), ev.ID); rerr != nil {
			log.WithError(rerr).Warn("release webhook claim")
		}
		h.fail(w, http.StatusInternalServerError, "error", "Webhook processing failed")
		return
	}

	metrics.RecordWebhook(string(res.Status))
	h.resp.JSON(w, http.StatusOK, webhookAck{Received: true, Result: &res})
}

func (h *WebhookHandler) process(ctx context.Context, ev stripe.Event, payload []byte) (Result, error) {
	stored := StoredEvent{
		EventID:    ev.ID,
		Type:       string(ev.Type),
		ReceivedAt: h.now().UTC(),
		Payload:    payload,
	}
	if err := h.events.Record(ctx, stored); err != nil {
		return Result{}, err
	}
	return h.dispatcher.Dispatch(ctx, ev)
}
