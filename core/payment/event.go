package payment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lmshub/coursepay/validate"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event is a verified webhook delivery narrowed to what reconciliation
// needs. It is one of SessionCompleted, SessionExpired, PaymentFailed,
// ChargeRefunded or Ignored.
type Event interface {
	Kind() string
	ID() string
}

// SessionCompleted carries, besides the session, what checkout wrote into
// the session metadata so a payment record that is gone can be rebuilt.
type SessionCompleted struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	PaymentID       string
	UserID          string
	CourseIDs       []string
	AmountTotal     int64
	Currency        string
}

type SessionExpired struct {
	EventID   string
	SessionID string
}

// PaymentFailed is reported for both failed charges and failed payment
// intents. PaymentID is our own id echoed back through the intent metadata.
type PaymentFailed struct {
	EventID         string
	Type            string
	PaymentIntentID string
	PaymentID       string
	Message         string
}

type ChargeRefunded struct {
	EventID         string
	PaymentIntentID string
	AmountRefunded  int64
}

type Ignored struct {
	EventID string
	Type    string
}

func (e SessionCompleted) Kind() string { return string(stripe.EventTypeCheckoutSessionCompleted) }
func (e SessionExpired) Kind() string   { return string(stripe.EventTypeCheckoutSessionExpired) }
func (e PaymentFailed) Kind() string    { return e.Type }
func (e ChargeRefunded) Kind() string   { return string(stripe.EventTypeChargeRefunded) }
func (e Ignored) Kind() string          { return "ignored" }

func (e SessionCompleted) ID() string { return e.EventID }
func (e SessionExpired) ID() string   { return e.EventID }
func (e PaymentFailed) ID() string    { return e.EventID }
func (e ChargeRefunded) ID() string   { return e.EventID }
func (e Ignored) ID() string          { return e.EventID }

// Metadata keys set on Stripe objects at checkout.
const (
	metaPaymentID = "paymentId"
	metaUserID    = "userId"
	metaCartItems = "cartItems"
)

// ParseEvent verifies the Stripe-Signature header of payload and decodes the
// event. A bad signature is reported as ErrSignature.
func ParseEvent(payload []byte, header string, secret string) (Event, error) {
	if header == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrSignature)
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	return decode(ev)
}

func decode(ev stripe.Event) (Event, error) {
	if ev.Data == nil {
		return nil, fmt.Errorf("event[%s] has no data", ev.ID)
	}

	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decoding checkout session of event[%s]: %w", ev.ID, err)
		}
		if s.Mode != stripe.CheckoutSessionModePayment || s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return Ignored{EventID: ev.ID, Type: string(ev.Type)}, nil
		}

		e := SessionCompleted{
			EventID:     ev.ID,
			SessionID:   s.ID,
			PaymentID:   s.Metadata[metaPaymentID],
			UserID:      s.Metadata[metaUserID],
			CourseIDs:   splitIDs(s.Metadata[metaCartItems]),
			AmountTotal: s.AmountTotal,
			Currency:    string(s.Currency),
		}
		if e.PaymentID == "" {
			e.PaymentID = s.ClientReferenceID
		}
		if s.PaymentIntent != nil {
			e.PaymentIntentID = s.PaymentIntent.ID
		}
		return e, nil

	case stripe.EventTypeCheckoutSessionExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decoding checkout session of event[%s]: %w", ev.ID, err)
		}
		return SessionExpired{EventID: ev.ID, SessionID: s.ID}, nil

	case stripe.EventTypeChargeFailed:
		var c stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &c); err != nil {
			return nil, fmt.Errorf("decoding charge of event[%s]: %w", ev.ID, err)
		}

		e := PaymentFailed{
			EventID:   ev.ID,
			Type:      string(ev.Type),
			PaymentID: c.Metadata[metaPaymentID],
			Message:   c.FailureMessage,
		}
		if c.PaymentIntent != nil {
			e.PaymentIntentID = c.PaymentIntent.ID
		}
		return e, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decoding payment intent of event[%s]: %w", ev.ID, err)
		}

		e := PaymentFailed{
			EventID:         ev.ID,
			Type:            string(ev.Type),
			PaymentIntentID: pi.ID,
			PaymentID:       pi.Metadata[metaPaymentID],
		}
		if pi.LastPaymentError != nil {
			e.Message = pi.LastPaymentError.Msg
		}
		return e, nil

	case stripe.EventTypeChargeRefunded:
		var c stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &c); err != nil {
			return nil, fmt.Errorf("decoding charge of event[%s]: %w", ev.ID, err)
		}

		e := ChargeRefunded{EventID: ev.ID, AmountRefunded: c.AmountRefunded}
		if c.PaymentIntent != nil {
			e.PaymentIntentID = c.PaymentIntent.ID
		}
		return e, nil
	}

	return Ignored{EventID: ev.ID, Type: string(ev.Type)}, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// paymentIDParam returns id when it can be compared against payment_id.
func paymentIDParam(id string) *string {
	if validate.CheckID(id) != nil {
		return nil
	}
	return &id
}
