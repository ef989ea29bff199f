package payment

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func rawEvent(t *testing.T, id string, typ stripe.EventType, obj map[string]any) stripe.Event {
	t.Helper()

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	return stripe.Event{
		ID:   id,
		Type: typ,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		typ  stripe.EventType
		obj  map[string]any
		want Event
	}{
		{
			name: "session completed",
			typ:  stripe.EventTypeCheckoutSessionCompleted,
			obj: map[string]any{
				"id":             "cs_1",
				"mode":           "payment",
				"payment_status": "paid",
				"payment_intent": "pi_1",
			},
			want: SessionCompleted{EventID: "evt", SessionID: "cs_1", PaymentIntentID: "pi_1"},
		},
		{
			name: "session completed with checkout metadata",
			typ:  stripe.EventTypeCheckoutSessionCompleted,
			obj: map[string]any{
				"id":                  "cs_5",
				"mode":                "payment",
				"payment_status":      "paid",
				"payment_intent":      "pi_5",
				"amount_total":        120000,
				"currency":            "inr",
				"client_reference_id": "p-5",
				"metadata": map[string]any{
					"userId":    "u-5",
					"cartItems": "c-1,c-2",
				},
			},
			want: SessionCompleted{
				EventID:         "evt",
				SessionID:       "cs_5",
				PaymentIntentID: "pi_5",
				PaymentID:       "p-5",
				UserID:          "u-5",
				CourseIDs:       []string{"c-1", "c-2"},
				AmountTotal:     120000,
				Currency:        "inr",
			},
		},
		{
			name: "subscription session",
			typ:  stripe.EventTypeCheckoutSessionCompleted,
			obj:  map[string]any{"id": "cs_2", "mode": "subscription"},
			want: Ignored{EventID: "evt", Type: "checkout.session.completed"},
		},
		{
			name: "unpaid session",
			typ:  stripe.EventTypeCheckoutSessionCompleted,
			obj:  map[string]any{"id": "cs_3", "mode": "payment", "payment_status": "unpaid"},
			want: Ignored{EventID: "evt", Type: "checkout.session.completed"},
		},
		{
			name: "session expired",
			typ:  stripe.EventTypeCheckoutSessionExpired,
			obj:  map[string]any{"id": "cs_4", "mode": "payment"},
			want: SessionExpired{EventID: "evt", SessionID: "cs_4"},
		},
		{
			name: "charge failed",
			typ:  stripe.EventTypeChargeFailed,
			obj: map[string]any{
				"id":              "ch_1",
				"payment_intent":  "pi_2",
				"failure_message": "Your card was declined.",
				"metadata":        map[string]any{"paymentId": "p-1"},
			},
			want: PaymentFailed{
				EventID:         "evt",
				Type:            "charge.failed",
				PaymentIntentID: "pi_2",
				PaymentID:       "p-1",
				Message:         "Your card was declined.",
			},
		},
		{
			name: "payment intent failed",
			typ:  stripe.EventTypePaymentIntentPaymentFailed,
			obj: map[string]any{
				"id":                 "pi_3",
				"metadata":           map[string]any{"paymentId": "p-2"},
				"last_payment_error": map[string]any{"message": "Insufficient funds"},
			},
			want: PaymentFailed{
				EventID:         "evt",
				Type:            "payment_intent.payment_failed",
				PaymentIntentID: "pi_3",
				PaymentID:       "p-2",
				Message:         "Insufficient funds",
			},
		},
		{
			name: "charge refunded",
			typ:  stripe.EventTypeChargeRefunded,
			obj: map[string]any{
				"id":              "ch_2",
				"payment_intent":  "pi_4",
				"amount_refunded": 50050,
			},
			want: ChargeRefunded{EventID: "evt", PaymentIntentID: "pi_4", AmountRefunded: 50050},
		},
		{
			name: "unknown",
			typ:  "customer.created",
			obj:  map[string]any{"id": "cus_1"},
			want: Ignored{EventID: "evt", Type: "customer.created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(rawEvent(t, "evt", tt.typ, tt.obj))
			if err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	ev := stripe.Event{
		ID:   "evt",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(`"not an object"`)},
	}
	if _, err := decode(ev); err == nil {
		t.Fatal("expected an error for a malformed session")
	}

	if _, err := decode(stripe.Event{ID: "evt", Type: stripe.EventTypeChargeRefunded}); err == nil {
		t.Fatal("expected an error for an event without data")
	}
}

func TestParseEvent(t *testing.T) {
	const secret = "whsec_test"

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_signed",
		"object":      "event",
		"type":        "checkout.session.expired",
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{"id": "cs_9", "object": "checkout.session"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	ev, err := ParseEvent(payload, signed.Header, secret)
	if err != nil {
		t.Fatalf("parsing signed event: %v", err)
	}
	if diff := cmp.Diff(Event(SessionExpired{EventID: "evt_signed", SessionID: "cs_9"}), ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseEvent(payload, signed.Header, "whsec_other"); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for a wrong secret, got %v", err)
	}

	if _, err := ParseEvent(payload, "", secret); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for a missing header, got %v", err)
	}

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '
	if _, err := ParseEvent(tampered, signed.Header, secret); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for a tampered body, got %v", err)
	}
}

func TestPaymentIDParam(t *testing.T) {
	if p := paymentIDParam("not-a-uuid"); p != nil {
		t.Fatalf("expected nil for an invalid id, got %q", *p)
	}
	if p := paymentIDParam(""); p != nil {
		t.Fatalf("expected nil for an empty id, got %q", *p)
	}

	id := "0b6a4f0e-3c0c-4b8e-9f7a-8f3f1e0e2a11"
	if p := paymentIDParam(id); p == nil || *p != id {
		t.Fatalf("expected %s, got %v", id, p)
	}
}
