// Package payment implements checkout through Stripe and the reconciliation
// of payment records from Stripe webhook events.
package payment

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment. Pending moves to completed or
// failed, a failed payment can still complete when the customer retries
// within the same checkout session, and completed moves to refunded.
type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
	Refunded  Status = "refunded"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case Pending, Completed, Failed, Refunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrInvalidCart = errors.New("cart contains a course that cannot be purchased")
	ErrSignature   = errors.New("webhook signature verification failed")
)

const (
	expiredReason  = "Checkout session expired - User did not complete payment within time limit"
	declinedReason = "Payment declined by card issuer"
)

type Payment struct {
	ID              string          `json:"id" db:"payment_id"`
	UserID          string          `json:"userId" db:"user_id"`
	CourseIDs       pq.StringArray  `json:"courseIds" db:"course_ids"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	SessionID       string          `json:"sessionId" db:"session_id"`
	PaymentIntentID *string         `json:"paymentIntentId,omitempty" db:"payment_intent_id"`
	Status          Status          `json:"status" db:"status"`
	FailureReason   *string         `json:"failureReason,omitempty" db:"failure_reason"`
	RefundAmount    decimal.Decimal `json:"refundAmount" db:"refund_amount"`
	RefundedAt      *time.Time      `json:"refundedAt,omitempty" db:"refunded_at"`
	Metadata        Metadata        `json:"metadata" db:"metadata"`
	ProcessedEvents pq.StringArray  `json:"-" db:"processed_events"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Metadata is a free-form JSON object stored alongside a payment. Numbers
// scan back as json.Number so integers keep their exact value.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into metadata", src)
	}

	out := Metadata{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}
	*m = out
	return nil
}

// Filter narrows the admin listing. The zero value matches every payment.
type Filter struct {
	Status Status `db:"status"`
}
