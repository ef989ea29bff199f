package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/core/cart"
	"github.com/lmshub/coursepay/core/enrollment"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/metrics"
	"github.com/lmshub/coursepay/money"
	"github.com/lmshub/coursepay/validate"
	"github.com/sirupsen/logrus"
)

// Outcome tells how a webhook event affected the payment records.
type Outcome string

const (
	Applied  Outcome = "applied"
	Noop     Outcome = "noop"
	NotFound Outcome = "not_found"
	Skipped  Outcome = "ignored"
)

// Reconciler applies webhook events to payment records. Every transition is
// a conditional update, so redelivered, concurrent or out of order events
// never move a payment twice.
type Reconciler struct {
	db       *sqlx.DB
	log      logrus.FieldLogger
	receipts *Receipts
	now      func() time.Time
}

// NewReconciler builds a Reconciler. receipts may be nil.
func NewReconciler(db *sqlx.DB, log logrus.FieldLogger, receipts *Receipts) *Reconciler {
	return &Reconciler{
		db:       db,
		log:      log,
		receipts: receipts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (rc *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	var (
		out Outcome
		err error
	)

	switch e := ev.(type) {
	case SessionCompleted:
		out, err = rc.complete(ctx, e)
	case SessionExpired:
		out, err = rc.expire(ctx, e)
	case PaymentFailed:
		out, err = rc.fail(ctx, e)
	case ChargeRefunded:
		out, err = rc.refund(ctx, e)
	case Ignored:
		out = Skipped
	default:
		err = fmt.Errorf("unsupported event %T", ev)
	}

	log := rc.log.WithFields(logrus.Fields{
		"event_id":   ev.ID(),
		"event_kind": ev.Kind(),
	})

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Kind(), metrics.OutcomeFailed).Inc()
		return "", err
	}
	metrics.WebhookEvents.WithLabelValues(ev.Kind(), string(out)).Inc()

	switch out {
	case Applied:
		log.Info("payment reconciled")
	case Noop:
		log.Info("event already applied or stale, skipping")
	case NotFound:
		log.Warn("no payment matches event")
	case Skipped:
		if ig, ok := ev.(Ignored); ok {
			log = log.WithField("event_type", ig.Type)
		}
		log.Info("event type not handled")
	}
	return out, nil
}

func (rc *Reconciler) complete(ctx context.Context, e SessionCompleted) (Outcome, error) {
	now := rc.now()
	up := completeUp{
		SessionID: e.SessionID,
		EventID:   e.EventID,
		UpdatedAt: now,
	}
	if e.PaymentIntentID != "" {
		up.IntentID = &e.PaymentIntentID
	}

	var p Payment
	err := database.Transaction(ctx, rc.db, func(tx sqlx.ExtContext) error {
		var err error
		if p, err = markCompleted(ctx, tx, up); err != nil {
			return err
		}
		return fulfil(ctx, tx, p, now)
	})

	switch {
	case errors.Is(err, database.ErrNotFound):
		out, err := rc.classify(func() error {
			_, err := FetchBySessionID(ctx, rc.db, e.SessionID)
			return err
		})
		if err != nil || out != NotFound {
			return out, err
		}
		return rc.recoverCompleted(ctx, e, now)
	case err != nil:
		return "", fmt.Errorf("completing payment of session[%s]: %w", e.SessionID, err)
	}

	rc.receipts.Send(p)
	return Applied, nil
}

// fulfil enrolls the payer in every purchased course and empties the cart.
func fulfil(ctx context.Context, tx sqlx.ExtContext, p Payment, now time.Time) error {
	for _, id := range p.CourseIDs {
		en := enrollment.Enrollment{
			UserID:     p.UserID,
			CourseID:   id,
			EnrolledAt: now,
		}
		if _, err := enrollment.Ensure(ctx, tx, en); err != nil {
			return err
		}
	}

	return cart.Clear(ctx, tx, p.UserID, now)
}

// recoverCompleted rebuilds a paid session's payment from the checkout
// metadata when its pending record was swept before the completion arrived.
func (rc *Reconciler) recoverCompleted(ctx context.Context, e SessionCompleted, now time.Time) (Outcome, error) {
	log := rc.log.WithFields(logrus.Fields{
		"event_id":   e.EventID,
		"session_id": e.SessionID,
		"payment_id": e.PaymentID,
		"user_id":    e.UserID,
	})

	if paymentIDParam(e.PaymentID) == nil || validate.CheckID(e.UserID) != nil || len(e.CourseIDs) == 0 {
		log.Error("paid session has no payment record and no usable checkout metadata")
		return NotFound, nil
	}

	p := Payment{
		ID:              e.PaymentID,
		UserID:          e.UserID,
		CourseIDs:       e.CourseIDs,
		Amount:          money.FromMinor(e.AmountTotal),
		Currency:        e.Currency,
		SessionID:       e.SessionID,
		Status:          Completed,
		Metadata:        Metadata{"itemCount": len(e.CourseIDs), "recovered": true},
		ProcessedEvents: []string{e.EventID},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if e.PaymentIntentID != "" {
		p.PaymentIntentID = &e.PaymentIntentID
	}

	err := database.Transaction(ctx, rc.db, func(tx sqlx.ExtContext) error {
		if err := Create(ctx, tx, p); err != nil {
			return err
		}
		return fulfil(ctx, tx, p, now)
	})

	switch {
	case errors.Is(err, database.ErrDuplicate):
		return Noop, nil
	case err != nil:
		log.WithError(err).Error("recovering payment of paid session")
		return "", fmt.Errorf("recovering payment of session[%s]: %w", e.SessionID, err)
	}

	log.Warn("payment recreated from checkout metadata")
	rc.receipts.Send(p)
	return Applied, nil
}

func (rc *Reconciler) expire(ctx context.Context, e SessionExpired) (Outcome, error) {
	up := expireUp{
		SessionID: e.SessionID,
		EventID:   e.EventID,
		Reason:    expiredReason,
		UpdatedAt: rc.now(),
	}

	_, err := markExpired(ctx, rc.db, up)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rc.classify(func() error {
			_, err := FetchBySessionID(ctx, rc.db, e.SessionID)
			return err
		})
	case err != nil:
		return "", err
	}
	return Applied, nil
}

func (rc *Reconciler) fail(ctx context.Context, e PaymentFailed) (Outcome, error) {
	reason := e.Message
	if reason == "" {
		reason = declinedReason
	}

	up := failUp{
		IntentID:  e.PaymentIntentID,
		PaymentID: paymentIDParam(e.PaymentID),
		EventID:   e.EventID,
		Reason:    reason,
		UpdatedAt: rc.now(),
	}

	_, err := markFailed(ctx, rc.db, up)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rc.classify(func() error {
			_, err := FetchByPaymentIntentID(ctx, rc.db, e.PaymentIntentID)
			if errors.Is(err, database.ErrNotFound) && up.PaymentID != nil {
				_, err = fetchByID(ctx, rc.db, *up.PaymentID)
			}
			return err
		})
	case err != nil:
		return "", err
	}
	return Applied, nil
}

func (rc *Reconciler) refund(ctx context.Context, e ChargeRefunded) (Outcome, error) {
	up := refundUp{
		IntentID:     e.PaymentIntentID,
		EventID:      e.EventID,
		RefundAmount: money.FromMinor(e.AmountRefunded),
		RefundedAt:   rc.now(),
	}

	_, err := markRefunded(ctx, rc.db, up)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rc.classify(func() error {
			_, err := FetchByPaymentIntentID(ctx, rc.db, e.PaymentIntentID)
			return err
		})
	case err != nil:
		return "", err
	}
	return Applied, nil
}

// classify tells a missing payment from one the guard refused, after a
// conditional update matched no row.
func (rc *Reconciler) classify(lookup func() error) (Outcome, error) {
	err := lookup()
	switch {
	case errors.Is(err, database.ErrNotFound):
		return NotFound, nil
	case err != nil:
		return "", err
	}
	return Noop, nil
}
