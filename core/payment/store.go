package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/pagination"
	"github.com/shopspring/decimal"
)

const columns = `
		payment_id, user_id, course_ids, amount, currency, session_id,
		payment_intent_id, status, failure_reason, refund_amount, refunded_at,
		metadata, processed_events, created_at, updated_at`

// HistoryLimit caps how many payments a user's history returns.
const HistoryLimit = 50

// Create inserts a new payment. A reused session id fails with
// database.ErrDuplicate.
func Create(ctx context.Context, db sqlx.ExtContext, p Payment) error {
	const q = `
	INSERT INTO payments
		(payment_id, user_id, course_ids, amount, currency, session_id, payment_intent_id,
		 status, refund_amount, metadata, processed_events, created_at, updated_at)
	VALUES
		(:payment_id, :user_id, :course_ids, :amount, :currency, :session_id, :payment_intent_id,
		 :status, :refund_amount, :metadata, :processed_events, :created_at, :updated_at)`

	if p.ProcessedEvents == nil {
		p.ProcessedEvents = []string{}
	}

	if err := database.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting payment for session[%s]: %w", p.SessionID, err)
	}
	return nil
}

func fetchByID(ctx context.Context, db sqlx.ExtContext, id string) (Payment, error) {
	in := struct {
		ID string `db:"payment_id"`
	}{
		ID: id,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE payment_id = :payment_id`

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		return Payment{}, fmt.Errorf("selecting payment[%s]: %w", id, err)
	}
	return p, nil
}

func FetchBySessionID(ctx context.Context, db sqlx.ExtContext, sessionID string) (Payment, error) {
	in := struct {
		SessionID string `db:"session_id"`
	}{
		SessionID: sessionID,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE session_id = :session_id`

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		return Payment{}, fmt.Errorf("selecting payment of session[%s]: %w", sessionID, err)
	}
	return p, nil
}

// FetchBySessionIDForUser is FetchBySessionID restricted to payments owned by
// userID. Someone else's payment is reported as not found.
func FetchBySessionIDForUser(ctx context.Context, db sqlx.ExtContext, sessionID string, userID string) (Payment, error) {
	in := struct {
		SessionID string `db:"session_id"`
		UserID    string `db:"user_id"`
	}{
		SessionID: sessionID,
		UserID:    userID,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE session_id = :session_id AND user_id = :user_id`

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		return Payment{}, fmt.Errorf("selecting payment of session[%s] for user[%s]: %w", sessionID, userID, err)
	}
	return p, nil
}

func FetchByPaymentIntentID(ctx context.Context, db sqlx.ExtContext, intentID string) (Payment, error) {
	in := struct {
		IntentID string `db:"payment_intent_id"`
	}{
		IntentID: intentID,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE payment_intent_id = :payment_intent_id`

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		return Payment{}, fmt.Errorf("selecting payment of intent[%s]: %w", intentID, err)
	}
	return p, nil
}

// ListByUser returns the user's most recent payments, newest first.
func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Payment, error) {
	in := struct {
		UserID string `db:"user_id"`
		Limit  int    `db:"limit"`
	}{
		UserID: userID,
		Limit:  HistoryLimit,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE user_id = :user_id
	ORDER BY created_at DESC, payment_id
	LIMIT :limit`

	var ps []Payment
	if err := database.NamedQuerySlice(ctx, db, q, in, &ps); err != nil {
		return nil, fmt.Errorf("selecting payments of user[%s]: %w", userID, err)
	}
	return ps, nil
}

// List returns one page of all payments matching f, newest first.
func List(ctx context.Context, db sqlx.ExtContext, f Filter, pg pagination.Page) ([]Payment, error) {
	in := struct {
		Status Status `db:"status"`
		Offset int    `db:"offset"`
		Limit  int    `db:"limit"`
	}{
		Status: f.Status,
		Offset: pg.Offset(),
		Limit:  pg.Limit,
	}

	q := `SELECT` + columns + `
	FROM payments
	WHERE (CAST(:status AS text) = '' OR status = :status)
	ORDER BY created_at DESC, payment_id
	OFFSET :offset LIMIT :limit`

	var ps []Payment
	if err := database.NamedQuerySlice(ctx, db, q, in, &ps); err != nil {
		return nil, fmt.Errorf("selecting payments: %w", err)
	}
	return ps, nil
}

func Count(ctx context.Context, db sqlx.ExtContext, f Filter) (int, error) {
	const q = `
	SELECT count(*) AS count
	FROM payments
	WHERE (CAST(:status AS text) = '' OR status = :status)`

	var out struct {
		Count int `db:"count"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, f, &out); err != nil {
		return 0, fmt.Errorf("counting payments: %w", err)
	}
	return out.Count, nil
}

// The transitions below are single conditional updates: the WHERE clause
// carries the state machine's precondition, so a duplicate or stale event
// matches no row and the update returns database.ErrNotFound.

type completeUp struct {
	SessionID string    `db:"session_id"`
	EventID   string    `db:"event_id"`
	IntentID  *string   `db:"payment_intent_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

func markCompleted(ctx context.Context, db sqlx.ExtContext, up completeUp) (Payment, error) {
	q := `
	UPDATE payments SET
		status = 'completed',
		payment_intent_id = COALESCE(:payment_intent_id, payment_intent_id),
		failure_reason = NULL,
		processed_events = array_append(processed_events, CAST(:event_id AS text)),
		updated_at = :updated_at
	WHERE session_id = :session_id
		AND status IN ('pending', 'failed')
		AND NOT (CAST(:event_id AS text) = ANY(processed_events))
	RETURNING` + columns

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, up, &p); err != nil {
		return Payment{}, fmt.Errorf("completing payment of session[%s]: %w", up.SessionID, err)
	}
	return p, nil
}

type expireUp struct {
	SessionID string    `db:"session_id"`
	EventID   string    `db:"event_id"`
	Reason    string    `db:"failure_reason"`
	UpdatedAt time.Time `db:"updated_at"`
}

func markExpired(ctx context.Context, db sqlx.ExtContext, up expireUp) (Payment, error) {
	q := `
	UPDATE payments SET
		status = 'failed',
		failure_reason = :failure_reason,
		processed_events = array_append(processed_events, CAST(:event_id AS text)),
		updated_at = :updated_at
	WHERE session_id = :session_id
		AND status = 'pending'
	RETURNING` + columns

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, up, &p); err != nil {
		return Payment{}, fmt.Errorf("expiring payment of session[%s]: %w", up.SessionID, err)
	}
	return p, nil
}

type failUp struct {
	IntentID  string    `db:"payment_intent_id"`
	PaymentID *string   `db:"payment_id"`
	EventID   string    `db:"event_id"`
	Reason    string    `db:"failure_reason"`
	UpdatedAt time.Time `db:"updated_at"`
}

// markFailed matches the payment by intent id, or by our own payment id when
// the intent is not recorded yet.
func markFailed(ctx context.Context, db sqlx.ExtContext, up failUp) (Payment, error) {
	q := `
	UPDATE payments SET
		status = 'failed',
		failure_reason = :failure_reason,
		payment_intent_id = COALESCE(payment_intent_id, NULLIF(CAST(:payment_intent_id AS text), '')),
		processed_events = array_append(processed_events, CAST(:event_id AS text)),
		updated_at = :updated_at
	WHERE (payment_intent_id = :payment_intent_id OR payment_id = :payment_id)
		AND status = 'pending'
	RETURNING` + columns

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, up, &p); err != nil {
		return Payment{}, fmt.Errorf("failing payment of intent[%s]: %w", up.IntentID, err)
	}
	return p, nil
}

type refundUp struct {
	IntentID     string          `db:"payment_intent_id"`
	EventID      string          `db:"event_id"`
	RefundAmount decimal.Decimal `db:"refund_amount"`
	RefundedAt   time.Time       `db:"refunded_at"`
}

func markRefunded(ctx context.Context, db sqlx.ExtContext, up refundUp) (Payment, error) {
	q := `
	UPDATE payments SET
		status = 'refunded',
		refund_amount = :refund_amount,
		refunded_at = :refunded_at,
		processed_events = array_append(processed_events, CAST(:event_id AS text)),
		updated_at = :refunded_at
	WHERE payment_intent_id = :payment_intent_id
		AND status IN ('completed', 'refunded')
		AND NOT (CAST(:event_id AS text) = ANY(processed_events))
	RETURNING` + columns

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, up, &p); err != nil {
		return Payment{}, fmt.Errorf("refunding payment of intent[%s]: %w", up.IntentID, err)
	}
	return p, nil
}

// DeleteExpiredPending removes payments still pending that were created
// before cutoff and returns how many were removed.
func DeleteExpiredPending(ctx context.Context, db sqlx.ExtContext, cutoff time.Time) (int64, error) {
	in := struct {
		Cutoff time.Time `db:"cutoff"`
	}{
		Cutoff: cutoff,
	}

	const q = `
	DELETE FROM payments
	WHERE status = 'pending' AND created_at < :cutoff`

	n, err := database.NamedExecCount(ctx, db, q, in)
	if err != nil {
		return 0, fmt.Errorf("deleting expired pending payments: %w", err)
	}
	return n, nil
}
