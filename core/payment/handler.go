package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/api/web"
	"github.com/lmshub/coursepay/api/weberr"
	"github.com/lmshub/coursepay/config"
	"github.com/lmshub/coursepay/core/claims"
	"github.com/lmshub/coursepay/core/course"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/metrics"
	"github.com/lmshub/coursepay/pagination"
	"github.com/lmshub/coursepay/validate"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	stripecl "github.com/stripe/stripe-go/v76/client"
)

const maxWebhookBytes = 64 << 10

// View is a payment as shown to its buyer.
type View struct {
	ID            string           `json:"id"`
	Status        Status           `json:"status"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Courses       []course.Summary `json:"courses"`
	FailureReason *string          `json:"failureReason,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundedAt    *time.Time       `json:"refundedAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

func views(ctx context.Context, db sqlx.ExtContext, ps []Payment) ([]View, error) {
	var ids []string
	for _, p := range ps {
		ids = append(ids, p.CourseIDs...)
	}

	sums, err := course.FetchSummaries(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	vs := make([]View, 0, len(ps))
	for _, p := range ps {
		v := View{
			ID:            p.ID,
			Status:        p.Status,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Courses:       make([]course.Summary, 0, len(p.CourseIDs)),
			FailureReason: p.FailureReason,
			RefundedAt:    p.RefundedAt,
			CreatedAt:     p.CreatedAt,
		}
		if p.Status == Refunded {
			amt := p.RefundAmount
			v.RefundAmount = &amt
		}

		for _, id := range p.CourseIDs {
			if s, ok := sums[id]; ok {
				v.Courses = append(v.Courses, s)
			}
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func HandleCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		co, err := StartCheckout(ctx, db, strp, cfg, clm)
		switch {
		case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidCart):
			metrics.CheckoutSessions.WithLabelValues(metrics.OutcomeRejected).Inc()
			return weberr.InvalidState(err)
		case err != nil:
			metrics.CheckoutSessions.WithLabelValues(metrics.OutcomeFailed).Inc()
			return fmt.Errorf("checking out cart of user[%s]: %w", clm.UserID, err)
		}
		metrics.CheckoutSessions.WithLabelValues(metrics.OutcomeCreated).Inc()

		resp := struct {
			RedirectURL string `json:"redirectUrl"`
			PaymentID   string `json:"paymentId"`
			SessionID   string `json:"sessionId"`
		}{
			RedirectURL: co.RedirectURL,
			PaymentID:   co.Payment.ID,
			SessionID:   co.SessionID,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleWebhook acknowledges every verified event it could process. Errors
// while applying an event answer 500 so Stripe delivers it again.
func HandleWebhook(rec *Reconciler, secret string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		body, err := web.RawBody(w, r, maxWebhookBytes)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading webhook body: %w", err))
		}

		ev, err := ParseEvent(body, r.Header.Get("Stripe-Signature"), secret)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
			if errors.Is(err, ErrSignature) {
				return weberr.NewError(err, "webhook signature verification failed", http.StatusBadRequest)
			}
			return weberr.BadRequest(fmt.Errorf("decoding webhook event: %w", err))
		}

		if _, err := rec.Apply(ctx, ev); err != nil {
			return fmt.Errorf("applying event[%s] of kind %s: %w", ev.ID(), ev.Kind(), err)
		}

		resp := struct {
			Received bool `json:"received"`
		}{
			Received: true,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// sessionParam reads the checkout session id. Older clients send it as
// sessionId.
func sessionParam(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("session_id"); id != "" {
		return id
	}
	return q.Get("sessionId")
}

func HandleSession(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		sessionID := sessionParam(r)
		if sessionID == "" {
			err := errors.New("session_id is required")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		p, err := FetchBySessionIDForUser(ctx, db, sessionID, clm.UserID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching payment: %w", err)
		}

		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := strp.CheckoutSessions.Get(sessionID, params)
		if err != nil {
			return fmt.Errorf("retrieving stripe session[%s]: %w", sessionID, err)
		}

		vs, err := views(ctx, db, []Payment{p})
		if err != nil {
			return fmt.Errorf("fetching courses of payment[%s]: %w", p.ID, err)
		}

		resp := struct {
			Payment       View   `json:"payment"`
			SessionStatus string `json:"sessionStatus"`
		}{
			Payment:       vs[0],
			SessionStatus: string(s.Status),
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func HandleHistory(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ps, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing payments: %w", err)
		}

		vs, err := views(ctx, db, ps)
		if err != nil {
			return fmt.Errorf("fetching courses of payments: %w", err)
		}

		resp := struct {
			Payments []View `json:"payments"`
		}{
			Payments: vs,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

type listQuery struct {
	Page   *int   `query:"page" validate:"omitempty,min=1"`
	Limit  *int   `query:"limit" validate:"omitempty,min=1"`
	Status string `query:"status" validate:"omitempty,oneof=pending completed failed refunded"`
}

func queryInt(r *http.Request, key string) (*int, error) {
	if !r.URL.Query().Has(key) {
		return nil, nil
	}

	n, err := web.QueryInt(r, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseListQuery(r *http.Request) (listQuery, error) {
	var (
		lq  listQuery
		err error
	)

	if lq.Page, err = queryInt(r, "page"); err != nil {
		return listQuery{}, err
	}
	if lq.Limit, err = queryInt(r, "limit"); err != nil {
		return listQuery{}, err
	}
	lq.Status = r.URL.Query().Get("status")

	if err := validate.Check(lq); err != nil {
		return listQuery{}, err
	}
	return lq, nil
}

// HandleList is the admin listing of every payment.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		lq, err := parseListQuery(r)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var page, limit int
		if lq.Page != nil {
			page = *lq.Page
		}
		if lq.Limit != nil {
			limit = *lq.Limit
		}
		pg := pagination.New(page, limit)
		f := Filter{Status: Status(lq.Status)}

		ps, err := List(ctx, db, f, pg)
		if err != nil {
			return fmt.Errorf("listing payments: %w", err)
		}

		total, err := Count(ctx, db, f)
		if err != nil {
			return fmt.Errorf("counting payments: %w", err)
		}

		if ps == nil {
			ps = []Payment{}
		}

		resp := pagination.Result[Payment]{
			Result:     ps,
			Pagination: pg.Meta(total),
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
