package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/config"
	"github.com/lmshub/coursepay/core/cart"
	"github.com/lmshub/coursepay/core/claims"
	"github.com/lmshub/coursepay/core/course"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/money"
	"github.com/lmshub/coursepay/validate"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	stripecl "github.com/stripe/stripe-go/v76/client"
)

// Checkout is the result of starting a checkout: the pending payment and the
// Stripe session the buyer is redirected to.
type Checkout struct {
	Payment     Payment
	SessionID   string
	RedirectURL string
}

// purchasable loads the courses in the user's cart, in cart order.
func purchasable(ctx context.Context, db sqlx.ExtContext, userID string) ([]course.Course, error) {
	items, err := cart.FetchItems(ctx, db, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching cart items: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	courses := make([]course.Course, 0, len(items))
	for _, it := range items {
		c, err := course.Fetch(ctx, db, it.CourseID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("%w: course[%s] no longer exists", ErrInvalidCart, it.CourseID)
			}
			return nil, fmt.Errorf("fetching course[%s]: %w", it.CourseID, err)
		}

		if c.Price.IsNegative() {
			return nil, fmt.Errorf("%w: course[%s] has a negative price", ErrInvalidCart, c.ID)
		}
		if !c.InstructorName.Valid {
			return nil, fmt.Errorf("%w: course[%s] has no instructor", ErrInvalidCart, c.ID)
		}

		courses = append(courses, c)
	}

	return courses, nil
}

func lineItems(courses []course.Course, currency string) []*stripe.CheckoutSessionLineItemParams {
	li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(courses))
	for _, c := range courses {
		prod := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(c.Title),
			Description: stripe.String("Instructor: " + c.InstructorName.String),
			Metadata:    map[string]string{"courseId": c.ID},
		}
		if c.ThumbnailURL != "" {
			prod.Images = stripe.StringSlice([]string{c.ThumbnailURL})
		}

		li = append(li, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(money.ToMinor(c.Price)),
				ProductData: prod,
			},
		})
	}
	return li
}

func sessionParams(ctx context.Context, cfg config.Stripe, clm claims.Claims, paymentID string, courses []course.Course, now time.Time) *stripe.CheckoutSessionParams {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}

	frontend := strings.TrimSuffix(cfg.FrontendURL, "/")

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems(courses, cfg.Currency),
		SuccessURL:         stripe.String(frontend + "/payment-success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(frontend + "/payment-failed"),
		ClientReferenceID:  stripe.String(paymentID),
		ExpiresAt:          stripe.Int64(now.Add(cfg.SessionLifetime).Unix()),

		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metaPaymentID: paymentID},
		},
	}
	if clm.Email != "" {
		params.CustomerEmail = stripe.String(clm.Email)
	}

	params.Context = ctx
	params.AddMetadata(metaUserID, clm.UserID)
	params.AddMetadata(metaCartItems, strings.Join(ids, ","))
	params.AddMetadata(metaPaymentID, paymentID)

	return params
}

// StartCheckout snapshots the user's cart into a pending payment behind a
// new Stripe Checkout Session. The cart is left untouched until the payment
// completes.
func StartCheckout(ctx context.Context, db *sqlx.DB, strp *stripecl.API, cfg config.Stripe, clm claims.Claims) (Checkout, error) {
	courses, err := purchasable(ctx, db, clm.UserID)
	if err != nil {
		return Checkout{}, err
	}

	prices := make([]decimal.Decimal, 0, len(courses))
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		prices = append(prices, c.Price)
		ids = append(ids, c.ID)
	}

	now := time.Now().UTC()
	paymentID := validate.GenerateID()

	s, err := strp.CheckoutSessions.New(sessionParams(ctx, cfg, clm, paymentID, courses, now))
	if err != nil {
		return Checkout{}, fmt.Errorf("creating stripe session: %w", err)
	}

	p := Payment{
		ID:        paymentID,
		UserID:    clm.UserID,
		CourseIDs: ids,
		Amount:    money.Sum(prices...),
		Currency:  cfg.Currency,
		SessionID: s.ID,
		Status:    Pending,
		Metadata:  Metadata{"itemCount": len(courses)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := Create(ctx, db, p); err != nil {
		if _, xerr := strp.CheckoutSessions.Expire(s.ID, nil); xerr != nil {
			return Checkout{}, fmt.Errorf("storing pending payment: %w (expiring session[%s]: %v)", err, s.ID, xerr)
		}
		return Checkout{}, fmt.Errorf("storing pending payment: %w", err)
	}

	co := Checkout{
		Payment:     p,
		SessionID:   s.ID,
		RedirectURL: s.URL,
	}
	return co, nil
}
