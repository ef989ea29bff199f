package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/api/background"
	"github.com/lmshub/coursepay/core/course"
	"github.com/lmshub/coursepay/core/user"
	"github.com/lmshub/coursepay/notify"
	"github.com/sirupsen/logrus"
)

// Receipts emails buyers once their payment completed. Sending happens in
// the background, after the reconciliation committed.
type Receipts struct {
	db       sqlx.ExtContext
	bg       *background.Background
	mailer   notify.Mailer
	log      logrus.FieldLogger
	attempts uint
	delay    time.Duration
}

func NewReceipts(db sqlx.ExtContext, bg *background.Background, mailer notify.Mailer, log logrus.FieldLogger) *Receipts {
	return &Receipts{
		db:       db,
		bg:       bg,
		mailer:   mailer,
		log:      log,
		attempts: 3,
		delay:    2 * time.Second,
	}
}

// Send schedules the receipt of p. A nil Receipts sends nothing.
func (r *Receipts) Send(p Payment) {
	if r == nil {
		return
	}

	r.bg.Go("receipt", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		log := r.log.WithField("payment_id", p.ID)
		if err := r.send(ctx, p); err != nil {
			log.Errorf("sending receipt: %v", err)
			return
		}
		log.Info("receipt sent")
	})
}

func (r *Receipts) send(ctx context.Context, p Payment) error {
	rc, err := r.build(ctx, p)
	if err != nil {
		return err
	}

	return retry.Do(
		func() error { return r.mailer.SendReceipt(rc) },
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
	)
}

func (r *Receipts) build(ctx context.Context, p Payment) (notify.Receipt, error) {
	u, err := user.Fetch(ctx, r.db, p.UserID)
	if err != nil {
		return notify.Receipt{}, fmt.Errorf("fetching buyer: %w", err)
	}

	sums, err := course.FetchSummaries(ctx, r.db, p.CourseIDs)
	if err != nil {
		return notify.Receipt{}, fmt.Errorf("fetching courses: %w", err)
	}

	titles := make([]string, 0, len(p.CourseIDs))
	for _, id := range p.CourseIDs {
		if s, ok := sums[id]; ok {
			titles = append(titles, s.Title)
		}
	}

	rc := notify.Receipt{
		To:        u.Email,
		Name:      u.Name,
		PaymentID: p.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Courses:   titles,
	}
	return rc, nil
}
