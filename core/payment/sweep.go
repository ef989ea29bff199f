package payment

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/metrics"
	"github.com/sirupsen/logrus"
)

// Sweep deletes payments that stayed pending for longer than retention.
func Sweep(ctx context.Context, db sqlx.ExtContext, retention time.Duration, now time.Time) (int64, error) {
	n, err := DeleteExpiredPending(ctx, db, now.Add(-retention))
	if err != nil {
		return 0, err
	}

	metrics.SweptPayments.Add(float64(n))
	return n, nil
}

// RunSweeper sweeps every interval until ctx is done. The retention window
// must outlive the checkout session lifetime, otherwise a payment could be
// removed while its session can still complete.
func RunSweeper(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := Sweep(ctx, db, retention, now.UTC())
			if err != nil {
				if ctx.Err() == nil {
					log.Errorf("sweeping pending payments: %v", err)
				}
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("removed abandoned pending payments")
			}
		}
	}
}
