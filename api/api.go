package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/api/background"
	"github.com/lmshub/coursepay/api/middleware"
	"github.com/lmshub/coursepay/api/web"
	"github.com/lmshub/coursepay/config"
	"github.com/lmshub/coursepay/core/auth"
	"github.com/lmshub/coursepay/core/claims"
	"github.com/lmshub/coursepay/core/enrollment"
	"github.com/lmshub/coursepay/core/payment"
	"github.com/lmshub/coursepay/notify"
	"github.com/lmshub/coursepay/rate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v76/client"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Stripe     *stripecl.API
	StripeCfg  config.Stripe
	JWTSecret  string
	Background *background.Background
	Mailer     notify.Mailer
	Limiter    *rate.Limiter
	TrustProxy bool
	Gatherer   prometheus.Gatherer
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Metrics())
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.DB, cfg.JWTSecret)
	admin := auth.Authorize(claims.RoleAdmin)

	// Only user-facing routes are limited; the webhook never is.
	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter, cfg.TrustProxy)
	}

	var receipts *payment.Receipts
	if cfg.Mailer != nil && cfg.Background != nil {
		receipts = payment.NewReceipts(cfg.DB, cfg.Background, cfg.Mailer, cfg.Log)
	}
	rec := payment.NewReconciler(cfg.DB, cfg.Log, receipts)

	a.Handle(http.MethodPost, "/payments/checkout", payment.HandleCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), limit, authen)
	a.Handle(http.MethodPost, "/payments/webhook", payment.HandleWebhook(rec, cfg.StripeCfg.WebhookSecret))
	a.Handle(http.MethodGet, "/payments/session", payment.HandleSession(cfg.DB, cfg.Stripe), limit, authen)
	a.Handle(http.MethodGet, "/payments/history", payment.HandleHistory(cfg.DB), limit, authen)
	a.Handle(http.MethodGet, "/payments", payment.HandleList(cfg.DB), limit, authen, admin)

	a.Handle(http.MethodGet, "/enrollments", enrollment.HandleListMine(cfg.DB), limit, authen)

	if cfg.Gatherer != nil {
		a.Router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
