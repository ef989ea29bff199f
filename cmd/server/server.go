package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/lmshub/coursepay/api"
	"github.com/lmshub/coursepay/api/background"
	"github.com/lmshub/coursepay/config"
	"github.com/lmshub/coursepay/core/payment"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/metrics"
	"github.com/lmshub/coursepay/notify"
	"github.com/lmshub/coursepay/rate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v76/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "COURSEPAY"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	mail := notify.New(cfg.Email, logger)

	bg := background.New(logger)

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	lim := rate.NewLimiter(cfg.Web.RateBurst, cfg.Web.RateExpiry, rate.Every(cfg.Web.RateInterval))
	bg.Go("rate-limiter", lim.Run)

	bg.Go("payment-sweeper", func(ctx context.Context) {
		payment.RunSweeper(ctx, db, logger.WithField("task", "sweeper"), cfg.Payment.SweepInterval, cfg.Payment.RetentionWindow)
	})

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Stripe:     strp,
		StripeCfg:  cfg.Stripe,
		JWTSecret:  cfg.Auth.JWTSecret,
		Background: bg,
		Mailer:     mail,
		Limiter:    lim,
		TrustProxy: cfg.Web.TrustProxy,
		Gatherer:   reg,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
