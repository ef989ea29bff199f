package config

import (
	"errors"
	"time"
)

type Config struct {
	Web     Web
	DB      DB
	Auth    Auth
	Stripe  Stripe
	Payment Payment
	Email   Email
	Cors    Cors
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
	RateBurst       int           `conf:"default:100"`
	RateInterval    time.Duration `conf:"default:900ms"`
	RateExpiry      time.Duration `conf:"default:15m"`
	TrustProxy      bool          `conf:"default:false"`
}

type DB struct {
	User           string `conf:"default:postgres"`
	Password       string `conf:"default:postgres,mask"`
	Host           string `conf:"default:localhost:5432"`
	Name           string `conf:"default:coursepay"`
	MaxIdleConns   int    `conf:"default:5"`
	MaxOpenConns   int    `conf:"default:25"`
	DisableTLS     bool   `conf:"default:true"`
	ConnectRetries uint   `conf:"default:5"`
}

type Auth struct {
	JWTSecret string `conf:"required,mask"`
}

type Stripe struct {
	APISecret       string        `conf:"required,mask"`
	WebhookSecret   string        `conf:"required,mask"`
	Currency        string        `conf:"default:inr"`
	FrontendURL     string        `conf:"default:http://localhost:5173"`
	SessionLifetime time.Duration `conf:"default:30m"`
}

type Payment struct {
	RetentionWindow time.Duration `conf:"default:60m"`
	SweepInterval   time.Duration `conf:"default:1m"`
}

type Email struct {
	Host     string
	Port     int    `conf:"default:587"`
	Username string
	Password string `conf:"mask"`
	From     string `conf:"default:no-reply@coursepay.local"`
}

type Cors struct {
	Origin string
}

// Stripe refuses checkout sessions that expire in less than 30 minutes.
const minSessionLifetime = 30 * time.Minute

func (c Config) Validate() error {
	if c.Stripe.SessionLifetime < minSessionLifetime {
		return errors.New("stripe session lifetime must be at least 30m")
	}
	if c.Payment.RetentionWindow <= c.Stripe.SessionLifetime {
		return errors.New("pending payment retention window must exceed the stripe session lifetime")
	}
	if c.Payment.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	return nil
}
