package notify

import (
	"io"
	"strings"
	"testing"

	"github.com/lmshub/coursepay/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestBody(t *testing.T) {
	r := Receipt{
		To:        "asha@example.com",
		Name:      "Asha",
		PaymentID: "pay-1",
		Amount:    decimal.NewFromInt(1200),
		Currency:  "inr",
		Courses:   []string{"Go Basics", "Distributed Systems"},
	}

	body := Body(r)
	for _, want := range []string{"Hi Asha", "  - Go Basics\n", "  - Distributed Systems\n", "1200.00 INR", "pay-1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}

	if got := Subject(r); !strings.Contains(got, "pay-1") {
		t.Errorf("expected subject to reference the payment, got %q", got)
	}
}

func TestNewWithoutHost(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	m := New(config.Email{}, log)
	if _, ok := m.(*logMailer); !ok {
		t.Fatalf("expected a log mailer without smtp host, got %T", m)
	}
	if err := m.SendReceipt(Receipt{PaymentID: "pay-1"}); err != nil {
		t.Fatal(err)
	}

	m = New(config.Email{Host: "smtp.example.com", Port: 587}, log)
	if _, ok := m.(*smtpMailer); !ok {
		t.Fatalf("expected an smtp mailer, got %T", m)
	}
}
