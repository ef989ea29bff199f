package test

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/lmshub/coursepay/api/web"
	mock "github.com/stripe/stripe-mock/param"
)

// session is what the mock remembers of a created checkout session.
type session struct {
	ID         string
	Status     string
	PaymentID  string
	UserID     string
	Currency   string
	UnitAmount []int64
	ExpiresAt  string
}

type mockStripe struct {
	mu       sync.Mutex
	n        int
	sessions map[string]*session
	fail     bool
}

func newMockStripe() *mockStripe {
	return &mockStripe{sessions: make(map[string]*session)}
}

func (m *mockStripe) session(id string) (session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return session{}, false
	}
	return *s, true
}

func (m *mockStripe) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.Status = status
	}
}

func (m *mockStripe) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// entries returns the elements of a form-encoded array, which may come back
// either as a slice or as a map keyed by index.
func entries(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case map[string]any:
		keys := make([]int, 0, len(vv))
		for k := range vv {
			i, err := strconv.Atoi(k)
			if err != nil {
				return nil
			}
			keys = append(keys, i)
		}
		sort.Ints(keys)

		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, vv[strconv.Itoa(k)])
		}
		return out
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[k]
	}
	s, _ := cur.(string)
	return s
}

func stripeError(w http.ResponseWriter, msg string, status int) {
	body := map[string]any{
		"error": map[string]any{
			"type":    "invalid_request_error",
			"message": msg,
		},
	}
	web.Respond(context.Background(), w, body, status)
}

func (m *mockStripe) sessionJSON(s *session) map[string]any {
	return map[string]any{
		"id":     s.ID,
		"object": "checkout.session",
		"mode":   "payment",
		"status": s.Status,
		"url":    "https://checkout.stripe.test/c/pay/" + s.ID,
	}
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			stripeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.fail {
			stripeError(w, "stripe is down", http.StatusInternalServerError)
			return
		}

		if str(params, "mode") != "payment" {
			stripeError(w, "mode must be payment", http.StatusBadRequest)
			return
		}

		s := &session{
			Status:    "open",
			PaymentID: str(params, "payment_intent_data", "metadata", "paymentId"),
			UserID:    str(params, "metadata", "userId"),
			ExpiresAt: str(params, "expires_at"),
		}

		for _, li := range entries(params["line_items"]) {
			it, ok := li.(map[string]any)
			if !ok || str(it, "quantity") != "1" {
				stripeError(w, "bad line item", http.StatusBadRequest)
				return
			}

			amount, err := strconv.ParseInt(str(it, "price_data", "unit_amount"), 10, 64)
			if err != nil {
				stripeError(w, "bad unit amount", http.StatusBadRequest)
				return
			}
			s.UnitAmount = append(s.UnitAmount, amount)
			s.Currency = str(it, "price_data", "currency")
		}

		m.n++
		s.ID = fmt.Sprintf("cs_test_%03d", m.n)
		m.sessions[s.ID] = s

		web.Respond(context.Background(), w, m.sessionJSON(s), http.StatusOK)
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		s, ok := m.sessions[mux.Vars(r)["id"]]
		if !ok {
			stripeError(w, "no such checkout session", http.StatusNotFound)
			return
		}
		web.Respond(context.Background(), w, m.sessionJSON(s), http.StatusOK)
	})

	expire := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		s, ok := m.sessions[mux.Vars(r)["id"]]
		if !ok {
			stripeError(w, "no such checkout session", http.StatusNotFound)
			return
		}
		s.Status = "expired"
		web.Respond(context.Background(), w, m.sessionJSON(s), http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", create).Methods(http.MethodPost)
	r.Handle("/v1/checkout/sessions/{id}", get).Methods(http.MethodGet)
	r.Handle("/v1/checkout/sessions/{id}/expire", expire).Methods(http.MethodPost)
	return r
}
