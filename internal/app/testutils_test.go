package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/cache"
	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/events"
	"github.com/enrolhub/checkout-engine/internal/metrics"
	"github.com/enrolhub/checkout-engine/internal/repository"
	"github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestApplication(gateway domain.Gateway, opts ...func(*Application)) *Application {
	cfg := Config{
		Env: "test",
		Checkout: CheckoutConfig{
			ActionTimeout:     time.Minute,
			PaymentMethodsTTL: time.Minute,
			SessionIdleTime:   time.Minute,
		},
	}

	app := NewApp(
		cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		validator.NewValidator(),
		scs.New(),
		metrics.New(prometheus.NewRegistry()),
		gateway,
		repository.NewMemoryLedger(),
		nil,
		events.Noop{},
		cache.NewMemoryCache[[]domain.PaymentMethod](),
		cache.NewMemoryCache[string](),
	)

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// client replays the session cookie the way a browser would.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	headers map[string]string
}

func newClient(t *testing.T, handler http.Handler) *client {
	return &client{t: t, handler: handler, cookies: map[string]*http.Cookie{}, headers: map[string]string{}}
}

func (c *client) do(method, url string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewReader([]byte(b))
		default:
			jsonData, err := json.Marshal(body)
			if err != nil {
				c.t.Fatal(err)
			}
			reader = bytes.NewReader(jsonData)
		}
	}

	r := httptest.NewRequest(method, url, reader)
	if reader != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	for k, v := range c.headers {
		r.Header.Set(k, v)
	}

	for _, cookie := range c.cookies {
		r.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, r)

	for _, cookie := range w.Result().Cookies() {
		c.cookies[cookie.Name] = cookie
	}

	return w
}

// reviewedOrder reads the basket as a client shows it before payment and
// builds the placement for what it shows.
func (c *client) reviewedOrder(paymentMethodID string) api.PlaceOrderRequest {
	c.t.Helper()

	req := api.PlaceOrderRequest{PaymentMethodId: paymentMethodID, ExpectedChargeTotal: new(int64)}

	w := c.do(http.MethodGet, "/basket", nil)
	if w.Code != http.StatusOK {
		c.t.Fatalf("read basket before checkout: status %d", w.Code)
	}

	if basket := decode[api.BasketResponse](c.t, w).Basket; basket != nil {
		req.BasketId = basket.ID
		*req.ExpectedChargeTotal = basket.ChargeTotal
	}

	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return v
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
