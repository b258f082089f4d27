package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// session is a browser-like client that keeps the session cookie between
// requests.
type session struct {
	t       *testing.T
	baseURL string
	client  *http.Client
}

func newSession(t *testing.T, baseURL string) *session {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &session{t: t, baseURL: baseURL, client: &http.Client{Jar: jar}}
}

func (s *session) do(method, path string, body any) *http.Response {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	require.NoError(s.t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := s.client.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { res.Body.Close() })

	return res
}

func (s *session) cookie(name string) string {
	u, err := url.Parse(s.baseURL)
	require.NoError(s.t, err)

	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}

	return ""
}

// reviewedOrder reads the basket the way a client shows it before payment
// and builds the placement for what it shows.
func (s *session) reviewedOrder(paymentMethodID string) api.PlaceOrderRequest {
	s.t.Helper()

	res := s.do(http.MethodGet, "/basket", nil)
	require.Equal(s.t, http.StatusOK, res.StatusCode)

	basket := decodeBody[api.BasketResponse](s.t, res).Basket
	require.NotNil(s.t, basket)

	total := basket.ChargeTotal

	return api.PlaceOrderRequest{
		BasketId:            basket.ID,
		ExpectedChargeTotal: &total,
		PaymentMethodId:     paymentMethodID,
	}
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))

	return v
}

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
	"updatedAt": {},
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}
		if nested, ok := m[k].(map[string]any); ok {
			cleanMap(nested)
		}
	}
}
