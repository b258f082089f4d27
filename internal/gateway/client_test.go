package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Authorization string
	Body          graphQLRequest
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Authorization = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &captured.Body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestClient(url string) *Client {
	return NewClient(url, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetBasket(t *testing.T) {
	var captured capturedRequest
	server := newTestServer(t, http.StatusOK, `{"data":{"getBasket":{
		"id":"basket-1",
		"items":[{"id":"item-1","courseId":"course-1","itemType":"COURSE","price":4500,"totalPrice":4500}],
		"subTotal":4500,"total":4500,"chargeTotal":4500
	}}}`, &captured)

	ctx := WithToken(context.Background(), "secret-token")
	basket, err := newTestClient(server.URL).GetBasket(ctx)

	require.NoError(t, err)
	want := &domain.Basket{
		ID: "basket-1",
		Items: []domain.BasketItem{
			{ID: "item-1", CourseID: "course-1", ItemType: domain.ItemTypeCourse, Price: 4500, TotalPrice: 4500},
		},
		Totals: domain.Totals{SubTotal: 4500, Total: 4500, ChargeTotal: 4500},
	}
	if diff := cmp.Diff(want, basket); diff != "" {
		t.Errorf("basket mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Bearer secret-token", captured.Authorization)
	assert.Contains(t, captured.Body.Query, "getBasket")
}

func TestGetBasket_Null(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"data":{"getBasket":null}}`, nil)

	basket, err := newTestClient(server.URL).GetBasket(context.Background())

	require.NoError(t, err)
	assert.Nil(t, basket)
}

func TestAddItem_SendsVariables(t *testing.T) {
	var captured capturedRequest
	server := newTestServer(t, http.StatusOK, `{"data":{"addItem":{
		"success":false,"message":"course is fully booked","errorCode":"COURSE_FULLY_BOOKED","basket":null
	}}}`, &captured)

	assignee := "user-2"
	chargeFrom := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	mutation, err := newTestClient(server.URL).AddItem(context.Background(), domain.AddItemInput{
		CourseID: "course-1",
		ItemType: domain.ItemTypeTaster,
		ItemOptions: domain.ItemOptions{
			PayDeposit:     true,
			AssignToUserID: &assignee,
			ChargeFromDate: &chargeFrom,
		},
	})

	require.NoError(t, err)
	assert.False(t, mutation.Success)
	assert.Equal(t, "COURSE_FULLY_BOOKED", mutation.ErrorCode)
	assert.Nil(t, mutation.Basket)

	input := captured.Body.Variables["input"].(map[string]any)
	assert.Equal(t, "course-1", input["courseId"])
	assert.Equal(t, "TASTER", input["itemType"])
	assert.Equal(t, true, input["payDeposit"])
	assert.Equal(t, "user-2", input["assignToUserId"])
	assert.Equal(t, "2026-09-01T09:00:00Z", input["chargeFromDate"])
	assert.Empty(t, captured.Authorization)
}

func TestPlaceOrder_RequiresAction(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"data":{"placeOrder":{
		"order":{"id":"order-1","status":"pending","total":4500,"chargeTotal":4500,"paymentIntentId":"pi_1"},
		"nextAction":{"type":"use_stripe_sdk"},
		"clientSecret":"pi_1_secret",
		"paymentIntentId":"pi_1",
		"paymentTransactionStatus":"requires_action",
		"errors":[]
	}}}`, nil)

	result, err := newTestClient(server.URL).PlaceOrder(context.Background(), domain.PlaceOrderInput{
		BasketID:        "basket-1",
		PaymentMethodID: "pm_1",
		IdempotencyKey:  "key-1",
	})

	require.NoError(t, err)
	assert.True(t, result.RequiresAction())
	assert.Equal(t, "pi_1_secret", result.ClientSecret)
	assert.Equal(t, domain.TransactionRequiresAction, result.PaymentTransactionStatus)
	assert.Equal(t, domain.OrderStatusPending, result.Order.Status)
	assert.Equal(t, int64(4500), result.Order.ChargeTotal)
}

func TestFlagOperations(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"data":{"cancelOrder":true}}`, nil)

	ok, err := newTestClient(server.URL).CancelOrder(context.Background(), "order-1")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantCode domain.ErrorCode
	}{
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			body:     `upstream unavailable`,
			wantErr:  domain.ErrNetwork,
			wantCode: domain.CodeNetworkError,
		},
		{
			name:     "body is not json",
			status:   http.StatusOK,
			body:     `<html>`,
			wantErr:  domain.ErrMalformedResponse,
			wantCode: domain.CodeExceptionError,
		},
		{
			name:     "data field missing",
			status:   http.StatusOK,
			body:     `{"data":{}}`,
			wantErr:  domain.ErrMalformedResponse,
			wantCode: domain.CodeExceptionError,
		},
		{
			name:     "wrong field type",
			status:   http.StatusOK,
			body:     `{"data":{"getBasket":"nope"}}`,
			wantErr:  domain.ErrMalformedResponse,
			wantCode: domain.CodeExceptionError,
		},
		{
			name:     "graphql errors",
			status:   http.StatusOK,
			body:     `{"data":null,"errors":[{"message":"not authenticated"}]}`,
			wantErr:  domain.ErrRemote,
			wantCode: domain.CodeBasketError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.body, nil)

			_, err := newTestClient(server.URL).GetBasket(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, domain.CodeFor(err, domain.CodeBasketError))
		})
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"errors":[{"message":"not authenticated"},{"message":"try again"}]}`, nil)

	_, err := newTestClient(server.URL).GetOrder(context.Background(), "order-1")

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "getOrder", remote.Operation)
	assert.Equal(t, []string{"not authenticated", "try again"}, remote.Messages)
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.GetBasket(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).GetPaymentMethods(context.Background())

	assert.ErrorIs(t, err, domain.ErrNetwork)
}
