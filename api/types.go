// Package api declares the JSON bodies of the HTTP surface.
package api

import (
	"encoding/json"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	ErrorCode string    `json:"errorCode,omitempty"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

// DisplayTotals are the basket totals rendered for display.
type DisplayTotals struct {
	SubTotal    string `json:"subTotal"`
	Discount    string `json:"discount"`
	Credit      string `json:"credit"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
	ChargeTotal string `json:"chargeTotal"`
	PayLater    string `json:"payLater"`
}

type BasketResponse struct {
	Basket  *domain.Basket `json:"basket"`
	Display *DisplayTotals `json:"display,omitempty"`
}

type AddItemRequest struct {
	CourseId       string          `json:"courseId"`
	ItemType       domain.ItemType `json:"itemType"`
	PayDeposit     bool            `json:"payDeposit"`
	AssignToUserId *string         `json:"assignToUserId"`
	ChargeFromDate *time.Time      `json:"chargeFromDate"`
}

type CreditRequest struct {
	UseCredit *bool `json:"useCredit" validate:"required"`
}

type PromoCodeRequest struct {
	Code string `json:"code"`
}

type PaymentMethodsResponse struct {
	PaymentMethods []domain.PaymentMethod `json:"paymentMethods"`
}

type PaymentMethodResponse struct {
	PaymentMethod *domain.PaymentMethod `json:"paymentMethod"`
}

type CreatePaymentMethodRequest struct {
	ProviderToken  string          `json:"providerToken"`
	BillingAddress *domain.Address `json:"billingAddress"`
	SetAsDefault   bool            `json:"setAsDefault"`
}

type PaymentConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

// PlaceOrderRequest carries the basket id and chargeTotal the customer
// reviewed before paying.
type PlaceOrderRequest struct {
	BasketId            string          `json:"basketId"`
	ExpectedChargeTotal *int64          `json:"expectedChargeTotal"`
	PaymentMethodId     string          `json:"paymentMethodId"`
	PaymentMethodType   string          `json:"paymentMethodType"`
	BillingAddress      *domain.Address `json:"billingAddress"`
	LineItemInfo        json.RawMessage `json:"lineItemInfo"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentId string `json:"paymentIntentId" validate:"required,not_blank,max=255"`
}

type CheckoutResponse struct {
	Outcome domain.PaymentOutcome `json:"outcome"`
}

type ConfirmPaymentResponse struct {
	Confirmed bool                  `json:"confirmed"`
	Outcome   domain.PaymentOutcome `json:"outcome"`
}

type OrderResponse struct {
	Order *domain.Order `json:"order"`
}

type OrdersResponse struct {
	Orders   []domain.Order   `json:"orders"`
	Metadata *domain.Metadata `json:"metadata"`
}

type RefundRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type ActionResponse struct {
	Success bool `json:"success"`
}
