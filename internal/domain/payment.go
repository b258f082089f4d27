package domain

import (
	"context"

	"github.com/stripe/stripe-go/v82"
)

type PaymentTransactionStatus string

// The backend reports the provider's intent status verbatim.
const (
	TransactionRequiresPaymentMethod = PaymentTransactionStatus(stripe.PaymentIntentStatusRequiresPaymentMethod)
	TransactionRequiresConfirmation  = PaymentTransactionStatus(stripe.PaymentIntentStatusRequiresConfirmation)
	TransactionRequiresAction        = PaymentTransactionStatus(stripe.PaymentIntentStatusRequiresAction)
	TransactionProcessing            = PaymentTransactionStatus(stripe.PaymentIntentStatusProcessing)
	TransactionRequiresCapture       = PaymentTransactionStatus(stripe.PaymentIntentStatusRequiresCapture)
	TransactionCanceled              = PaymentTransactionStatus(stripe.PaymentIntentStatusCanceled)
	TransactionSucceeded             = PaymentTransactionStatus(stripe.PaymentIntentStatusSucceeded)
)

func (s PaymentTransactionStatus) IsDeclined() bool {
	return s == TransactionRequiresPaymentMethod || s == TransactionCanceled
}

func (s PaymentTransactionStatus) IsPending() bool {
	return s == TransactionRequiresAction || s == TransactionRequiresConfirmation || s == TransactionProcessing
}

type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type PaymentMethod struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Last4          string   `json:"last4"`
	Brand          string   `json:"brand"`
	ExpMonth       int      `json:"expMonth"`
	ExpYear        int      `json:"expYear"`
	BillingAddress *Address `json:"billingAddress,omitempty"`
	IsDefault      bool     `json:"isDefault"`
}

type CreatePaymentMethodInput struct {
	ProviderToken  string
	BillingAddress *Address
	SetAsDefault   bool
}

type PaymentMethodGateway interface {
	GetPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	GetStripePublishableKey(ctx context.Context) (string, error)
	CreatePaymentMethod(ctx context.Context, input CreatePaymentMethodInput) (*PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id string) (bool, error)
	SetDefaultPaymentMethod(ctx context.Context, id string) (bool, error)
}
