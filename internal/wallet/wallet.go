// Package wallet manages the saved payment methods of one customer.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/enrolhub/checkout-engine/internal/cache"
	"github.com/enrolhub/checkout-engine/internal/domain"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL         = 5 * time.Minute
	publishableKeyName = "stripe-publishable-key"
)

// ValidationError carries the per-field problems of a rejected input.
type ValidationError struct {
	Fields []domain.FieldError
}

func (e *ValidationError) Error() string {
	return domain.ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrValidation
}

type CreateInput struct {
	ProviderToken  string          `json:"providerToken" validate:"required,not_blank,max=255"`
	BillingAddress *domain.Address `json:"billingAddress"`
	SetAsDefault   bool            `json:"setAsDefault"`
}

type Wallet struct {
	owner     string
	gateway   domain.PaymentMethodGateway
	methods   cache.Cache[[]domain.PaymentMethod]
	keys      cache.Cache[string]
	ttl       time.Duration
	logger    *slog.Logger
	validator *validator.Validate
	fills     singleflight.Group
}

// New returns the wallet of owner. Cached entries are keyed by owner, so
// caches may be shared between wallets.
func New(
	owner string,
	gateway domain.PaymentMethodGateway,
	methods cache.Cache[[]domain.PaymentMethod],
	keys cache.Cache[string],
	ttl time.Duration,
	logger *slog.Logger,
	validator *validator.Validate) *Wallet {

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Wallet{
		owner:     owner,
		gateway:   gateway,
		methods:   methods,
		keys:      keys,
		ttl:       ttl,
		logger:    logger,
		validator: validator,
	}
}

func (w *Wallet) List(ctx context.Context) ([]domain.PaymentMethod, error) {
	methods, err := w.methods.Get(ctx, w.owner)
	if err == nil {
		return methods, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		w.logger.Warn("payment method cache read failed", "error", err)
	}

	v, err, _ := w.fills.Do("methods:"+w.owner, func() (any, error) {
		methods, err := w.gateway.GetPaymentMethods(ctx)
		if err != nil {
			return nil, err
		}

		err = w.methods.Put(ctx, w.owner, methods, w.ttl)
		if err != nil {
			w.logger.Warn("payment method cache write failed", "error", err)
		}

		return methods, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.PaymentMethod), nil
}

// Default returns the method marked as default, or the first one when none
// is marked.
func (w *Wallet) Default(ctx context.Context) (*domain.PaymentMethod, error) {
	methods, err := w.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(methods) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	for _, m := range methods {
		if m.IsDefault {
			return &m, nil
		}
	}

	return &methods[0], nil
}

func (w *Wallet) Create(ctx context.Context, input CreateInput) (*domain.PaymentMethod, error) {
	input.ProviderToken = strings.TrimSpace(input.ProviderToken)

	err := w.validator.Struct(input)
	if err != nil {
		return nil, &ValidationError{Fields: appvalidator.FieldErrors(err)}
	}

	method, err := w.gateway.CreatePaymentMethod(ctx, domain.CreatePaymentMethodInput{
		ProviderToken:  input.ProviderToken,
		BillingAddress: input.BillingAddress,
		SetAsDefault:   input.SetAsDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment method: %w", err)
	}

	w.invalidate(ctx)

	return method, nil
}

func (w *Wallet) Delete(ctx context.Context, id string) (bool, error) {
	return w.change(ctx, id, w.gateway.DeletePaymentMethod)
}

func (w *Wallet) SetDefault(ctx context.Context, id string) (bool, error) {
	return w.change(ctx, id, w.gateway.SetDefaultPaymentMethod)
}

// PublishableKey is opaque provider configuration handed to the client as is.
func (w *Wallet) PublishableKey(ctx context.Context) (string, error) {
	key, err := w.keys.Get(ctx, publishableKeyName)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		w.logger.Warn("publishable key cache read failed", "error", err)
	}

	v, err, _ := w.fills.Do(publishableKeyName, func() (any, error) {
		key, err := w.gateway.GetStripePublishableKey(ctx)
		if err != nil {
			return "", err
		}

		err = w.keys.Put(ctx, publishableKeyName, key, w.ttl)
		if err != nil {
			w.logger.Warn("publishable key cache write failed", "error", err)
		}

		return key, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (w *Wallet) change(ctx context.Context, id string, fn func(context.Context, string) (bool, error)) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, &ValidationError{Fields: []domain.FieldError{{Path: "id", Message: appvalidator.ErrRequired}}}
	}

	ok, err := fn(ctx, id)
	if err != nil {
		return false, err
	}

	if ok {
		w.invalidate(ctx)
	}

	return ok, nil
}

// Forget drops the cached payment methods of the wallet owner, as when the
// owner signs out.
func (w *Wallet) Forget(ctx context.Context) {
	w.invalidate(ctx)
}

func (w *Wallet) invalidate(ctx context.Context) {
	err := w.methods.Invalidate(ctx, w.owner)
	if err != nil {
		w.logger.Warn("payment method cache invalidation failed", "error", err)
	}
}
