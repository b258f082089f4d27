// Package basket applies basket-changing intents one at a time.
//
// Intents issued while another is in flight queue behind it in issue order.
// Intents issued while a checkout holds the basket are rejected with BUSY.
// Every successful intent replaces the local snapshot with the basket the
// backend returned; a failed intent leaves the snapshot untouched.
package basket

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/metrics"
	"github.com/enrolhub/checkout-engine/internal/store"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	CodeAlreadyInBasket domain.ErrorCode = "ALREADY_IN_BASKET"
	CodeNotInBasket     domain.ErrorCode = "NOT_IN_BASKET"
)

type Coordinator struct {
	gateway   domain.BasketGateway
	store     store.BasketStore
	logger    *slog.Logger
	validator *validator.Validate
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	loads     singleflight.Group
}

func NewCoordinator(
	gateway domain.BasketGateway,
	store store.BasketStore,
	logger *slog.Logger,
	validator *validator.Validate,
	metrics *metrics.Metrics) *Coordinator {

	return &Coordinator{
		gateway:   gateway,
		store:     store,
		logger:    logger,
		validator: validator,
		metrics:   metrics,
		tracer:    otel.Tracer("github.com/enrolhub/checkout-engine/internal/basket"),
	}
}

type addItemInput struct {
	CourseID       string          `json:"courseId" validate:"required,not_blank,max=64"`
	ItemType       domain.ItemType `json:"itemType" validate:"required,item_type"`
	AssignToUserID *string         `json:"assignToUserId" validate:"omitempty,not_blank"`
}

type removeItemInput struct {
	CourseID string          `json:"courseId" validate:"required,not_blank,max=64"`
	ItemType domain.ItemType `json:"itemType" validate:"required,item_type"`
}

type promoCodeInput struct {
	Code string `json:"code" validate:"required,promo_code"`
}

func (c *Coordinator) AddItem(
	ctx context.Context,
	courseID string,
	itemType domain.ItemType,
	opts domain.ItemOptions) domain.OperationResult {

	input := addItemInput{CourseID: courseID, ItemType: itemType, AssignToUserID: opts.AssignToUserID}

	return c.mutate(ctx, "add_item", input, func(ctx context.Context, current *domain.Basket) (*domain.BasketMutation, *domain.OperationResult) {
		if current.HasItem(courseID, itemType) {
			res := domain.Failed(CodeAlreadyInBasket, "course is already in the basket")
			return nil, &res
		}

		return c.call(ctx, "addItem", func() (*domain.BasketMutation, error) {
			return c.gateway.AddItem(ctx, domain.AddItemInput{
				CourseID:    courseID,
				ItemType:    itemType,
				ItemOptions: opts,
			})
		})
	})
}

func (c *Coordinator) RemoveItem(ctx context.Context, courseID string, itemType domain.ItemType) domain.OperationResult {
	input := removeItemInput{CourseID: courseID, ItemType: itemType}

	return c.mutate(ctx, "remove_item", input, func(ctx context.Context, current *domain.Basket) (*domain.BasketMutation, *domain.OperationResult) {
		if !current.HasItem(courseID, itemType) {
			res := domain.Failed(CodeNotInBasket, "course is not in the basket")
			return nil, &res
		}

		return c.call(ctx, "removeItem", func() (*domain.BasketMutation, error) {
			return c.gateway.RemoveItem(ctx, courseID, itemType)
		})
	})
}

func (c *Coordinator) ToggleCredit(ctx context.Context, useCredit bool) domain.OperationResult {
	return c.mutate(ctx, "toggle_credit", nil, func(ctx context.Context, _ *domain.Basket) (*domain.BasketMutation, *domain.OperationResult) {
		return c.call(ctx, "useCreditForBasket", func() (*domain.BasketMutation, error) {
			return c.gateway.UseCreditForBasket(ctx, useCredit)
		})
	})
}

func (c *Coordinator) ApplyPromoCode(ctx context.Context, code string) domain.OperationResult {
	code = strings.ToUpper(strings.TrimSpace(code))

	return c.mutate(ctx, "apply_promo_code", promoCodeInput{Code: code}, func(ctx context.Context, _ *domain.Basket) (*domain.BasketMutation, *domain.OperationResult) {
		return c.call(ctx, "applyPromoCode", func() (*domain.BasketMutation, error) {
			return c.gateway.ApplyPromoCode(ctx, code)
		})
	})
}

// Clear destroys the basket on the backend. It does not create a basket
// first: there is nothing to clear when none exists.
func (c *Coordinator) Clear(ctx context.Context) domain.OperationResult {
	ctx, span := c.tracer.Start(ctx, "basket.clear")
	defer span.End()

	release, err := c.store.AcquireMutation(ctx)
	if err != nil {
		return c.fail(span, "clear", domain.Failed(domain.CodeFor(err, domain.CodeBasketError), err.Error()))
	}
	defer release()

	started := time.Now()
	ok, err := c.gateway.DestroyBasket(ctx)
	c.metrics.ObserveGatewayCall("destroyBasket", started, err)
	if err != nil {
		c.logger.Error("failed to destroy basket", "error", err)
		return c.fail(span, "clear", domain.Failed(domain.CodeFor(err, domain.CodeBasketError), err.Error()))
	}

	if !ok {
		return c.fail(span, "clear", domain.Failed(domain.CodeBasketError, "basket could not be cleared"))
	}

	c.store.Replace(nil)
	c.metrics.ObserveMutation("clear", true)

	return domain.Succeeded(nil)
}

// Load returns the current basket, fetching or creating it when the store
// has none. Concurrent loads share one fetch.
func (c *Coordinator) Load(ctx context.Context) domain.OperationResult {
	snap := c.store.Snapshot()
	if snap.State == store.StateReady && snap.Basket != nil {
		return domain.Succeeded(snap.Basket)
	}

	if c.store.CheckoutActive() {
		return domain.Succeeded(snap.Basket)
	}

	v, err, _ := c.loads.Do("load", func() (any, error) {
		release, err := c.store.AcquireMutation(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		return c.ensureBasket(ctx)
	})
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			return domain.Succeeded(c.store.Get())
		}
		return domain.Failed(domain.CodeFor(err, domain.CodeNetworkError), err.Error())
	}

	return domain.Succeeded(v.(*domain.Basket).Clone())
}

// Refresh re-fetches the basket from the backend, queued like any mutation.
func (c *Coordinator) Refresh(ctx context.Context) domain.OperationResult {
	release, err := c.store.AcquireMutation(ctx)
	if err != nil {
		return domain.Failed(domain.CodeFor(err, domain.CodeBasketError), err.Error())
	}
	defer release()

	basket, err := c.fetch(ctx)
	if err != nil {
		return domain.Failed(domain.CodeFor(err, domain.CodeNetworkError), err.Error())
	}

	return domain.Succeeded(basket)
}

type intent func(ctx context.Context, current *domain.Basket) (*domain.BasketMutation, *domain.OperationResult)

func (c *Coordinator) mutate(ctx context.Context, op string, input any, apply intent) domain.OperationResult {
	ctx, span := c.tracer.Start(ctx, "basket."+op)
	defer span.End()

	if input != nil {
		err := c.validator.Struct(input)
		if err != nil {
			return c.fail(span, op, domain.Failed(
				domain.CodeValidationError,
				"invalid input",
				appvalidator.FieldErrors(err)...,
			))
		}
	}

	release, err := c.store.AcquireMutation(ctx)
	if err != nil {
		return c.fail(span, op, domain.Failed(domain.CodeFor(err, domain.CodeBasketError), err.Error()))
	}
	defer release()

	current, err := c.ensureBasket(ctx)
	if err != nil {
		return c.fail(span, op, domain.Failed(domain.CodeFor(err, domain.CodeNetworkError), err.Error()))
	}
	span.SetAttributes(attribute.String("basket.id", current.ID))

	mutation, rejected := apply(ctx, current)
	if rejected != nil {
		return c.fail(span, op, *rejected)
	}

	if !mutation.Success {
		code := domain.ErrorCode(mutation.ErrorCode)
		if code == "" && len(mutation.Errors) > 0 {
			code = domain.CodeValidationError
		}
		if code == "" {
			code = domain.CodeBasketError
		}

		c.logger.Warn("basket mutation rejected", "operation", op, "basket_id", current.ID, "error_code", code, "message", mutation.Message)
		return c.fail(span, op, domain.Failed(code, mutation.Message, mutation.Errors...))
	}

	if mutation.Basket == nil {
		return c.fail(span, op, domain.Failed(domain.CodeNoData, domain.ErrNoData.Error()))
	}

	basket := c.commit(ctx, mutation.Basket)
	c.metrics.ObserveMutation(op, true)

	return domain.Succeeded(basket)
}

// call performs the single network call of an intent and turns transport
// failures into a failed result.
func (c *Coordinator) call(ctx context.Context, op string, fn func() (*domain.BasketMutation, error)) (*domain.BasketMutation, *domain.OperationResult) {
	started := time.Now()
	mutation, err := fn()
	c.metrics.ObserveGatewayCall(op, started, err)

	if err != nil {
		c.logger.Error("basket gateway call failed", "operation", op, "error", err)
		res := domain.Failed(domain.CodeFor(err, domain.CodeBasketError), err.Error())
		return nil, &res
	}

	if mutation == nil {
		res := domain.Failed(domain.CodeNoData, domain.ErrNoData.Error())
		return nil, &res
	}

	return mutation, nil
}

// commit swaps in the backend's basket. A basket that breaks the pricing
// invariants triggers one idempotent re-fetch.
func (c *Coordinator) commit(ctx context.Context, basket *domain.Basket) *domain.Basket {
	err := c.store.Replace(basket)
	if err == nil {
		return c.store.Get()
	}

	c.logger.Warn("resynchronising basket after invariant violation", "basket_id", basket.ID)

	fresh, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("basket resynchronisation failed", "basket_id", basket.ID, "error", err)
		return c.store.Get()
	}

	return fresh
}

// ensureBasket must be called with the mutation lock held.
func (c *Coordinator) ensureBasket(ctx context.Context) (*domain.Basket, error) {
	if basket := c.store.Get(); basket != nil {
		return basket, nil
	}

	return c.fetch(ctx)
}

func (c *Coordinator) fetch(ctx context.Context) (*domain.Basket, error) {
	c.store.BeginLoading()

	started := time.Now()
	basket, err := c.gateway.GetBasket(ctx)
	c.metrics.ObserveGatewayCall("getBasket", started, err)
	if err != nil {
		c.store.FailLoading(err)
		return nil, err
	}

	if basket == nil {
		started = time.Now()
		basket, err = c.gateway.InitBasket(ctx)
		c.metrics.ObserveGatewayCall("initBasket", started, err)
		if err != nil {
			c.store.FailLoading(err)
			return nil, err
		}

		if basket == nil {
			c.store.FailLoading(domain.ErrNoData)
			return nil, domain.ErrNoData
		}

		c.logger.Info("created basket", "basket_id", basket.ID)
	}

	c.store.Replace(basket)

	return c.store.Get(), nil
}

func (c *Coordinator) fail(span trace.Span, op string, res domain.OperationResult) domain.OperationResult {
	span.SetStatus(codes.Error, res.Message)
	span.SetAttributes(attribute.String("basket.error_code", string(res.ErrorCode)))
	c.metrics.ObserveMutation(op, false)

	return res
}
