// Package checkout drives an order from a ready basket to a terminal payment
// outcome.
//
// A placement freezes the basket for its whole lifetime, including the time
// spent waiting for an off-session confirmation step such as 3-D Secure. The
// basket is cleared only when the payment completes.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/metrics"
	"github.com/enrolhub/checkout-engine/internal/store"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const DefaultActionTimeout = 15 * time.Minute

// Gateway is the part of the backend the orchestrator drives.
type Gateway interface {
	GetBasket(ctx context.Context) (*domain.Basket, error)
	domain.OrderGateway
}

type Config struct {
	Env           string
	ActionTimeout time.Duration
}

// PlaceOrderRequest names the basket the customer reviewed and the charge
// they agreed to. Placement stops with TOTAL_CHANGED when the backend would
// charge anything else.
type PlaceOrderRequest struct {
	BasketID            string          `json:"basketId" validate:"required,not_blank,max=255"`
	ExpectedChargeTotal *int64          `json:"expectedChargeTotal" validate:"required,gte=0"`
	PaymentMethodID     string          `json:"paymentMethodId" validate:"required,not_blank,max=255"`
	PaymentMethodType   string          `json:"paymentMethodType" validate:"omitempty,max=32"`
	BillingAddress      *domain.Address `json:"billingAddress"`
	LineItemInfo        json.RawMessage `json:"lineItemInfo"`
}

type Orchestrator struct {
	gateway   Gateway
	store     store.BasketStore
	ledger    domain.CheckoutLedger
	verifier  domain.IntentVerifier
	publisher domain.EventPublisher
	logger    *slog.Logger
	validator *validator.Validate
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	cfg       Config

	mu        sync.Mutex
	state     domain.PaymentState
	outcome   domain.PaymentOutcome
	attempt   *domain.CheckoutAttempt
	uncertain *domain.CheckoutAttempt
	pending   *pendingAction
	inFlight  map[string]struct{}

	confirms singleflight.Group
}

// pendingAction is a placed order waiting for the customer to finish an
// off-session confirmation step.
type pendingAction struct {
	intentID   string
	order      *domain.Order
	deadline   time.Time
	timer      *time.Timer
	confirming bool
}

type Option func(*Orchestrator)

// WithIntentVerifier makes confirmation check the intent at the payment
// provider before asking the backend to settle it.
func WithIntentVerifier(verifier domain.IntentVerifier) Option {
	return func(o *Orchestrator) {
		o.verifier = verifier
	}
}

func WithPublisher(publisher domain.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func NewOrchestrator(
	gateway Gateway,
	store store.BasketStore,
	ledger domain.CheckoutLedger,
	logger *slog.Logger,
	validator *validator.Validate,
	cfg Config,
	opts ...Option) *Orchestrator {

	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}

	o := &Orchestrator{
		gateway:   gateway,
		store:     store,
		ledger:    ledger,
		logger:    logger,
		validator: validator,
		tracer:    otel.Tracer("github.com/enrolhub/checkout-engine/internal/checkout"),
		cfg:       cfg,
		state:     domain.PaymentStateIdle,
		outcome:   domain.PaymentOutcome{State: domain.PaymentStateIdle},
		inFlight:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Orchestrator) State() domain.PaymentState {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Outcome returns the latest outcome, the one a caller polls while a
// confirmation step is pending.
func (o *Orchestrator) Outcome() domain.PaymentOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.outcome
}

func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) domain.PaymentOutcome {
	ctx, span := o.tracer.Start(ctx, "checkout.place_order")
	defer span.End()

	err := o.validator.Struct(req)
	if err != nil {
		outcome := domain.FailedOutcome(domain.CodeValidationError, domain.ErrValidation.Error())
		outcome.ValidationErrors = appvalidator.FieldErrors(err)
		return o.report(span, outcome)
	}

	err = o.begin()
	if err != nil {
		return o.report(span, domain.FailedOutcome(domain.CodeFor(err, domain.CodeBusy), err.Error()))
	}

	err = o.store.BeginCheckout(ctx)
	if err != nil {
		o.abandon()
		return o.report(span, domain.FailedOutcome(domain.CodeFor(err, domain.CodeBusy), err.Error()))
	}

	basket, outcome, ok := o.confirmTotals(ctx, req.BasketID, *req.ExpectedChargeTotal)
	if !ok {
		return o.report(span, o.settle(ctx, outcome))
	}
	span.SetAttributes(attribute.String("basket.id", basket.ID))

	attempt := o.newAttempt(basket)
	span.SetAttributes(attribute.String("checkout.idempotency_key", attempt.IdempotencyKey))
	o.saveAttempt(ctx, attempt)

	started := time.Now()
	result, err := o.gateway.PlaceOrder(ctx, domain.PlaceOrderInput{
		BasketID:          basket.ID,
		PaymentMethodID:   req.PaymentMethodID,
		PaymentMethodType: req.PaymentMethodType,
		BillingAddress:    req.BillingAddress,
		LineItemInfo:      req.LineItemInfo,
		IdempotencyKey:    attempt.IdempotencyKey,
	})
	o.metrics.ObserveGatewayCall("placeOrder", started, err)

	if err != nil {
		o.logger.Error("place order failed", "basket_id", basket.ID, "idempotency_key", attempt.IdempotencyKey, "error", err)

		failed := o.failure(err, placementCode(err), basket)
		if failed.ErrorCode == domain.CodeNetworkError || failed.ErrorCode == domain.CodeTimeout {
			o.mu.Lock()
			o.uncertain = attempt
			o.mu.Unlock()
		}

		outcome := o.settle(ctx, failed)
		o.defect(err)
		return o.report(span, outcome)
	}

	return o.report(span, o.handlePlaced(ctx, basket, result))
}

// placementCode classifies a failed placeOrder call. A GraphQL error reply is
// the backend refusing the order; anything unclassified means the order may
// or may not have been placed.
func placementCode(err error) domain.ErrorCode {
	if errors.Is(err, domain.ErrRemote) {
		return domain.CodeOrderError
	}

	return domain.CodeFor(err, domain.CodeNetworkError)
}

// newAttempt starts a placement attempt. When the previous placement ended
// without an answer and the basket and charge are unchanged, its idempotency
// key is reused so the backend can recognise the retry.
func (o *Orchestrator) newAttempt(basket *domain.Basket) *domain.CheckoutAttempt {
	attempt := &domain.CheckoutAttempt{
		ID:          uuid.NewString(),
		BasketID:    basket.ID,
		State:       domain.PaymentStatePlacing,
		ChargeTotal: basket.ChargeTotal,
		CreatedAt:   time.Now().UTC(),
	}
	attempt.IdempotencyKey = attempt.ID

	o.mu.Lock()
	defer o.mu.Unlock()

	if prev := o.uncertain; prev != nil && prev.BasketID == basket.ID && prev.ChargeTotal == basket.ChargeTotal {
		attempt.IdempotencyKey = prev.IdempotencyKey
		o.logger.Info("retrying unanswered placement", "basket_id", basket.ID, "idempotency_key", prev.IdempotencyKey)
	}

	o.uncertain = nil
	o.attempt = attempt

	return attempt
}

func (o *Orchestrator) handlePlaced(ctx context.Context, basket *domain.Basket, result *domain.PlaceOrderResult) domain.PaymentOutcome {
	if result == nil {
		return o.settle(ctx, o.failure(domain.ErrNoData, domain.CodeNoData, basket))
	}

	if len(result.Errors) > 0 || result.PaymentTransactionStatus.IsDeclined() {
		message := domain.ErrPaymentDeclined.Error()
		if len(result.Errors) > 0 {
			message = result.Errors[0].Message
		}

		o.logger.Warn("order rejected", "basket_id", basket.ID, "payment_transaction_status", result.PaymentTransactionStatus, "message", message)

		outcome := domain.FailedOutcome(domain.CodeOrderError, message)
		outcome.ValidationErrors = result.Errors
		outcome.PaymentTransactionStatus = result.PaymentTransactionStatus
		outcome.Basket = basket
		return o.settle(ctx, outcome)
	}

	if result.RequiresAction() {
		intentID := result.PaymentIntentID
		if intentID == "" && result.Order != nil {
			intentID = result.Order.PaymentIntentID
		}

		if intentID == "" || result.ClientSecret == "" {
			err := fmt.Errorf("%w: confirmation step without payment intent", domain.ErrMalformedResponse)
			outcome := o.settle(ctx, o.failure(err, domain.CodeExceptionError, basket))
			o.defect(err)
			return outcome
		}

		return o.awaitAction(ctx, basket, result, intentID)
	}

	if result.Order != nil {
		return o.complete(ctx, result.Order)
	}

	return o.settle(ctx, o.failure(domain.ErrNoData, domain.CodeNoData, basket))
}

// confirmTotals re-reads the basket from the backend right before placement.
// If the backend basket or the amount it would charge differs from what the
// customer reviewed, placement stops with TOTAL_CHANGED and the store takes
// the fresh basket.
func (o *Orchestrator) confirmTotals(ctx context.Context, basketID string, expectedChargeTotal int64) (*domain.Basket, domain.PaymentOutcome, bool) {
	started := time.Now()
	fresh, err := o.gateway.GetBasket(ctx)
	o.metrics.ObserveGatewayCall("getBasket", started, err)
	if err != nil {
		o.logger.Error("failed to re-read basket before placing order", "error", err)
		return nil, o.failure(err, domain.CodeNetworkError, o.store.Get()), false
	}

	if fresh.IsEmpty() {
		outcome := domain.FailedOutcome(domain.CodeEmptyBasket, domain.ErrEmptyBasket.Error())
		outcome.Basket = fresh
		return nil, outcome, false
	}

	_ = o.store.Replace(fresh)

	if fresh.ID != basketID || fresh.ChargeTotal != expectedChargeTotal {
		o.logger.Warn("basket total changed before placing order",
			"basket_id", fresh.ID,
			"expected_basket_id", basketID,
			"expected_charge_total", expectedChargeTotal,
			"charge_total", fresh.ChargeTotal,
		)

		outcome := domain.FailedOutcome(domain.CodeTotalChanged, "basket total changed, please review before paying")
		outcome.Basket = o.store.Get()
		return nil, outcome, false
	}

	return o.store.Get(), domain.PaymentOutcome{}, true
}

func (o *Orchestrator) awaitAction(
	ctx context.Context,
	basket *domain.Basket,
	result *domain.PlaceOrderResult,
	intentID string) domain.PaymentOutcome {

	p := &pendingAction{
		intentID: intentID,
		order:    result.Order,
		deadline: time.Now().Add(o.cfg.ActionTimeout),
	}

	o.mu.Lock()
	o.pending = p
	o.mu.Unlock()

	o.logger.Info("payment requires customer action", "basket_id", basket.ID, "payment_intent_id", intentID)

	outcome := o.settle(ctx, domain.PaymentOutcome{
		State:                    domain.PaymentStateActionRequired,
		Order:                    result.Order,
		Basket:                   basket,
		ClientSecret:             result.ClientSecret,
		NextAction:               result.NextAction,
		PaymentIntentID:          intentID,
		PaymentTransactionStatus: result.PaymentTransactionStatus,
	})

	o.mu.Lock()
	if o.pending == p {
		p.timer = time.AfterFunc(o.cfg.ActionTimeout, func() { o.expire(p) })
	}
	o.mu.Unlock()

	return outcome
}

// ConfirmPaymentIntent settles a payment after the customer completed the
// confirmation step. Confirming an intent that is already confirmed returns
// true again without contacting the backend.
func (o *Orchestrator) ConfirmPaymentIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	if paymentIntentID == "" {
		return false, fmt.Errorf("%w: payment intent id is required", domain.ErrValidation)
	}

	ctx, span := o.tracer.Start(ctx, "checkout.confirm_payment_intent",
		trace.WithAttributes(attribute.String("payment_intent.id", paymentIntentID)))
	defer span.End()

	v, err, _ := o.confirms.Do(paymentIntentID, func() (any, error) {
		return o.confirm(ctx, paymentIntentID)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	return v.(bool), nil
}

func (o *Orchestrator) confirm(ctx context.Context, intentID string) (bool, error) {
	confirmed, err := o.ledger.IsIntentConfirmed(ctx, intentID)
	if err != nil {
		o.logger.Error("failed to read confirmed intents", "payment_intent_id", intentID, "error", err)
	}
	if confirmed {
		return true, nil
	}

	p, err := o.beginConfirm(intentID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return true, nil
	}

	if o.verifier != nil {
		status, err := o.verifier.VerifyIntent(ctx, intentID)
		if err != nil {
			o.logger.Error("failed to verify payment intent", "payment_intent_id", intentID, "error", err)
			o.endConfirm(p)
			return false, err
		}

		switch {
		case status.IsPending():
			o.endConfirm(p)
			return false, domain.ErrActionIncomplete

		case status.IsDeclined():
			outcome := domain.FailedOutcome(domain.CodeOrderError, domain.ErrPaymentDeclined.Error())
			outcome.PaymentIntentID = intentID
			outcome.PaymentTransactionStatus = status
			outcome.Basket = o.store.Get()
			o.settle(ctx, outcome)
			return false, domain.ErrPaymentDeclined
		}
	}

	started := time.Now()
	ok, err := o.gateway.UpdatePaymentIntent(ctx, intentID)
	o.metrics.ObserveGatewayCall("updatePaymentIntent", started, err)
	if err != nil {
		o.logger.Error("failed to confirm payment intent", "payment_intent_id", intentID, "error", err)
		o.endConfirm(p)
		return false, err
	}

	if !ok {
		o.endConfirm(p)
		return false, nil
	}

	order := p.order
	if order != nil && order.ID != "" {
		started = time.Now()
		fresh, err := o.gateway.GetOrder(ctx, order.ID)
		o.metrics.ObserveGatewayCall("getOrder", started, err)
		if err != nil {
			o.logger.Warn("failed to reload confirmed order", "order_id", order.ID, "error", err)
		} else if fresh != nil {
			order = fresh
		}
	}

	if order == nil {
		order = &domain.Order{}
	}
	if order.PaymentIntentID == "" {
		order.PaymentIntentID = intentID
	}

	o.complete(ctx, order)

	return true, nil
}

func (o *Orchestrator) beginConfirm(intentID string) (*pendingAction, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == domain.PaymentStateCompleted && o.outcome.PaymentIntentID == intentID {
		return nil, nil
	}

	p := o.pending
	if o.state != domain.PaymentStateActionRequired || p == nil || p.intentID != intentID {
		return nil, domain.ErrNoActivePayment
	}

	p.confirming = true

	return p, nil
}

// endConfirm hands a pending action back to its timeout after a confirmation
// attempt that did not settle it.
func (o *Orchestrator) endConfirm(p *pendingAction) {
	o.mu.Lock()
	p.confirming = false
	expired := o.pending == p && !time.Now().Before(p.deadline)
	o.mu.Unlock()

	if expired {
		o.expire(p)
	}
}

func (o *Orchestrator) expire(p *pendingAction) {
	outcome := domain.FailedOutcome(domain.CodeTimeout, domain.ErrActionTimeout.Error())
	outcome.PaymentIntentID = p.intentID
	outcome.Basket = o.store.Get()

	o.mu.Lock()
	if o.pending != p || p.confirming || o.state != domain.PaymentStateActionRequired {
		o.mu.Unlock()
		return
	}
	s, _ := o.transition(outcome)
	o.mu.Unlock()

	o.logger.Warn("payment confirmation step timed out", "payment_intent_id", p.intentID)

	o.finish(context.Background(), s)
}

// CancelAction abandons a payment that is waiting for the customer. The
// basket is left exactly as it was.
func (o *Orchestrator) CancelAction(ctx context.Context) (domain.PaymentOutcome, error) {
	basket := o.store.Get()

	o.mu.Lock()
	p := o.pending
	switch {
	case o.state != domain.PaymentStateActionRequired || p == nil:
		o.mu.Unlock()
		return domain.PaymentOutcome{}, domain.ErrNoActivePayment
	case p.confirming:
		o.mu.Unlock()
		return domain.PaymentOutcome{}, domain.ErrBusy
	}

	outcome := domain.CancelledOutcome()
	outcome.PaymentIntentID = p.intentID
	outcome.Basket = basket
	s, _ := o.transition(outcome)
	o.mu.Unlock()

	o.logger.Info("payment cancelled by customer", "payment_intent_id", p.intentID)

	return o.finish(ctx, s), nil
}

func (o *Orchestrator) complete(ctx context.Context, order *domain.Order) domain.PaymentOutcome {
	if order.PaymentIntentID != "" {
		_, err := o.ledger.ConfirmIntent(ctx, order.PaymentIntentID, order.ID)
		if err != nil {
			o.logger.Error("failed to record confirmed intent", "payment_intent_id", order.PaymentIntentID, "error", err)
		}
	}

	_ = o.store.Replace(nil)

	o.logger.Info("checkout completed", "order_id", order.ID, "charge_total", order.ChargeTotal)

	return o.settle(ctx, domain.CompletedOutcome(order))
}

// begin claims the orchestrator for a new placement.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !domain.CanTransitionTo(o.state, domain.PaymentStatePlacing) || o.state.IsActive() {
		return domain.ErrBusy
	}

	o.state = domain.PaymentStatePlacing
	o.outcome = domain.PaymentOutcome{State: domain.PaymentStatePlacing}
	o.attempt = nil

	return nil
}

// abandon undoes begin when the basket could not be frozen.
func (o *Orchestrator) abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = domain.PaymentStateIdle
	o.outcome = domain.PaymentOutcome{State: domain.PaymentStateIdle}
}

type settled struct {
	outcome domain.PaymentOutcome
	attempt *domain.CheckoutAttempt
	pending *pendingAction
}

// settle moves the state machine and runs the side effects of the new state.
func (o *Orchestrator) settle(ctx context.Context, outcome domain.PaymentOutcome) domain.PaymentOutcome {
	o.mu.Lock()
	from := o.state
	s, ok := o.transition(outcome)
	o.mu.Unlock()

	if !ok {
		o.logger.Error("ignoring payment state change", "from", from, "to", outcome.State, "error", domain.ErrIllegalTransition)
		return s.outcome
	}

	return o.finish(ctx, s)
}

// transition must be called with mu held. When the move is illegal it
// returns the current outcome unchanged.
func (o *Orchestrator) transition(outcome domain.PaymentOutcome) (settled, bool) {
	if !domain.CanTransitionTo(o.state, outcome.State) {
		return settled{outcome: o.outcome}, false
	}

	o.state = outcome.State
	o.outcome = outcome

	s := settled{outcome: outcome, attempt: o.attempt, pending: o.pending}
	if outcome.State != domain.PaymentStateActionRequired {
		o.pending = nil
	}

	return s, true
}

func (o *Orchestrator) finish(ctx context.Context, s settled) domain.PaymentOutcome {
	outcome := s.outcome

	if s.pending != nil && outcome.State != domain.PaymentStateActionRequired && s.pending.timer != nil {
		s.pending.timer.Stop()
	}

	if outcome.State.IsTerminal() {
		o.store.EndCheckout()
	}

	if s.attempt != nil {
		s.attempt.State = outcome.State
		s.attempt.ErrorCode = outcome.ErrorCode
		if outcome.PaymentIntentID != "" {
			s.attempt.PaymentIntentID = outcome.PaymentIntentID
		}
		if outcome.Order != nil {
			s.attempt.OrderID = outcome.Order.ID
		}
		o.saveAttempt(ctx, s.attempt)
	}

	o.metrics.ObserveCheckout(string(outcome.State), string(outcome.ErrorCode))
	o.publishOutcome(ctx, s.attempt, outcome)

	return outcome
}

func (o *Orchestrator) failure(err error, fallback domain.ErrorCode, basket *domain.Basket) domain.PaymentOutcome {
	outcome := domain.FailedOutcome(domain.CodeFor(err, fallback), err.Error())
	outcome.Basket = basket

	return outcome
}

// defect panics on a malformed backend payload in development so the broken
// contract is noticed. Elsewhere the failed outcome already reported it.
func (o *Orchestrator) defect(err error) {
	if o.cfg.Env == "dev" && errors.Is(err, domain.ErrMalformedResponse) {
		panic(err)
	}
}

func (o *Orchestrator) saveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) {
	snapshot := *attempt
	snapshot.UpdatedAt = time.Now().UTC()

	err := o.ledger.SaveAttempt(ctx, &snapshot)
	if err != nil {
		o.logger.Error("failed to record checkout attempt", "attempt_id", attempt.ID, "error", err)
	}
}

func (o *Orchestrator) report(span trace.Span, outcome domain.PaymentOutcome) domain.PaymentOutcome {
	span.SetAttributes(attribute.String("checkout.state", string(outcome.State)))
	if outcome.ErrorCode != "" {
		span.SetStatus(codes.Error, outcome.Error)
		span.SetAttributes(attribute.String("checkout.error_code", string(outcome.ErrorCode)))
	}

	return outcome
}
