package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/pricing"
)

const (
	DeclinedPaymentMethodID = "pm_card_declined"
	ThreeDSPaymentMethodID  = "pm_card_3ds"
)

type Course struct {
	Price       int64
	TasterPrice int64
	Deposit     int64
	FullyBooked bool
}

// FakeBackend is an in-memory backend that prices baskets and places orders
// the way the real one does. It is safe for concurrent use.
type FakeBackend struct {
	mu sync.Mutex

	Courses        map[string]Course
	PromoCodes     map[string]int64
	Credit         int64
	PublishableKey string
	Latency        time.Duration

	basket         *domain.Basket
	paymentMethods []domain.PaymentMethod
	orders         map[string]*domain.Order
	intents        map[string]*fakeIntent
	refunded       map[string]int64
	seq            int

	failNext     map[string]error
	corruptNext  bool
	chargeDrift  int64
	calls        map[string]int
	inFlight     int
	maxInFlight  int
	onPlaceOrder func()
}

type fakeIntent struct {
	orderID   string
	confirmed bool
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Courses:        map[string]Course{},
		PromoCodes:     map[string]int64{"SAVE10": 10},
		PublishableKey: "pk_test_fake",
		orders:         map[string]*domain.Order{},
		intents:        map[string]*fakeIntent{},
		refunded:       map[string]int64{},
		failNext:       map[string]error{},
		calls:          map[string]int{},
		paymentMethods: []domain.PaymentMethod{
			{ID: "pm_card_visa", Type: "card", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030, IsDefault: true},
		},
	}
}

func (f *FakeBackend) AddCourse(id string, course Course) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Courses[id] = course
}

// FailNext makes the next call to op return err instead of running.
func (f *FakeBackend) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failNext[op] = err
}

// CorruptNextMutation makes the next mutation return totals that break the
// pricing invariants.
func (f *FakeBackend) CorruptNextMutation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.corruptNext = true
}

// SetChargeDrift makes GetBasket report a chargeTotal that differs from the
// one mutations returned, as when prices change between basket and checkout.
func (f *FakeBackend) SetChargeDrift(drift int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chargeDrift = drift
}

func (f *FakeBackend) SetFullyBooked(courseID string, booked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.Courses[courseID]
	c.FullyBooked = booked
	f.Courses[courseID] = c
}

// OnPlaceOrder runs fn inside PlaceOrder, before the order is created.
func (f *FakeBackend) OnPlaceOrder(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onPlaceOrder = fn
}

func (f *FakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *FakeBackend) MaxConcurrentMutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxInFlight
}

func (f *FakeBackend) ServerBasket() *domain.Basket {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.basket.Clone()
}

func (f *FakeBackend) enter(ctx context.Context, op string, mutating bool) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.failNext[op]
	delete(f.failNext, op)
	if mutating {
		f.inFlight++
		if f.inFlight > f.maxInFlight {
			f.maxInFlight = f.inFlight
		}
	}
	f.mu.Unlock()

	if err == nil && f.Latency > 0 {
		t := time.NewTimer(f.Latency)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			err = fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
		}
	}

	if err != nil && mutating {
		f.leave()
	}

	return err
}

func (f *FakeBackend) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
}

func (f *FakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

// reprice must be called with mu held.
func (f *FakeBackend) reprice() {
	b := f.basket

	var subTotal, deferred int64
	for i := range b.Items {
		item := &b.Items[i]
		course := f.Courses[item.CourseID]

		item.Price = course.Price
		if item.IsTaster {
			item.Price = course.TasterPrice
		}
		item.TotalPrice = item.Price
		subTotal += item.TotalPrice

		if item.PayDeposit && course.Deposit > 0 && course.Deposit < item.TotalPrice {
			deferred += item.TotalPrice - course.Deposit
		}
	}

	var promo int64
	if percent, ok := f.PromoCodes[b.PromoCode]; ok {
		promo = subTotal * percent / 100
	}

	var credit int64
	if b.UseCredit {
		credit = f.Credit
	}

	b.Totals = pricing.Derive(subTotal, 0, promo, credit, 0, deferred)
}

func (f *FakeBackend) mutationResult() *domain.BasketMutation {
	basket := f.basket.Clone()

	if f.corruptNext {
		f.corruptNext = false
		basket.Total += 100
	}

	return &domain.BasketMutation{Success: true, Basket: basket}
}

func rejected(code, message string) *domain.BasketMutation {
	return &domain.BasketMutation{Success: false, Message: message, ErrorCode: code}
}

func (f *FakeBackend) GetBasket(ctx context.Context) (*domain.Basket, error) {
	if err := f.enter(ctx, "getBasket", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil {
		return nil, nil
	}

	basket := f.basket.Clone()
	if f.chargeDrift != 0 {
		basket.Total += f.chargeDrift
		basket.SubTotal += f.chargeDrift
		basket.ChargeTotal += f.chargeDrift
	}

	return basket, nil
}

func (f *FakeBackend) InitBasket(ctx context.Context) (*domain.Basket, error) {
	if err := f.enter(ctx, "initBasket", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil {
		f.basket = &domain.Basket{ID: f.nextID("basket"), Items: []domain.BasketItem{}}
	}

	return f.basket.Clone(), nil
}

func (f *FakeBackend) AddItem(ctx context.Context, input domain.AddItemInput) (*domain.BasketMutation, error) {
	if err := f.enter(ctx, "addItem", true); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil {
		return rejected("NO_BASKET", "no basket exists"), nil
	}

	course, ok := f.Courses[input.CourseID]
	if !ok {
		return rejected("COURSE_NOT_FOUND", "course does not exist"), nil
	}

	if course.FullyBooked {
		return rejected("COURSE_FULLY_BOOKED", "course is fully booked"), nil
	}

	if f.basket.HasItem(input.CourseID, input.ItemType) {
		return rejected("ALREADY_IN_BASKET", "course is already in the basket"), nil
	}

	f.basket.Items = append(f.basket.Items, domain.BasketItem{
		ID:             f.nextID("item"),
		CourseID:       input.CourseID,
		ItemType:       input.ItemType,
		IsTaster:       input.ItemType == domain.ItemTypeTaster,
		PayDeposit:     input.PayDeposit,
		AssignToUserID: input.AssignToUserID,
		ChargeFromDate: input.ChargeFromDate,
	})
	f.reprice()

	return f.mutationResult(), nil
}

func (f *FakeBackend) RemoveItem(ctx context.Context, courseID string, itemType domain.ItemType) (*domain.BasketMutation, error) {
	if err := f.enter(ctx, "removeItem", true); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil || !f.basket.HasItem(courseID, itemType) {
		return rejected("NOT_IN_BASKET", "course is not in the basket"), nil
	}

	items := f.basket.Items[:0]
	for _, item := range f.basket.Items {
		if item.CourseID == courseID && item.ItemType == itemType {
			continue
		}
		items = append(items, item)
	}
	f.basket.Items = items
	f.reprice()

	return f.mutationResult(), nil
}

func (f *FakeBackend) UseCreditForBasket(ctx context.Context, useCredit bool) (*domain.BasketMutation, error) {
	if err := f.enter(ctx, "useCreditForBasket", true); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil {
		return rejected("NO_BASKET", "no basket exists"), nil
	}

	if useCredit && f.Credit <= 0 {
		return rejected("NO_CREDIT", "no credit available"), nil
	}

	f.basket.UseCredit = useCredit
	f.reprice()

	return f.mutationResult(), nil
}

func (f *FakeBackend) ApplyPromoCode(ctx context.Context, code string) (*domain.BasketMutation, error) {
	if err := f.enter(ctx, "applyPromoCode", true); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil {
		return rejected("NO_BASKET", "no basket exists"), nil
	}

	if _, ok := f.PromoCodes[code]; !ok {
		return &domain.BasketMutation{
			Success:   false,
			Message:   "promo code is not valid",
			ErrorCode: "INVALID_PROMO_CODE",
			Errors:    []domain.FieldError{{Path: "code", Message: "unknown promo code"}},
		}, nil
	}

	f.basket.PromoCode = code
	f.reprice()

	return f.mutationResult(), nil
}

func (f *FakeBackend) DestroyBasket(ctx context.Context) (bool, error) {
	if err := f.enter(ctx, "destroyBasket", true); err != nil {
		return false, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.basket = nil

	return true, nil
}

func (f *FakeBackend) GetPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	if err := f.enter(ctx, "getPaymentMethods", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	methods := make([]domain.PaymentMethod, len(f.paymentMethods))
	copy(methods, f.paymentMethods)

	return methods, nil
}

func (f *FakeBackend) GetStripePublishableKey(ctx context.Context) (string, error) {
	if err := f.enter(ctx, "getStripePublishableKey", false); err != nil {
		return "", err
	}

	return f.PublishableKey, nil
}

func (f *FakeBackend) CreatePaymentMethod(ctx context.Context, input domain.CreatePaymentMethodInput) (*domain.PaymentMethod, error) {
	if err := f.enter(ctx, "createPaymentMethod", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	method := domain.PaymentMethod{
		ID:             f.nextID("pm"),
		Type:           "card",
		Brand:          "visa",
		Last4:          "4242",
		ExpMonth:       12,
		ExpYear:        2030,
		BillingAddress: input.BillingAddress,
		IsDefault:      input.SetAsDefault || len(f.paymentMethods) == 0,
	}

	if method.IsDefault {
		for i := range f.paymentMethods {
			f.paymentMethods[i].IsDefault = false
		}
	}
	f.paymentMethods = append(f.paymentMethods, method)

	return &method, nil
}

func (f *FakeBackend) DeletePaymentMethod(ctx context.Context, id string) (bool, error) {
	if err := f.enter(ctx, "deletePaymentMethod", false); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, m := range f.paymentMethods {
		if m.ID == id {
			f.paymentMethods = append(f.paymentMethods[:i], f.paymentMethods[i+1:]...)
			return true, nil
		}
	}

	return false, nil
}

func (f *FakeBackend) SetDefaultPaymentMethod(ctx context.Context, id string) (bool, error) {
	if err := f.enter(ctx, "setDefaultPaymentMethod", false); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	found := false
	for i := range f.paymentMethods {
		f.paymentMethods[i].IsDefault = f.paymentMethods[i].ID == id
		found = found || f.paymentMethods[i].IsDefault
	}

	return found, nil
}

func (f *FakeBackend) PlaceOrder(ctx context.Context, input domain.PlaceOrderInput) (*domain.PlaceOrderResult, error) {
	if err := f.enter(ctx, "placeOrder", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	hook := f.onPlaceOrder
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basket == nil || f.basket.ID != input.BasketID {
		return &domain.PlaceOrderResult{Errors: []domain.FieldError{{Path: "basketId", Message: "basket not found"}}}, nil
	}

	if f.basket.IsEmpty() {
		return &domain.PlaceOrderResult{Errors: []domain.FieldError{{Path: "basket", Message: "basket is empty"}}}, nil
	}

	for _, item := range f.basket.Items {
		if f.Courses[item.CourseID].FullyBooked {
			return &domain.PlaceOrderResult{Errors: []domain.FieldError{{Path: "items", Message: "course is fully booked"}}}, nil
		}
	}

	if input.PaymentMethodID == DeclinedPaymentMethodID {
		return &domain.PlaceOrderResult{
			PaymentTransactionStatus: domain.TransactionRequiresPaymentMethod,
			Errors:                   []domain.FieldError{{Path: "paymentMethodId", Message: "your card was declined"}},
		}, nil
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              f.nextID("order"),
		UserID:          "user_1",
		Items:           f.basket.Clone().Items,
		Totals:          f.basket.Totals,
		PaymentMethodID: input.PaymentMethodID,
		PaymentIntentID: f.nextID("pi"),
		BillingAddress:  input.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.orders[order.ID] = order

	if input.PaymentMethodID == ThreeDSPaymentMethodID {
		order.Status = domain.OrderStatusPending
		order.PaymentTransactionStatus = domain.TransactionRequiresAction
		f.intents[order.PaymentIntentID] = &fakeIntent{orderID: order.ID}

		nextAction, _ := json.Marshal(map[string]any{
			"type":         "use_stripe_sdk",
			"redirect_url": "https://hooks.stripe.test/3ds/" + order.PaymentIntentID,
		})

		return &domain.PlaceOrderResult{
			Order:                    cloneOrder(order),
			NextAction:               nextAction,
			ClientSecret:             order.PaymentIntentID + "_secret_test",
			PaymentIntentID:          order.PaymentIntentID,
			PaymentTransactionStatus: domain.TransactionRequiresAction,
		}, nil
	}

	order.Status = domain.OrderStatusPaid
	order.PaymentTransactionStatus = domain.TransactionSucceeded
	f.intents[order.PaymentIntentID] = &fakeIntent{orderID: order.ID, confirmed: true}
	f.basket = nil

	return &domain.PlaceOrderResult{
		Order:                    cloneOrder(order),
		PaymentIntentID:          order.PaymentIntentID,
		PaymentTransactionStatus: domain.TransactionSucceeded,
	}, nil
}

func (f *FakeBackend) UpdatePaymentIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	if err := f.enter(ctx, "updatePaymentIntent", false); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	intent, ok := f.intents[paymentIntentID]
	if !ok {
		return false, nil
	}

	if intent.confirmed {
		return true, nil
	}

	intent.confirmed = true
	order := f.orders[intent.orderID]
	order.Status = domain.OrderStatusPaid
	order.PaymentTransactionStatus = domain.TransactionSucceeded
	order.UpdatedAt = time.Now().UTC()
	f.basket = nil

	return true, nil
}

func (f *FakeBackend) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := f.enter(ctx, "getOrder", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}

	return cloneOrder(order), nil
}

func (f *FakeBackend) GetOrderHistory(ctx context.Context, limit, offset int) (*domain.OrderHistory, error) {
	if err := f.enter(ctx, "getOrderHistory", false); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	orders := make([]domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		orders = append(orders, *cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })

	history := &domain.OrderHistory{TotalCount: len(orders), Orders: []domain.Order{}}
	if offset < len(orders) {
		end := offset + limit
		if end > len(orders) {
			end = len(orders)
		}
		history.Orders = orders[offset:end]
	}

	return history, nil
}

func (f *FakeBackend) CancelOrder(ctx context.Context, id string) (bool, error) {
	if err := f.enter(ctx, "cancelOrder", false); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok || order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
		return false, nil
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (f *FakeBackend) ProcessRefund(ctx context.Context, orderID string, amount int64, _ string) (bool, error) {
	if err := f.enter(ctx, "processRefund", false); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok || order.Status != domain.OrderStatusPaid && order.Status != domain.OrderStatusPartiallyRefunded {
		return false, nil
	}

	if amount <= 0 || f.refunded[orderID]+amount > order.ChargeTotal {
		return false, nil
	}

	f.refunded[orderID] += amount
	order.Status = domain.OrderStatusPartiallyRefunded
	if f.refunded[orderID] == order.ChargeTotal {
		order.Status = domain.OrderStatusRefunded
	}

	return true, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Items = make([]domain.BasketItem, len(o.Items))
	copy(clone.Items, o.Items)

	return &clone
}
