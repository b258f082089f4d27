package domain

import (
	"context"
	"time"
)

type ItemType string

const (
	ItemTypeCourse ItemType = "COURSE"
	ItemTypeTaster ItemType = "TASTER"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeCourse || t == ItemTypeTaster
}

// Totals are integer minor-currency units (pence). They are shared by Basket
// and Order so both are checked with the same pricing rules.
type Totals struct {
	SubTotal               int64 `json:"subTotal"`
	DiscountTotal          int64 `json:"discountTotal"`
	PromoCodeDiscountValue int64 `json:"promoCodeDiscountValue"`
	CreditTotal            int64 `json:"creditTotal"`
	Tax                    int64 `json:"tax"`
	Total                  int64 `json:"total"`
	ChargeTotal            int64 `json:"chargeTotal"`
	PayLater               int64 `json:"payLater"`
}

type Basket struct {
	ID    string       `json:"id"`
	Items []BasketItem `json:"items"`
	Totals
	PromoCode string `json:"promoCode,omitempty"`
	UseCredit bool   `json:"useCredit"`
}

type BasketItem struct {
	ID             string     `json:"id"`
	CourseID       string     `json:"courseId"`
	ItemType       ItemType   `json:"itemType"`
	Price          int64      `json:"price"`
	TotalPrice     int64      `json:"totalPrice"`
	IsTaster       bool       `json:"isTaster"`
	PayDeposit     bool       `json:"payDeposit"`
	AssignToUserID *string    `json:"assignToUserId,omitempty"`
	ChargeFromDate *time.Time `json:"chargeFromDate,omitempty"`
}

func (b *Basket) IsEmpty() bool {
	return b == nil || len(b.Items) == 0
}

func (b *Basket) HasItem(courseID string, itemType ItemType) bool {
	if b == nil {
		return false
	}

	for _, item := range b.Items {
		if item.CourseID == courseID && item.ItemType == itemType {
			return true
		}
	}

	return false
}

// Clone returns a deep copy so callers never share item slices with the store.
func (b *Basket) Clone() *Basket {
	if b == nil {
		return nil
	}

	clone := *b
	clone.Items = make([]BasketItem, len(b.Items))
	copy(clone.Items, b.Items)

	return &clone
}

type ItemOptions struct {
	PayDeposit     bool
	AssignToUserID *string
	ChargeFromDate *time.Time
}

type AddItemInput struct {
	CourseID string
	ItemType ItemType
	ItemOptions
}

// BasketMutation is the backend's answer to any basket-changing call.
type BasketMutation struct {
	Success   bool         `json:"success"`
	Basket    *Basket      `json:"basket"`
	Message   string       `json:"message"`
	ErrorCode string       `json:"errorCode"`
	Errors    []FieldError `json:"errors"`
}

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type BasketGateway interface {
	GetBasket(ctx context.Context) (*Basket, error)
	InitBasket(ctx context.Context) (*Basket, error)
	AddItem(ctx context.Context, input AddItemInput) (*BasketMutation, error)
	RemoveItem(ctx context.Context, courseID string, itemType ItemType) (*BasketMutation, error)
	UseCreditForBasket(ctx context.Context, useCredit bool) (*BasketMutation, error)
	ApplyPromoCode(ctx context.Context, code string) (*BasketMutation, error)
	DestroyBasket(ctx context.Context) (bool, error)
}
