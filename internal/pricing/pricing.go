// Package pricing checks and derives basket money totals.
//
// Every amount is an integer number of minor currency units and every check
// is exact: there is no rounding and no tolerance.
package pricing

import (
	"fmt"
	"strings"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// Violation is one totals rule that does not hold.
type Violation struct {
	Field    string
	Expected int64
	Actual   int64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s expected %d, got %d", v.Field, v.Expected, v.Actual)
}

// InvariantError lists every rule a set of totals breaks. It matches
// domain.ErrInvariantViolation with errors.Is.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}

	return fmt.Sprintf("%s: %s", domain.ErrInvariantViolation, strings.Join(parts, "; "))
}

func (e *InvariantError) Unwrap() error {
	return domain.ErrInvariantViolation
}

// Validate checks
//
//	total = subTotal - discountTotal - promoCodeDiscountValue - creditTotal + tax
//	total = chargeTotal + payLater
//
// and that no field is negative. It never panics; a nil basket is valid.
func Validate(basket *domain.Basket) error {
	if basket == nil {
		return nil
	}

	return ValidateTotals(basket.Totals)
}

// ValidateTotals runs the checks of Validate on bare totals.
func ValidateTotals(t domain.Totals) error {
	var violations []Violation

	fields := []struct {
		name  string
		value int64
	}{
		{"subTotal", t.SubTotal},
		{"discountTotal", t.DiscountTotal},
		{"promoCodeDiscountValue", t.PromoCodeDiscountValue},
		{"creditTotal", t.CreditTotal},
		{"tax", t.Tax},
		{"total", t.Total},
		{"chargeTotal", t.ChargeTotal},
		{"payLater", t.PayLater},
	}

	for _, f := range fields {
		if f.value < 0 {
			violations = append(violations, Violation{Field: f.name, Expected: 0, Actual: f.value})
		}
	}

	derived := t.SubTotal - t.DiscountTotal - t.PromoCodeDiscountValue - t.CreditTotal + t.Tax
	if derived != t.Total {
		violations = append(violations, Violation{Field: "total", Expected: derived, Actual: t.Total})
	}

	if split := t.ChargeTotal + t.PayLater; split != t.Total {
		violations = append(violations, Violation{Field: "chargeTotal+payLater", Expected: t.Total, Actual: split})
	}

	if len(violations) > 0 {
		return &InvariantError{Violations: violations}
	}

	return nil
}

// DeriveChargeSplit splits a total into the amount due now and the amount
// deferred. It is only for optimistic display; the backend's split wins.
func DeriveChargeSplit(total, payLaterRequested int64) (chargeTotal, payLater int64) {
	if total <= 0 {
		return 0, 0
	}

	payLater = payLaterRequested
	if payLater < 0 {
		payLater = 0
	}
	if payLater > total {
		payLater = total
	}

	return total - payLater, payLater
}

// Derive builds a consistent set of totals. Reductions are capped so the
// total never drops below zero, applied in the order the backend applies
// them: discounts, promo code, then credit.
func Derive(subTotal, discount, promo, credit, tax, payLaterRequested int64) domain.Totals {
	remaining := subTotal

	discount = capAt(discount, remaining)
	remaining -= discount

	promo = capAt(promo, remaining)
	remaining -= promo

	credit = capAt(credit, remaining)
	remaining -= credit

	if tax < 0 {
		tax = 0
	}
	total := remaining + tax

	charge, later := DeriveChargeSplit(total, payLaterRequested)

	return domain.Totals{
		SubTotal:               subTotal,
		DiscountTotal:          discount,
		PromoCodeDiscountValue: promo,
		CreditTotal:            credit,
		Tax:                    tax,
		Total:                  total,
		ChargeTotal:            charge,
		PayLater:               later,
	}
}

func capAt(v, limit int64) int64 {
	if v < 0 || limit <= 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// Format renders minor units as a display amount, e.g. 4500 -> "£45.00".
func Format(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)

	switch strings.ToUpper(currency) {
	case "GBP", "":
		return "£" + value
	case "USD":
		return "$" + value
	case "EUR":
		return "€" + value
	default:
		return value + " " + strings.ToUpper(currency)
	}
}
