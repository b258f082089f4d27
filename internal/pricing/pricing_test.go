package pricing

import (
	"errors"
	"testing"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		basket     *domain.Basket
		wantFields []string
	}{
		{
			name:   "nil basket is valid",
			basket: nil,
		},
		{
			name: "single item without reductions",
			basket: &domain.Basket{Totals: domain.Totals{
				SubTotal: 4500, Total: 4500, ChargeTotal: 4500,
			}},
		},
		{
			name: "every reduction and tax",
			basket: &domain.Basket{Totals: domain.Totals{
				SubTotal: 10000, DiscountTotal: 1000, PromoCodeDiscountValue: 500,
				CreditTotal: 2000, Tax: 300, Total: 6800, ChargeTotal: 3000, PayLater: 3800,
			}},
		},
		{
			name: "total off by one penny",
			basket: &domain.Basket{Totals: domain.Totals{
				SubTotal: 5000, PromoCodeDiscountValue: 500, Total: 4501, ChargeTotal: 4501,
			}},
			wantFields: []string{"total"},
		},
		{
			name: "charge split does not add up",
			basket: &domain.Basket{Totals: domain.Totals{
				SubTotal: 5000, Total: 5000, ChargeTotal: 2500, PayLater: 2000,
			}},
			wantFields: []string{"chargeTotal+payLater"},
		},
		{
			name: "negative credit is rejected even when equations hold",
			basket: &domain.Basket{Totals: domain.Totals{
				SubTotal: 5000, CreditTotal: -100, Total: 5100, ChargeTotal: 5100,
			}},
			wantFields: []string{"creditTotal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.basket)

			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvariantViolation))

			var invErr *InvariantError
			require.True(t, errors.As(err, &invErr))

			fields := make([]string, len(invErr.Violations))
			for i, v := range invErr.Violations {
				fields[i] = v.Field
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestDeriveChargeSplit(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		requested    int64
		wantCharge   int64
		wantDeferred int64
	}{
		{"nothing deferred", 4500, 0, 4500, 0},
		{"part deferred", 4500, 3000, 1500, 3000},
		{"request above total is capped", 4500, 9000, 0, 4500},
		{"negative request ignored", 4500, -10, 4500, 0},
		{"zero total", 0, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge, deferred := DeriveChargeSplit(tt.total, tt.requested)
			assert.Equal(t, tt.wantCharge, charge)
			assert.Equal(t, tt.wantDeferred, deferred)
		})
	}
}

func TestDeriveAlwaysSatisfiesInvariants(t *testing.T) {
	cases := [][6]int64{
		{5000, 0, 500, 0, 0, 0},
		{5000, 6000, 500, 0, 0, 0},
		{5000, 1000, 1000, 9999, 200, 0},
		{12000, 0, 0, 0, 0, 8000},
		{0, 10, 10, 10, 0, 10},
	}

	for _, c := range cases {
		totals := Derive(c[0], c[1], c[2], c[3], c[4], c[5])
		assert.NoError(t, ValidateTotals(totals), "derived totals %+v", totals)
	}
}

func TestDerivePromoCode(t *testing.T) {
	totals := Derive(5000, 0, 500, 0, 0, 0)

	assert.Equal(t, int64(500), totals.PromoCodeDiscountValue)
	assert.Equal(t, int64(4500), totals.Total)
	assert.Equal(t, int64(4500), totals.ChargeTotal)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "£45.00", Format(4500, "GBP"))
	assert.Equal(t, "$0.99", Format(99, "usd"))
	assert.Equal(t, "12.05 CHF", Format(1205, "chf"))
}
