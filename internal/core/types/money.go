package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnits is a monetary amount in minor currency units (cents).
type MinorUnits int64

func (m MinorUnits) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }

func (m MinorUnits) IsNegative() bool { return m < 0 }

// CostOf returns qty * unit cost at full precision. A nil cost counts as zero.
func CostOf(qty Quantity, unitCost *MinorUnits) decimal.Decimal {
	if unitCost == nil {
		return decimal.Zero
	}
	return qty.Decimal().Mul(unitCost.Decimal())
}

// UnitCost returns round(total / qty) in minor units. qty must be positive.
func UnitCost(total decimal.Decimal, qty Quantity) MinorUnits {
	return MinorUnits(total.Div(qty.Decimal()).Round(0).IntPart())
}

// WeightedUnitCost blends an existing stock cost with an incoming one:
// round((oldQty*oldCost + newQty*newCost) / (oldQty+newQty)).
func WeightedUnitCost(oldQty Quantity, oldCost *MinorUnits, newQty Quantity, newCost MinorUnits) MinorUnits {
	total := oldQty + newQty
	if total <= 0 {
		return newCost
	}
	sum := CostOf(oldQty, oldCost).Add(CostOf(newQty, &newCost))
	return UnitCost(sum, total)
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOnlyPtr is DateOnly for optional dates.
func DateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOnly(*t)
	return &d
}
