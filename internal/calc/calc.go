// Package calc holds the pure money math for order pricing. Everything is
// shopspring decimal, rounded to 2 places half-up, discount applied before
// tax. No I/O, no entity types; the service layer owns persistence.
package calc

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Errors returned by the calculator.
var (
	ErrInvalidAmount  = errors.New("quantity must be >= 1 and unit price must be >= 0")
	ErrInvalidPercent = errors.New("percent must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// LineItem is the pricing view of an order line (menu dish or utility).
type LineItem struct {
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Totals is the aggregate pricing breakdown of an order.
type Totals struct {
	MenuSubtotal    decimal.Decimal
	UtilitySubtotal decimal.Decimal
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	GrandTotal      decimal.Decimal
}

// Subtotal computes quantity * unitPrice rounded to 2 decimal places.
func Subtotal(quantity int32, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity < 1 || unitPrice.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return unitPrice.Mul(decimal.NewFromInt32(quantity)).Round(2), nil
}

// OrderTotals computes the full pricing breakdown from line items. Each
// intermediate value is rounded to 2 places before it feeds the next step so
// repeated recalculation never drifts by a cent. Order of operations is
// fixed: discount on the subtotal, then tax on the discounted base.
func OrderTotals(menuItems, utilityItems []LineItem, discountPercent, taxPercent decimal.Decimal) (Totals, error) {
	if !validPercent(discountPercent) || !validPercent(taxPercent) {
		return Totals{}, ErrInvalidPercent
	}

	menuSubtotal, err := sumLines(menuItems)
	if err != nil {
		return Totals{}, err
	}
	utilitySubtotal, err := sumLines(utilityItems)
	if err != nil {
		return Totals{}, err
	}

	subtotal := menuSubtotal.Add(utilitySubtotal)
	discountAmount := subtotal.Mul(discountPercent).Div(hundred).Round(2)
	taxable := subtotal.Sub(discountAmount)
	taxAmount := taxable.Mul(taxPercent).Div(hundred).Round(2)

	return Totals{
		MenuSubtotal:    menuSubtotal,
		UtilitySubtotal: utilitySubtotal,
		Subtotal:        subtotal,
		DiscountAmount:  discountAmount,
		TaxAmount:       taxAmount,
		GrandTotal:      taxable.Add(taxAmount),
	}, nil
}

// Balance computes totalAmount - advanceAmount. A negative result is a
// legitimate overpayment signal and is returned as-is, never clamped.
func Balance(totalAmount, advanceAmount decimal.Decimal) decimal.Decimal {
	return totalAmount.Sub(advanceAmount).Round(2)
}

func sumLines(items []LineItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, it := range items {
		sub, err := Subtotal(it.Quantity, it.UnitPrice)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(sub)
	}
	return total, nil
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
