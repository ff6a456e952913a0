// Package pricing computes discounted prices, promo discounts and order
// summaries, and formats rouble amounts for display.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

var ErrUnknownPromo = errors.New("unknown promo code")

var hundred = decimal.NewFromInt(100)

// EffectivePrice applies a percentage discount and rounds to kopecks.
// Discounts outside 0..100 are clamped.
func EffectivePrice(price decimal.Decimal, discountPercent int) decimal.Decimal {
	switch {
	case discountPercent <= 0:
		return price
	case discountPercent >= 100:
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(100 - discountPercent))).Div(hundred).Round(2)
}

// Promo is a cart-wide percentage discount unlocked by a code.
type Promo struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

var promos = map[string]int{
	"скидка10": 10,
	"скидка20": 20,
}

// LookupPromo resolves a promo code, ignoring case and surrounding spaces.
func LookupPromo(code string) (Promo, error) {
	key := cases.Fold().String(strings.TrimSpace(code))
	pct, ok := promos[key]
	if !ok {
		return Promo{}, ErrUnknownPromo
	}
	return Promo{Code: key, Percent: pct}, nil
}

// Summary is the order summary shown next to the cart.
type Summary struct {
	Items    int             `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Promo    *Promo          `json:"promo,omitempty"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize applies promo, if any, to the snapshot subtotal.
func Summarize(snap cart.Snapshot, promo *Promo) Summary {
	s := Summary{
		Items:    snap.TotalQuantity,
		Subtotal: snap.Subtotal,
		Discount: decimal.Zero,
		Total:    snap.Subtotal,
	}
	if promo != nil && promo.Percent > 0 {
		s.Promo = promo
		s.Discount = snap.Subtotal.Mul(decimal.NewFromInt(int64(promo.Percent))).Div(hundred).Round(2)
		s.Total = snap.Subtotal.Sub(s.Discount)
	}
	return s
}

// FormatRUB renders amount with Russian digit grouping followed by the rouble
// sign. Kopecks are shown only when present.
func FormatRUB(amount decimal.Decimal) string {
	p := message.NewPrinter(language.Russian)
	amount = amount.Round(2)
	if amount.Equal(amount.Truncate(0)) {
		return p.Sprint(number.Decimal(amount.IntPart())) + " ₽"
	}
	f, _ := amount.Float64()
	return p.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2))) + " ₽"
}
