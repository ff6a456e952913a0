package cart

import "github.com/shopspring/decimal"

// Item is the product snapshot a caller hands to AddItem. Name, prices and
// image are copied into the line and never refreshed from the catalog.
type Item struct {
	ProductID       string
	Name            string
	UnitPrice       decimal.Decimal
	OriginalPrice   decimal.NullDecimal
	DiscountPercent int
	ImageRef        string
	Quantity        int
}

// Line is one entry of the cart.
type Line struct {
	ID              string              `json:"id"`
	ProductID       string              `json:"productId"`
	Name            string              `json:"name"`
	UnitPrice       decimal.Decimal     `json:"unitPrice"`
	OriginalPrice   decimal.NullDecimal `json:"originalPrice"`
	DiscountPercent int                 `json:"discountPercent,omitempty"`
	ImageRef        string              `json:"imageRef,omitempty"`
	Quantity        int                 `json:"quantity"`
}

// Total is UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// MaxQuantity bounds a single line so that quantities and their sums cannot
// overflow int.
const MaxQuantity = 1<<31 - 1

// addQuantity returns q+delta for q in [1, MaxQuantity], saturating at
// MaxQuantity. Callers handle results below one.
func addQuantity(q, delta int) int {
	if delta > MaxQuantity-q {
		return MaxQuantity
	}
	return q + delta
}

// LineID derives the cart line id from the product id. One product maps to
// exactly one line.
func LineID(productID string) string {
	return productID
}

// Snapshot is an immutable, versioned view of the cart with its derived
// totals. Version grows by one for every mutation that changed the lines.
type Snapshot struct {
	Version       uint64          `json:"version"`
	Lines         []Line          `json:"lines"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// Empty reports whether the cart has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Line returns the line with the given id.
func (s Snapshot) Line(id string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

func newSnapshot(version uint64, lines []Line) Snapshot {
	snap := Snapshot{
		Version:  version,
		Lines:    lines,
		Subtotal: decimal.Zero,
	}
	for _, l := range lines {
		snap.TotalQuantity += l.Quantity
		snap.Subtotal = snap.Subtotal.Add(l.Total())
	}
	return snap
}

func (s Snapshot) clone() Snapshot {
	s.Lines = cloneLines(s.Lines)
	return s
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

func indexOf(lines []Line, id string) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}
