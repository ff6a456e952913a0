package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// PriceRange is one of the catalog price bands, matched on the list price.
type PriceRange string

const (
	AnyPrice         PriceRange = ""
	PriceUpTo5000    PriceRange = "0-5000"
	Price5000To20000 PriceRange = "5000-20000"
	PriceOver20000   PriceRange = "20000+"
)

var (
	fiveThousand   = decimal.NewFromInt(5000)
	twentyThousand = decimal.NewFromInt(20000)
)

func ParsePriceRange(s string) (PriceRange, error) {
	switch r := PriceRange(strings.TrimSpace(s)); r {
	case AnyPrice, PriceUpTo5000, Price5000To20000, PriceOver20000:
		return r, nil
	default:
		return AnyPrice, fmt.Errorf("unknown price range %q", s)
	}
}

// Contains reports whether price falls in the band.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	switch r {
	case PriceUpTo5000:
		return price.LessThanOrEqual(fiveThousand)
	case Price5000To20000:
		return price.GreaterThan(fiveThousand) && price.LessThanOrEqual(twentyThousand)
	case PriceOver20000:
		return price.GreaterThan(twentyThousand)
	default:
		return true
	}
}

// Filter narrows a catalog listing. Zero values match everything.
type Filter struct {
	Categories     []string
	PriceRange     PriceRange
	OnlyDiscounted bool
	// Query matches title or description, ignoring case.
	Query string
	Limit int
}

func (f Filter) Matches(p Product) bool {
	if len(f.Categories) > 0 && !containsString(f.Categories, p.Category) {
		return false
	}
	if !f.PriceRange.Contains(p.Price) {
		return false
	}
	if f.OnlyDiscounted && p.Discount <= 0 {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		fold := cases.Fold()
		needle := fold.String(q)
		if !strings.Contains(fold.String(p.Title), needle) && !strings.Contains(fold.String(p.Description), needle) {
			return false
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
