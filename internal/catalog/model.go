package catalog

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidProduct = errors.New("invalid product")
)

// DefaultCategory is used when a seller does not pick one.
const DefaultCategory = "ковры"

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	SellerID    string          `json:"sellerId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// EffectivePrice is the price after the product discount.
func (p Product) EffectivePrice() decimal.Decimal {
	return pricing.EffectivePrice(p.Price, p.Discount)
}

// ImageRef is the product image, or a category image picked deterministically
// from the product id when the seller uploaded none.
func (p Product) ImageRef() string {
	if p.ImageURL != "" {
		return p.ImageURL
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.ID))
	return ImageFor(p.Category, int(h.Sum32()%1024))
}

// NewProduct is the seller's input for a catalog entry.
type NewProduct struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
}

// Validate trims the input, applies defaults and checks the required fields.
func (n *NewProduct) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.Category = strings.TrimSpace(n.Category)
	n.ImageURL = strings.TrimSpace(n.ImageURL)

	switch {
	case n.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidProduct)
	case n.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidProduct)
	case !n.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	case n.Discount < 0 || n.Discount > 100:
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidProduct)
	}
	if n.Category == "" {
		n.Category = DefaultCategory
	}
	return nil
}

var categoryImages = map[string][]string{
	"ковры": {
		"https://images.unsplash.com/photo-1586023492125-27b2c045efd7?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1548620848-4250ca6d6d6a?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1505843513577-22bb7d21e455?w=400&h=300&fit=crop",
	},
	"телефоны": {
		"https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1601784551446-20c9e07cdbdb?w=400&h=300&fit=crop",
	},
	"книги": {
		"https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1512820790803-83ca734da794?w=400&h=300&fit=crop",
		"https://images.unsplash.com/photo-1532012197267-da84d127e765?w=400&h=300&fit=crop",
	},
}

// ImageFor returns a placeholder image for category. Unknown categories use
// the default category's images.
func ImageFor(category string, index int) string {
	images, ok := categoryImages[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		images = categoryImages[DefaultCategory]
	}
	if index < 0 {
		index = -index
	}
	return images[index%len(images)]
}

// SellerStats summarizes a seller's catalog.
type SellerStats struct {
	Total        int             `json:"total"`
	Discounted   int             `json:"discounted"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
}

func Stats(products []Product) SellerStats {
	stats := SellerStats{AveragePrice: decimal.Zero}
	if len(products) == 0 {
		return stats
	}
	sum := decimal.Zero
	for _, p := range products {
		stats.Total++
		if p.Discount > 0 {
			stats.Discounted++
		}
		sum = sum.Add(p.Price)
	}
	stats.AveragePrice = sum.Div(decimal.NewFromInt(int64(len(products)))).Round(0)
	return stats
}
