package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the product data source.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, sellerID string, np NewProduct) (Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Product, error)
	// Delete removes a product owned by sellerID. Products of other sellers
	// are reported as ErrNotFound.
	Delete(ctx context.Context, sellerID, id string) error
}

// MemoryRepository keeps products in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]Product
	now      func() time.Time
}

func NewMemoryRepository(seed ...Product) *MemoryRepository {
	r := &MemoryRepository{products: make(map[string]Product, len(seed)), now: time.Now}
	for _, p := range seed {
		r.products[p.ID] = p
	}
	return r
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	newestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) Create(ctx context.Context, sellerID string, np NewProduct) (Product, error) {
	if err := np.Validate(); err != nil {
		return Product{}, err
	}
	p := Product{
		ID:          uuid.NewString(),
		Title:       np.Title,
		Description: np.Description,
		Price:       np.Price,
		Discount:    np.Discount,
		Category:    np.Category,
		ImageURL:    np.ImageURL,
		SellerID:    sellerID,
		CreatedAt:   r.now().UTC(),
	}

	r.mu.Lock()
	r.products[p.ID] = p
	r.mu.Unlock()
	return p, nil
}

func (r *MemoryRepository) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Product
	for _, p := range r.products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, sellerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok || p.SellerID != sellerID {
		return ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func newestFirst(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}
