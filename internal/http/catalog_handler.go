package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

const maxListLimit = 100

type CatalogHandler struct {
	repo   catalog.Repository
	logger *log.Logger
}

func NewCatalogHandler(repo catalog.Repository, logger *log.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

type productView struct {
	catalog.Product
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	PriceLabel     string          `json:"priceLabel"`
	ImageRef       string          `json:"imageRef"`
}

func newProductView(p catalog.Product) productView {
	price := p.EffectivePrice()
	return productView{
		Product:        p,
		EffectivePrice: price,
		PriceLabel:     pricing.FormatRUB(price),
		ImageRef:       p.ImageRef(),
	}
}

func newProductViews(products []catalog.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	return out
}

// parseFilter reads category (repeatable or comma separated), price, discount,
// q and limit.
func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	var f catalog.Filter

	for _, v := range q["category"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Categories = append(f.Categories, c)
			}
		}
	}

	pr, err := catalog.ParsePriceRange(q.Get("price"))
	if err != nil {
		return catalog.Filter{}, err
	}
	f.PriceRange = pr

	switch strings.ToLower(q.Get("discount")) {
	case "", "0", "false":
	case "1", "true":
		f.OnlyDiscounted = true
	default:
		return catalog.Filter{}, errors.New("discount must be 1 or 0")
	}

	f.Query = strings.TrimSpace(q.Get("q"))

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return catalog.Filter{}, errors.New("limit must be between 1 and 100")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	products, err := h.repo.List(ctx, f)
	if err != nil {
		h.logger.Printf("list products: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, newProductViews(products))
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, err := h.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Printf("get product: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

type sellerProductsResponse struct {
	Products []productView       `json:"products"`
	Stats    catalog.SellerStats `json:"stats"`
}

func (h *CatalogHandler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	products, err := h.repo.ListBySeller(ctx, id.UserID)
	if err != nil {
		h.logger.Printf("list seller products: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, sellerProductsResponse{
		Products: newProductViews(products),
		Stats:    catalog.Stats(products),
	})
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var body catalog.NewProduct
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, err := h.repo.Create(ctx, id.UserID, body)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidProduct) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Printf("create product: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, newProductView(p))
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	err := h.repo.Delete(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Printf("delete product: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}
