package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

const (
	maxLineQuantity = 99
	requestTimeout  = 3 * time.Second
	publishTimeout  = 5 * time.Second
)

// Sessions resolves the live session for a session id.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// CheckoutPublisher hands a checked-out cart to the order pipeline.
type CheckoutPublisher interface {
	PublishCartCheckedOut(ctx context.Context, sessionID, userID string, snap cart.Snapshot, meta events.Metadata) (events.EventEnvelope, error)
}

type CartHandler struct {
	sessions  Sessions
	products  catalog.Repository
	publisher CheckoutPublisher
	logger    *log.Logger

	streamsDone <-chan struct{}
}

func NewCartHandler(sessions Sessions, products catalog.Repository, publisher CheckoutPublisher, logger *log.Logger) *CartHandler {
	return &CartHandler{sessions: sessions, products: products, publisher: publisher, logger: logger}
}

type lineView struct {
	cart.Line
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type cartView struct {
	Version       uint64          `json:"version"`
	Lines         []lineView      `json:"lines"`
	TotalQuantity int             `json:"totalQuantity"`
	Badge         string          `json:"badge"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Summary       pricing.Summary `json:"summary"`
	TotalLabel    string          `json:"totalLabel"`
}

func newCartView(snap cart.Snapshot, promoCode string) cartView {
	var promo *pricing.Promo
	if promoCode != "" {
		if p, err := pricing.LookupPromo(promoCode); err == nil {
			promo = &p
		}
	}
	summary := pricing.Summarize(snap, promo)

	lines := make([]lineView, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, lineView{Line: l, LineTotal: l.Total()})
	}
	return cartView{
		Version:       snap.Version,
		Lines:         lines,
		TotalQuantity: snap.TotalQuantity,
		Badge:         cart.BadgeLabel(snap.TotalQuantity),
		Subtotal:      snap.Subtotal,
		Summary:       summary,
		TotalLabel:    pricing.FormatRUB(summary.Total),
	}
}

// session resolves the caller's session or writes the error response.
func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := sessionIDFrom(r.Context())
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing session")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		h.logger.Printf("load session %s: %v", id, err)
		writeError(w, r, http.StatusServiceUnavailable, "failed to load cart")
		return nil, false
	}
	return s, true
}

// existingSession is session for routes that never create a cart. A visitor
// whose cookie was issued by this request has no session yet and gets nil.
func (h *CartHandler) existingSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if sessionIsNew(r.Context()) {
		return nil, true
	}
	return h.session(w, r)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if s == nil {
		writeJSON(w, http.StatusOK, newCartView(cart.NewStore().Snapshot(), ""))
		return
	}
	writeJSON(w, http.StatusOK, newCartView(s.Cart.Snapshot(), s.Promo()))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItem snapshots the product's current name, price and image into the cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body addItemRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, r, http.StatusBadRequest, "missing productId")
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	if body.Quantity < 1 || body.Quantity > maxLineQuantity {
		writeError(w, r, http.StatusUnprocessableEntity, "quantity must be between 1 and 99")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, err := h.products.Get(ctx, body.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Printf("get product %s: %v", body.ProductID, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load product")
		return
	}

	price := p.EffectivePrice()
	if p.Title == "" || !price.IsPositive() {
		writeError(w, r, http.StatusUnprocessableEntity, "product cannot be added to the cart")
		return
	}

	item := cart.Item{
		ProductID: p.ID,
		Name:      p.Title,
		UnitPrice: price,
		ImageRef:  p.ImageRef(),
		Quantity:  body.Quantity,
	}
	if p.Discount > 0 {
		item.OriginalPrice = decimal.NewNullDecimal(p.Price)
		item.DiscountPercent = p.Discount
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if line, found := s.Cart.Snapshot().Line(cart.LineID(item.ProductID)); found && item.Quantity > maxLineQuantity-line.Quantity {
		writeError(w, r, http.StatusUnprocessableEntity, "quantity must be between 1 and 99")
		return
	}
	s.Cart.AddItem(item)

	writeJSON(w, http.StatusOK, newCartView(s.Cart.Snapshot(), s.Promo()))
}

type updateQuantityRequest struct {
	Delta int `json:"delta"`
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var body updateQuantityRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}

	lineID := chi.URLParam(r, "lineId")
	if s == nil {
		writeError(w, r, http.StatusNotFound, "line not found")
		return
	}
	line, found := s.Cart.Snapshot().Line(lineID)
	if !found {
		writeError(w, r, http.StatusNotFound, "line not found")
		return
	}
	if body.Delta > maxLineQuantity-line.Quantity {
		writeError(w, r, http.StatusUnprocessableEntity, "quantity must be between 1 and 99")
		return
	}
	if !s.Cart.UpdateQuantity(lineID, body.Delta) {
		writeError(w, r, http.StatusNotFound, "line not found")
		return
	}
	writeJSON(w, http.StatusOK, newCartView(s.Cart.Snapshot(), s.Promo()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if s == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.Cart.RemoveItem(chi.URLParam(r, "lineId"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if s == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.Cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var body applyPromoRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	promo, err := pricing.LookupPromo(body.Code)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "unknown promo code")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.SetPromo(promo.Code)
	writeJSON(w, http.StatusOK, newCartView(s.Cart.Snapshot(), s.Promo()))
}

func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if s == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.SetPromo("")
	w.WriteHeader(http.StatusNoContent)
}

type checkoutResponse struct {
	Status   string `json:"status"`
	EventID  string `json:"eventId"`
	Sequence int64  `json:"sequence"`
}

// Checkout publishes the hand-off event and then removes the published
// quantities from the cart. Items added while the event is in flight stay.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	if h.publisher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "checkout is not available")
		return
	}

	s, ok := h.existingSession(w, r)
	if !ok {
		return
	}
	if s == nil {
		writeError(w, r, http.StatusConflict, "cart is empty")
		return
	}

	snap := s.Cart.Snapshot()
	if snap.Empty() {
		writeError(w, r, http.StatusConflict, "cart is empty")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), publishTimeout)
	defer cancel()

	env, err := h.publisher.PublishCartCheckedOut(ctx, s.ID, id.UserID, snap, events.Metadata{
		CorrelationID: CorrelationIDFrom(r.Context()),
	})
	if err != nil {
		h.logger.Printf("checkout session %s: %v", s.ID, err)
		writeError(w, r, http.StatusServiceUnavailable, "failed to publish cart checked out event")
		return
	}

	s.Cart.Deduct(snap.Lines)
	s.SetPromo("")

	writeJSON(w, http.StatusOK, checkoutResponse{
		Status:   "checkout completed",
		EventID:  env.EventID,
		Sequence: env.Sequence,
	})
}
