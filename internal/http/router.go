package httpapi

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

type Deps struct {
	Logger *log.Logger

	Sessions  Sessions
	Catalog   catalog.Repository
	Verifier  TokenVerifier
	Publisher CheckoutPublisher

	// StreamsDone ends open cart streams when closed. http.Server.Shutdown
	// waits for active requests and never cancels their contexts.
	StreamsDone <-chan struct{}

	SessionCookie    string
	CookieSecure     bool
	CORSAllowOrigins []string
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard, "", 0)
	}
	if d.SessionCookie == "" {
		d.SessionCookie = "sf_session"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: d.Logger, NoColor: true}))
	r.Use(Recover(d.Logger))
	r.Use(CORS(d.CORSAllowOrigins))
	r.Use(Authenticate(d.Verifier))

	r.Get("/health", Health)

	cartHandler := NewCartHandler(d.Sessions, d.Catalog, d.Publisher, d.Logger)
	cartHandler.streamsDone = d.StreamsDone
	catalogHandler := NewCatalogHandler(d.Catalog, d.Logger)

	r.Route("/api", func(r chi.Router) {
		r.With(RequireUser).Get("/me", Me)

		r.Route("/cart", func(r chi.Router) {
			r.Use(SessionCookie(d.SessionCookie, d.CookieSecure))

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.Clear)
			r.Get("/stream", cartHandler.Stream)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{lineId}", cartHandler.UpdateQuantity)
			r.Delete("/items/{lineId}", cartHandler.RemoveItem)
			r.Post("/promo", cartHandler.ApplyPromo)
			r.Delete("/promo", cartHandler.RemovePromo)
			r.With(RequireUser).Post("/checkout", cartHandler.Checkout)
		})

		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{id}", catalogHandler.GetProduct)

		r.Route("/seller/products", func(r chi.Router) {
			r.Use(RequireSeller)
			r.Get("/", catalogHandler.ListSellerProducts)
			r.Post("/", catalogHandler.CreateProduct)
			r.Delete("/{id}", catalogHandler.DeleteProduct)
		})
	})

	return r
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
