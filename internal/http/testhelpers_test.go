package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

const testSecret = "test-secret-with-enough-entropy-for-hs256"

type publishCall struct {
	sessionID string
	userID    string
	snap      cart.Snapshot
	meta      events.Metadata
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
	// during runs while the event is being published.
	during func()
}

func (f *fakePublisher) PublishCartCheckedOut(ctx context.Context, sessionID, userID string, snap cart.Snapshot, meta events.Metadata) (events.EventEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return events.EventEnvelope{}, f.err
	}
	f.calls = append(f.calls, publishCall{sessionID: sessionID, userID: userID, snap: snap, meta: meta})
	return events.BuildCartCheckedOutEvent(sessionID, userID, snap, events.EnvelopeOptions{Sequence: int64(len(f.calls))}), nil
}

type failingSessions struct{}

func (failingSessions) Get(ctx context.Context, id string) (*session.Session, error) {
	return nil, errors.New("redis unavailable")
}

type testEnv struct {
	t         *testing.T
	handler   http.Handler
	sessions  *session.Manager
	products  *catalog.MemoryRepository
	publisher *fakePublisher
	cookie    *http.Cookie
}

func seedProducts() []catalog.Product {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return []catalog.Product{
		{ID: "rug", Title: "Персидский ковёр", Description: "Шерсть", Price: decimal.NewFromInt(5000), Discount: 10, Category: "ковры", SellerID: "seller-1", CreatedAt: created},
		{ID: "phone", Title: "Телефон", Description: "Смартфон", Price: decimal.NewFromInt(25000), Category: "телефоны", SellerID: "seller-2", CreatedAt: created.Add(time.Hour)},
		{ID: "free", Title: "Подарок", Description: "Бесплатно", Price: decimal.NewFromInt(100), Discount: 100, Category: "книги", SellerID: "seller-1", CreatedAt: created.Add(2 * time.Hour)},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	env := &testEnv{
		t:         t,
		sessions:  session.NewManager(session.Options{Logger: logger, IdleTTL: 30 * time.Minute}),
		products:  catalog.NewMemoryRepository(seedProducts()...),
		publisher: &fakePublisher{},
	}
	env.handler = NewRouter(Deps{
		Logger:           logger,
		Sessions:         env.sessions,
		Catalog:          env.products,
		Verifier:         auth.NewVerifier(testSecret, "authenticated"),
		Publisher:        env.publisher,
		CORSAllowOrigins: []string{"https://shop.example.test"},
	})
	return env
}

func token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           userID,
		"aud":           "authenticated",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"role": string(role)},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

// do sends a request carrying the session cookie from earlier responses.
func (e *testEnv) do(method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if e.cookie != nil {
		r.AddCookie(e.cookie)
	}
	for _, opt := range opts {
		opt(r)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	for _, c := range w.Result().Cookies() {
		if c.Name == "sf_session" {
			e.cookie = c
		}
	}
	return w
}

func (e *testEnv) session() *session.Session {
	e.t.Helper()
	require.NotNil(e.t, e.cookie, "no session cookie yet")
	s, err := e.sessions.Get(context.Background(), e.cookie.Value)
	require.NoError(e.t, err)
	return s
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}
