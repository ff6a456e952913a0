// Package session keeps one cart per browser session and moves it across the
// persistence boundary.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

// ErrNotFound is returned by a Persister when no cart is stored for a session.
var ErrNotFound = errors.New("session not found")

// Persister stores carts outside the process.
type Persister interface {
	Load(ctx context.Context, sessionID string) ([]cart.Line, error)
	Save(ctx context.Context, sessionID string, snap cart.Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// Session is the server-side state of one browser session.
type Session struct {
	ID   string
	Cart *cart.Store

	mu       sync.Mutex
	promo    string
	lastSeen time.Time
	holds    int
	now      func() time.Time

	unsubscribe func()

	saveMu    sync.Mutex
	lastSaved uint64
}

// Promo returns the promo code applied to the cart, if any.
func (s *Session) Promo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo
}

func (s *Session) SetPromo(code string) {
	s.mu.Lock()
	s.promo = code
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Hold keeps the session in memory until release is called, however long it
// stays idle. Long-lived readers such as event streams hold the session so
// that their subscription stays attached to the live cart. Releasing counts as
// a use of the session.
func (s *Session) Hold() (release func()) {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.holds--
			if s.now != nil {
				s.lastSeen = s.now()
			}
			s.mu.Unlock()
		})
	}
}

// idle reports whether the session has no holds and was last used before cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds == 0 && s.lastSeen.Before(cutoff)
}
