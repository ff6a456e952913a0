package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

type PersisterMock struct {
	mu      sync.Mutex
	stored  map[string]cart.Snapshot
	deletes int
	loads   atomic.Int32

	LoadFunc func(ctx context.Context, id string) ([]cart.Line, error)
	SaveErr  error
}

func newPersister() *PersisterMock {
	return &PersisterMock{stored: map[string]cart.Snapshot{}}
}

func (p *PersisterMock) Load(ctx context.Context, id string) ([]cart.Line, error) {
	p.loads.Add(1)
	if p.LoadFunc != nil {
		return p.LoadFunc(ctx, id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.stored[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return snap.Lines, nil
}

func (p *PersisterMock) Save(ctx context.Context, id string, snap cart.Snapshot) error {
	if p.SaveErr != nil {
		return p.SaveErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored[id] = snap
	return nil
}

func (p *PersisterMock) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stored, id)
	p.deletes++
	return nil
}

func (p *PersisterMock) get(id string) (cart.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.stored[id]
	return snap, ok
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func rug(qty int) cart.Item {
	return cart.Item{ProductID: "rug", Name: "Ковёр", UnitPrice: decimal.NewFromInt(4500), Quantity: qty}
}

func TestGet(t *testing.T) {
	t.Run("missing session starts empty", func(t *testing.T) {
		m := session.NewManager(session.Options{Persister: newPersister(), Logger: quietLogger()})

		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", s.ID)
		assert.Empty(t, s.Cart.Lines())
	})

	t.Run("same session is returned", func(t *testing.T) {
		m := session.NewManager(session.Options{Logger: quietLogger()})

		a, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		b, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		if a != b {
			t.Fatalf("expected the live session to be reused")
		}
		assert.Equal(t, 1, m.Count())
	})

	t.Run("restores stored cart", func(t *testing.T) {
		p := newPersister()
		p.stored["s1"] = cart.Snapshot{Lines: []cart.Line{{ID: "rug", ProductID: "rug", UnitPrice: decimal.NewFromInt(4500), Quantity: 2}}}
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})

		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, 2, s.Cart.TotalQuantity())
		assert.True(t, s.Cart.Subtotal().Equal(decimal.NewFromInt(9000)))
	})

	t.Run("invalid stored cart is discarded", func(t *testing.T) {
		p := newPersister()
		p.LoadFunc = func(context.Context, string) ([]cart.Line, error) {
			return nil, fmt.Errorf("decode: %w", cart.ErrInvalidDocument)
		}
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})

		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		assert.Empty(t, s.Cart.Lines())
	})

	t.Run("load error", func(t *testing.T) {
		p := newPersister()
		p.LoadFunc = func(context.Context, string) ([]cart.Line, error) {
			return nil, errors.New("connection refused")
		}
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})

		_, err := m.Get(context.Background(), "s1")
		require.Error(t, err)
		assert.Equal(t, 0, m.Count())
	})

	t.Run("concurrent first loads collapse", func(t *testing.T) {
		p := newPersister()
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})

		var wg sync.WaitGroup
		got := make([]*session.Session, 20)
		for i := range got {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := m.Get(context.Background(), "s1")
				if err == nil {
					got[i] = s
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), p.loads.Load())
		for _, s := range got {
			require.NotNil(t, s)
			if s != got[0] {
				t.Fatalf("expected one session instance")
			}
		}
	})
}

func TestPersistence(t *testing.T) {
	t.Run("mutations are saved", func(t *testing.T) {
		p := newPersister()
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})
		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)

		s.Cart.AddItem(rug(1))
		s.Cart.UpdateQuantity("rug", 2)
		m.Flush()

		stored, ok := p.get("s1")
		require.True(t, ok)
		assert.Equal(t, uint64(2), stored.Version)
		assert.Equal(t, 3, stored.TotalQuantity)
	})

	t.Run("empty cart deletes the record", func(t *testing.T) {
		p := newPersister()
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})
		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)

		s.Cart.AddItem(rug(1))
		m.Flush()
		s.Cart.Clear()
		m.Flush()

		_, ok := p.get("s1")
		assert.False(t, ok)
		assert.Equal(t, 1, p.deletes)
	})

	t.Run("save failure keeps the cart", func(t *testing.T) {
		p := newPersister()
		p.SaveErr = errors.New("disk full")
		m := session.NewManager(session.Options{Persister: p, Logger: quietLogger()})
		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)

		s.Cart.AddItem(rug(1))
		m.Flush()

		assert.Equal(t, 1, s.Cart.TotalQuantity())
	})

	t.Run("survives eviction", func(t *testing.T) {
		p := newPersister()
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		m := session.NewManager(session.Options{
			Persister: p,
			IdleTTL:   time.Minute,
			Logger:    quietLogger(),
			Now:       func() time.Time { return now },
		})
		s, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		s.Cart.AddItem(rug(2))
		m.Flush()

		assert.Equal(t, 1, m.Sweep(now.Add(2*time.Minute)))
		assert.Equal(t, 0, m.Count())

		restored, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		if restored == s {
			t.Fatalf("expected a fresh session after eviction")
		}
		assert.Equal(t, 2, restored.Cart.TotalQuantity())
	})
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m := session.NewManager(session.Options{
		IdleTTL: 30 * time.Minute,
		Logger:  quietLogger(),
		Now:     func() time.Time { return clock },
	})

	_, err := m.Get(context.Background(), "idle")
	require.NoError(t, err)
	clock = now.Add(20 * time.Minute)
	_, err = m.Get(context.Background(), "active")
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(now.Add(29*time.Minute)))
	assert.Equal(t, 1, m.Sweep(now.Add(31*time.Minute)))
	assert.Equal(t, 1, m.Count())

	disabled := session.NewManager(session.Options{Logger: quietLogger()})
	_, err = disabled.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 0, disabled.Sweep(time.Now().Add(24*time.Hour)))
}

func TestRunStopsOnCancel(t *testing.T) {
	m := session.NewManager(session.Options{SweepInterval: time.Millisecond, Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestPromo(t *testing.T) {
	m := session.NewManager(session.Options{Logger: quietLogger()})
	s, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "", s.Promo())
	s.SetPromo("скидка10")
	assert.Equal(t, "скидка10", s.Promo())
}

func TestSweepKeepsHeldSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m := session.NewManager(session.Options{
		IdleTTL: 30 * time.Minute,
		Logger:  quietLogger(),
		Now:     func() time.Time { return clock },
	})
	ctx := context.Background()

	s, err := m.Get(ctx, "sid")
	require.NoError(t, err)
	s.Cart.AddItem(cart.Item{ProductID: "p1", Name: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 1})

	var seen []cart.Snapshot
	unsubscribe := s.Cart.Subscribe(func(snap cart.Snapshot) { seen = append(seen, snap) })
	defer unsubscribe()
	release := s.Hold()

	clock = now.Add(31 * time.Minute)
	assert.Equal(t, 0, m.Sweep(clock))

	again, err := m.Get(ctx, "sid")
	require.NoError(t, err)
	require.Same(t, s, again)
	again.Cart.AddItem(cart.Item{ProductID: "p2", Name: "p2", UnitPrice: decimal.NewFromInt(20), Quantity: 1})

	require.Len(t, seen, 1)
	assert.Len(t, seen[0].Lines, 2)

	clock = now.Add(40 * time.Minute)
	release()
	release()
	assert.Equal(t, 0, m.Sweep(now.Add(60*time.Minute)), "release refreshes the idle clock")
	assert.Equal(t, 1, m.Sweep(now.Add(71*time.Minute)))
	assert.Equal(t, 0, m.Count())
}
