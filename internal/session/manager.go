package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

const (
	defaultSaveTimeout   = 5 * time.Second
	defaultSweepInterval = time.Minute
)

type Options struct {
	// Persister is optional. Without one carts live in memory only.
	Persister Persister
	// IdleTTL is how long an untouched session stays in memory. Zero keeps
	// sessions forever.
	IdleTTL       time.Duration
	SaveTimeout   time.Duration
	SweepInterval time.Duration
	Logger        *log.Logger
	Now           func() time.Time
}

// Manager owns the live sessions of this process.
type Manager struct {
	persister     Persister
	idleTTL       time.Duration
	saveTimeout   time.Duration
	sweepInterval time.Duration
	logger        *log.Logger
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	loads singleflight.Group
	saves sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		persister:     opts.Persister,
		idleTTL:       opts.IdleTTL,
		saveTimeout:   opts.SaveTimeout,
		sweepInterval: opts.SweepInterval,
		logger:        opts.Logger,
		now:           opts.Now,
		sessions:      make(map[string]*Session),
	}
	if m.saveTimeout <= 0 {
		m.saveTimeout = defaultSaveTimeout
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = defaultSweepInterval
	}
	if m.logger == nil {
		m.logger = log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Get returns the live session for id, restoring it through the persister on
// first use. A session with nothing stored starts with an empty cart.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s := m.lookup(id); s != nil {
		return s, nil
	}

	v, err, _ := m.loads.Do(id, func() (any, error) {
		if s := m.lookup(id); s != nil {
			return s, nil
		}

		lines, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}

		s := m.open(id, lines)
		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Count returns the number of sessions held in memory.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the idle TTL from memory and
// returns how many were dropped. Held sessions are never dropped. Persisted
// carts are left in place.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}

	cutoff := now.Add(-m.idleTTL)
	var evicted []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idle(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	}
	return len(evicted)
}

// Run sweeps on a ticker until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.logger.Printf("evicted %d idle sessions", n)
			}
		}
	}
}

// Flush waits for pending saves. Call it after request handling has stopped.
func (m *Manager) Flush() {
	m.saves.Wait()
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s != nil {
		s.touch(m.now())
	}
	return s
}

func (m *Manager) load(ctx context.Context, id string) ([]cart.Line, error) {
	if m.persister == nil {
		return nil, nil
	}

	lines, err := m.persister.Load(ctx, id)
	switch {
	case err == nil:
		return lines, nil
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case errors.Is(err, cart.ErrInvalidDocument):
		m.logger.Printf("discarding stored cart for session %s: %v", id, err)
		return nil, nil
	default:
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
}

func (m *Manager) open(id string, lines []cart.Line) *Session {
	s := &Session{
		ID:       id,
		Cart:     cart.NewStore(cart.WithLines(lines)),
		lastSeen: m.now(),
		now:      m.now,
	}
	if m.persister != nil {
		s.unsubscribe = s.Cart.Subscribe(func(snap cart.Snapshot) {
			m.saves.Add(1)
			go m.persist(s, snap)
		})
	}
	return s
}

// persist writes snap unless a newer version already reached the persister.
func (m *Manager) persist(s *Session, snap cart.Snapshot) {
	defer m.saves.Done()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if snap.Version <= s.lastSaved {
		return
	}
	s.lastSaved = snap.Version

	ctx, cancel := context.WithTimeout(context.Background(), m.saveTimeout)
	defer cancel()

	var err error
	if snap.Empty() {
		err = m.persister.Delete(ctx, s.ID)
	} else {
		err = m.persister.Save(ctx, s.ID, snap)
	}
	if err != nil {
		m.logger.Printf("persist cart for session %s (version %d): %v", s.ID, snap.Version, err)
	}
}
