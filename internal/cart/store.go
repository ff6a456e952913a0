// Package cart holds the per-session shopping cart: its lines, merge rule,
// derived totals and change notification.
package cart

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Observer receives the post-mutation snapshot. Observers run synchronously
// on the mutating goroutine and must not mutate the store they observe.
type Observer func(Snapshot)

type observerEntry struct {
	id int
	fn Observer
}

// Store is the single source of truth for one cart. Mutations and their
// notification fan-out are serialized; readers load the latest published
// snapshot without locking.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	obsMu     sync.Mutex
	observers []observerEntry
	nextObsID int
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLines seeds the store, typically with lines restored by Decode.
// Lines with a quantity below one are dropped and duplicate ids are merged.
// Seeding does not notify anyone and leaves the version at zero.
func WithLines(lines []Line) Option {
	return func(s *Store) {
		seeded := make([]Line, 0, len(lines))
		for _, l := range lines {
			if l.Quantity < 1 {
				continue
			}
			if l.ID == "" {
				l.ID = LineID(l.ProductID)
			}
			l.Quantity = min(l.Quantity, MaxQuantity)
			if i := indexOf(seeded, l.ID); i >= 0 {
				seeded[i].Quantity = addQuantity(seeded[i].Quantity, l.Quantity)
				continue
			}
			seeded = append(seeded, l)
		}
		snap := newSnapshot(0, seeded)
		s.current.Store(&snap)
	}
}

// NewStore returns an empty cart at version zero.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	empty := newSnapshot(0, []Line{})
	s.current.Store(&empty)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem merges item into the line with the same product-derived id, or
// appends a new line. A quantity below one counts as one. Line quantities
// saturate at MaxQuantity.
func (s *Store) AddItem(item Item) {
	qty := min(max(item.Quantity, 1), MaxQuantity)
	id := LineID(item.ProductID)

	s.mutate(func(lines []Line) ([]Line, bool) {
		if i := indexOf(lines, id); i >= 0 {
			next := addQuantity(lines[i].Quantity, qty)
			if next == lines[i].Quantity {
				return lines, false
			}
			lines[i].Quantity = next
			return lines, true
		}
		return append(lines, Line{
			ID:              id,
			ProductID:       item.ProductID,
			Name:            item.Name,
			UnitPrice:       item.UnitPrice,
			OriginalPrice:   item.OriginalPrice,
			DiscountPercent: item.DiscountPercent,
			ImageRef:        item.ImageRef,
			Quantity:        qty,
		}), true
	})
}

// UpdateQuantity adds delta to the line's quantity and removes the line when
// the result drops to zero or below. Increments saturate at MaxQuantity. It
// reports whether the line existed.
func (s *Store) UpdateQuantity(id string, delta int) bool {
	found := false
	s.mutate(func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, id)
		if i < 0 {
			return lines, false
		}
		found = true
		if delta == 0 {
			return lines, false
		}
		if delta <= -lines[i].Quantity {
			return append(lines[:i], lines[i+1:]...), true
		}
		next := addQuantity(lines[i].Quantity, delta)
		if next == lines[i].Quantity {
			return lines, false
		}
		lines[i].Quantity = next
		return lines, true
	})
	return found
}

// RemoveItem drops the line if present and reports whether it was.
func (s *Store) RemoveItem(id string) bool {
	return s.mutate(func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, id)
		if i < 0 {
			return lines, false
		}
		return append(lines[:i], lines[i+1:]...), true
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func(lines []Line) ([]Line, bool) {
		return []Line{}, len(lines) > 0
	})
}

// Deduct subtracts the quantities of lines from the matching cart lines and
// drops lines that reach zero. Lines not in the cart are ignored. Checkout uses
// it so that items added while the order was being handed off stay in the
// cart.
func (s *Store) Deduct(lines []Line) {
	s.mutate(func(cur []Line) ([]Line, bool) {
		changed := false
		for _, d := range lines {
			i := indexOf(cur, d.ID)
			if i < 0 || d.Quantity < 1 {
				continue
			}
			changed = true
			if cur[i].Quantity <= d.Quantity {
				cur = append(cur[:i], cur[i+1:]...)
				continue
			}
			cur[i].Quantity -= d.Quantity
		}
		return cur, changed
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	return s.current.Load().clone()
}

// Lines returns the current lines in first-added order.
func (s *Store) Lines() []Line {
	return cloneLines(s.current.Load().Lines)
}

// TotalQuantity is the sum of all line quantities.
func (s *Store) TotalQuantity() int {
	return s.current.Load().TotalQuantity
}

// Subtotal is the sum of UnitPrice × Quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	return s.current.Load().Subtotal
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Calling the returned function more than once is safe.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) mutate(fn func([]Line) ([]Line, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next, changed := fn(cloneLines(cur.Lines))
	if !changed {
		return false
	}

	snap := newSnapshot(cur.Version+1, next)
	s.current.Store(&snap)
	s.notify(snap)
	return true
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.Lock()
	observers := make([]observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()

	for _, o := range observers {
		o.fn(snap.clone())
	}
}
