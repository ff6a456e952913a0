package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "carts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshotOf(items ...cart.Item) cart.Snapshot {
	s := cart.NewStore()
	for _, it := range items {
		s.AddItem(it)
	}
	return s.Snapshot()
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestSaveLoadDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNotFound)

	snap := snapshotOf(
		cart.Item{ProductID: "book", Name: "Книга", UnitPrice: decimal.RequireFromString("799.50"), Quantity: 1},
		cart.Item{ProductID: "rug", Name: "Ковёр", UnitPrice: decimal.NewFromInt(4500), Quantity: 3},
	)
	require.NoError(t, store.Save(ctx, "s1", snap))

	lines, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "book", lines[0].ID)
	assert.Equal(t, 3, lines[1].Quantity)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestSave_Overwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", snapshotOf(cart.Item{ProductID: "a", UnitPrice: decimal.NewFromInt(1), Quantity: 1})))
	require.NoError(t, store.Save(ctx, "s1", snapshotOf(cart.Item{ProductID: "b", UnitPrice: decimal.NewFromInt(2), Quantity: 5})))

	lines, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "b", lines[0].ProductID)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carts.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "s1", snapshotOf(cart.Item{ProductID: "a", UnitPrice: decimal.NewFromInt(1), Quantity: 2})))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	lines, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	require.NoError(t, store.Save(ctx, "old", snapshotOf(cart.Item{ProductID: "a", UnitPrice: decimal.NewFromInt(1)})))
	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, store.Save(ctx, "new", snapshotOf(cart.Item{ProductID: "a", UnitPrice: decimal.NewFromInt(1)})))

	n, err := store.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Load(ctx, "old")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Load(ctx, "new")
	assert.NoError(t, err)
}

func TestManagerRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	m := session.NewManager(session.Options{Persister: store})
	s, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	s.Cart.AddItem(cart.Item{ProductID: "phone", Name: "Телефон", UnitPrice: decimal.NewFromInt(19990), Quantity: 1})
	m.Flush()

	fresh := session.NewManager(session.Options{Persister: store})
	restored, err := fresh.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Cart.TotalQuantity())
	assert.True(t, restored.Cart.Subtotal().Equal(decimal.NewFromInt(19990)))
}
