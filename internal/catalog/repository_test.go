package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository(
		Product{ID: "old", Title: "Ковёр", Description: "шерсть", Price: decimal.NewFromInt(3000), Category: "ковры", SellerID: "s1", CreatedAt: base},
		Product{ID: "new", Title: "Телефон", Description: "смартфон", Price: decimal.NewFromInt(25000), Discount: 5, Category: "телефоны", SellerID: "s2", CreatedAt: base.Add(time.Hour)},
	)

	t.Run("list newest first", func(t *testing.T) {
		products, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "new", products[0].ID)
	})

	t.Run("list with filter and limit", func(t *testing.T) {
		products, err := repo.List(ctx, Filter{OnlyDiscounted: true})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "new", products[0].ID)

		products, err = repo.List(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})

	t.Run("get", func(t *testing.T) {
		p, err := repo.Get(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, "Ковёр", p.Title)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create validates", func(t *testing.T) {
		_, err := repo.Create(ctx, "s1", NewProduct{Title: "x"})
		if !errors.Is(err, ErrInvalidProduct) {
			t.Fatalf("expected ErrInvalidProduct, got %v", err)
		}
	})

	t.Run("create and list by seller", func(t *testing.T) {
		repo.now = func() time.Time { return base.Add(2 * time.Hour) }
		p, err := repo.Create(ctx, "s1", NewProduct{Title: "Книга", Description: "роман", Price: decimal.NewFromInt(700)})
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, DefaultCategory, p.Category)

		mine, err := repo.ListBySeller(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, p.ID, mine[0].ID)
	})

	t.Run("delete is scoped to the seller", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, "s1", "new"), ErrNotFound)
		require.NoError(t, repo.Delete(ctx, "s2", "new"))
		assert.ErrorIs(t, repo.Delete(ctx, "s2", "new"), ErrNotFound)
	})
}
