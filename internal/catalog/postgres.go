package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const productColumns = `id, title, description, price, discount, category, COALESCE(image_url, ''), seller_id, created_at`

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	query, args := listQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return collectProducts(rows)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, sellerID string, np NewProduct) (Product, error) {
	if err := np.Validate(); err != nil {
		return Product{}, err
	}
	p := Product{
		ID:          uuid.NewString(),
		Title:       np.Title,
		Description: np.Description,
		Price:       np.Price,
		Discount:    np.Discount,
		Category:    np.Category,
		ImageURL:    np.ImageURL,
		SellerID:    sellerID,
	}

	var imageURL *string
	if p.ImageURL != "" {
		imageURL = &p.ImageURL
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, title, description, price, discount, category, image_url, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, p.ID, p.Title, p.Description, p.Price, p.Discount, p.Category, imageURL, p.SellerID).Scan(&p.CreatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE seller_id=$1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("query seller products: %w", err)
	}
	return collectProducts(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, sellerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1 AND seller_id=$2`, id, sellerID)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// listQuery builds the filtered listing. Every user value is a bind parameter.
func listQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Categories) > 0 {
		where = append(where, "category = ANY("+next(f.Categories)+")")
	}
	switch f.PriceRange {
	case PriceUpTo5000:
		where = append(where, "price <= 5000")
	case Price5000To20000:
		where = append(where, "price > 5000 AND price <= 20000")
	case PriceOver20000:
		where = append(where, "price > 20000")
	}
	if f.OnlyDiscounted {
		where = append(where, "discount > 0")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := next("%" + escapeLike(q) + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + next(f.Limit))
	}
	return sb.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Discount, &p.Category, &p.ImageURL, &p.SellerID, &p.CreatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
