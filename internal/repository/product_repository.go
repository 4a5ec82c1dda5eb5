package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("product not found")

type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter narrows a catalog listing. Zero values mean "no filter".
type ProductFilter struct {
	Category string
	OwnerID  *uuid.UUID
}

// ProductRepository stores the catalog. Listings are paged and report the
// total number of matches alongside the page.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, price, category, image, owner_id, owner_email, owner_name, created_at, updated_at`

// sortColumns maps accepted sort keys to columns; anything else sorts by creation time.
var sortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Image,
		p.OwnerID, p.OwnerEmail, p.OwnerName, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product %q: %w", p.Name, err)
	}
	return nil
}

// Update overwrites the editable fields. The owner snapshot is never rewritten.
func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, image = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Image, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

// Delete removes a product. Cart lines that reference it are left alone.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	var where conditions
	// "All" is a picker entry, not a stored category.
	if filter.Category != "" && filter.Category != "All" {
		where.add("category = ?", filter.Category)
	}
	if filter.OwnerID != nil {
		where.add("owner_id = ?", *filter.OwnerID)
	}

	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	if sortOrder != SortOrderAsc {
		sortOrder = SortOrderDesc
	}

	return r.page(ctx, where, column+" "+string(sortOrder), page, pageSize)
}

// Search matches name, description and category case-insensitively.
// A blank query lists the whole catalog newest first.
func (r *productRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	var where conditions
	if q := strings.TrimSpace(query); q != "" {
		where.add("(name ILIKE ? OR description ILIKE ? OR category ILIKE ?)", likePattern(q))
	}
	return r.page(ctx, where, "created_at DESC", page, pageSize)
}

func (r *productRepository) page(ctx context.Context, where conditions, orderBy string, page, pageSize int) ([]*domain.Product, int, error) {
	clause, args := where.sql()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM products %s ORDER BY %s, id LIMIT $%d OFFSET $%d",
		productColumns, clause, orderBy, n+1, n+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read products: %w", err)
	}
	return products, total, nil
}

// conditions collects AND-ed predicates written with ? placeholders. Every
// ? in one predicate binds the same argument.
type conditions struct {
	preds []string
	args  []any
}

func (c *conditions) add(pred string, arg any) {
	c.args = append(c.args, arg)
	c.preds = append(c.preds, strings.ReplaceAll(pred, "?", fmt.Sprintf("$%d", len(c.args))))
}

func (c conditions) sql() (string, []any) {
	if len(c.preds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(c.preds, " AND "), c.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns user text into a substring ILIKE pattern.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Image,
		&p.OwnerID, &p.OwnerEmail, &p.OwnerName, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}
