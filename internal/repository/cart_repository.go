package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartLineNotFound = errors.New("cart line not found")
)

// CartRepository stores one snapshot line per (buyer, product)
type CartRepository interface {
	Upsert(ctx context.Context, line *domain.CartLine) error
	List(ctx context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error)
	Delete(ctx context.Context, buyerID, productID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

const cartLineColumns = `product_id, buyer_id, name, price, image, seller_id, seller_email, seller_name, created_at`

// Upsert writes the line, overwriting an existing line for the same product.
// The original created_at is kept so the cart order stays stable, and is
// copied back into line.
func (r *cartRepository) Upsert(ctx context.Context, line *domain.CartLine) error {
	query := `
		INSERT INTO cart_lines (` + cartLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (buyer_id, product_id) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			seller_id = EXCLUDED.seller_id,
			seller_email = EXCLUDED.seller_email,
			seller_name = EXCLUDED.seller_name
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		line.ID,
		line.BuyerID,
		line.Name,
		line.Price,
		line.Image,
		line.SellerID,
		line.SellerEmail,
		line.SellerName,
		line.CreatedAt,
	).Scan(&line.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}

	return nil
}

// List returns the buyer's cart lines, oldest first
func (r *cartRepository) List(ctx context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	return listCartLines(ctx, r.db, buyerID)
}

// Delete removes a single line
func (r *cartRepository) Delete(ctx context.Context, buyerID, productID uuid.UUID) error {
	n, err := deleteCartLine(ctx, r.db, buyerID, productID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func listCartLines(ctx context.Context, q querier, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	query := `
		SELECT ` + cartLineColumns + `
		FROM cart_lines
		WHERE buyer_id = $1
		ORDER BY created_at ASC, product_id
	`

	rows, err := q.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line := &domain.CartLine{}
		if err := rows.Scan(
			&line.ID,
			&line.BuyerID,
			&line.Name,
			&line.Price,
			&line.Image,
			&line.SellerID,
			&line.SellerEmail,
			&line.SellerName,
			&line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

func deleteCartLine(ctx context.Context, q querier, buyerID, productID uuid.UUID) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM cart_lines WHERE buyer_id = $1 AND product_id = $2`, buyerID, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cart line: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}
