package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// CategoryRepository reads the categories sellers have filed products under.
// There is no category table; the set is derived from products.
type CategoryRepository interface {
	ListInUse(ctx context.Context) ([]string, error)
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// ListInUse returns each non-blank category once, case-insensitively sorted.
func (r *categoryRepository) ListInUse(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category
		FROM products
		WHERE btrim(category) <> ''
		GROUP BY category
		ORDER BY lower(category), category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return collectStrings(rows)
}

// collectStrings drains a single-column result set and closes it.
func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
