package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotOrderSeller     = errors.New("order belongs to another seller")
	ErrInvalidTransition  = errors.New("order status cannot change")
	ErrBuyerOrderNotFound = errors.New("buyer order referenced by seller order not found")
	ErrCartChanged        = errors.New("cart changed during checkout")
)

// Transition describes a seller moving one of their orders to a terminal status.
// Events, when set, is called inside the transaction with the updated orders.
type Transition struct {
	SellerOrderID uuid.UUID
	SellerID      uuid.UUID
	To            domain.OrderStatus
	At            time.Time
	Events        func(seller *domain.SellerOrder, buyer *domain.BuyerOrder) ([]*domain.OutboxEvent, error)
}

// OrderRepository persists buyer orders, seller orders and their outbox events
type OrderRepository interface {
	PlaceOrder(ctx context.Context, order *domain.BuyerOrder, sellers []*domain.SellerOrder, events []*domain.OutboxEvent) error
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.BuyerOrder, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerOrder, error)
	TransitionSellerOrder(ctx context.Context, t Transition) (*domain.SellerOrder, *domain.BuyerOrder, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const buyerOrderColumns = `id, buyer_id, buyer_email, lines, total, address, phone, payment_method, status, created_at, updated_at`

const sellerOrderColumns = `id, buyer_order_id, seller_id, buyer_id, buyer_email, lines, subtotal, address, phone, status, created_at, updated_at`

// PlaceOrder writes the buyer order, its seller orders and events, then
// removes the ordered lines from the buyer's cart, all in one transaction.
// A cart line that is already gone means another checkout consumed it and
// the whole order is rolled back with ErrCartChanged.
func (r *orderRepository) PlaceOrder(ctx context.Context, order *domain.BuyerOrder, sellers []*domain.SellerOrder, events []*domain.OutboxEvent) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertBuyerOrder(ctx, tx, order); err != nil {
			return err
		}

		for _, so := range sellers {
			if err := insertSellerOrder(ctx, tx, so); err != nil {
				return err
			}
		}

		if err := insertOutboxEvents(ctx, tx, events); err != nil {
			return err
		}

		for _, line := range order.Lines {
			n, err := deleteCartLine(ctx, tx, order.BuyerID, line.ProductID)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrCartChanged
			}
		}

		return nil
	})
}

// ListBuyerOrders returns every order of the buyer, newest first
func (r *orderRepository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.BuyerOrder, error) {
	query := `SELECT ` + buyerOrderColumns + ` FROM buyer_orders WHERE buyer_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyer orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.BuyerOrder{}
	for rows.Next() {
		order, err := scanBuyerOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan buyer order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buyer orders: %w", err)
	}

	return orders, nil
}

// ListSellerOrders returns every order attributed to the seller, newest first
func (r *orderRepository) ListSellerOrders(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerOrder, error) {
	query := `SELECT ` + sellerOrderColumns + ` FROM seller_orders WHERE seller_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.SellerOrder{}
	for rows.Next() {
		order, err := scanSellerOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seller order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seller orders: %w", err)
	}

	return orders, nil
}

// TransitionSellerOrder moves a pending seller order to t.To and mirrors the
// status onto the referenced buyer order if that one is still pending.
func (r *orderRepository) TransitionSellerOrder(ctx context.Context, t Transition) (*domain.SellerOrder, *domain.BuyerOrder, error) {
	var (
		seller *domain.SellerOrder
		buyer  *domain.BuyerOrder
	)

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		seller, err = scanSellerOrder(tx.QueryRowContext(ctx,
			`SELECT `+sellerOrderColumns+` FROM seller_orders WHERE id = $1 FOR UPDATE`, t.SellerOrderID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to load seller order: %w", err)
		}

		if seller.SellerID != t.SellerID {
			return ErrNotOrderSeller
		}
		if !domain.CanTransition(seller.Status, t.To) {
			return ErrInvalidTransition
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE seller_orders SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
		`, seller.ID, t.To, t.At, domain.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("failed to update seller order: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return ErrInvalidTransition
		}
		seller.Status = t.To
		seller.UpdatedAt = t.At

		buyer, err = scanBuyerOrder(tx.QueryRowContext(ctx,
			`SELECT `+buyerOrderColumns+` FROM buyer_orders WHERE id = $1 FOR UPDATE`, seller.BuyerOrderID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBuyerOrderNotFound
			}
			return fmt.Errorf("failed to load buyer order: %w", err)
		}

		if buyer.Status == domain.OrderStatusPending {
			if _, err := tx.ExecContext(ctx,
				`UPDATE buyer_orders SET status = $2, updated_at = $3 WHERE id = $1`,
				buyer.ID, t.To, t.At,
			); err != nil {
				return fmt.Errorf("failed to update buyer order: %w", err)
			}
			buyer.Status = t.To
			buyer.UpdatedAt = t.At
		}

		if t.Events == nil {
			return nil
		}
		events, err := t.Events(seller, buyer)
		if err != nil {
			return err
		}
		return insertOutboxEvents(ctx, tx, events)
	})
	if err != nil {
		return nil, nil, err
	}

	return seller, buyer, nil
}

func insertBuyerOrder(ctx context.Context, q querier, order *domain.BuyerOrder) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO buyer_orders (`+buyerOrderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		order.ID,
		order.BuyerID,
		order.BuyerEmail,
		string(lines),
		order.Total,
		order.Address,
		order.Phone,
		order.PaymentMethod,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create buyer order: %w", err)
	}

	return nil
}

func insertSellerOrder(ctx context.Context, q querier, order *domain.SellerOrder) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO seller_orders (`+sellerOrderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		order.ID,
		order.BuyerOrderID,
		order.SellerID,
		order.BuyerID,
		order.BuyerEmail,
		string(lines),
		order.Subtotal,
		order.Address,
		order.Phone,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create seller order: %w", err)
	}

	return nil
}

func scanBuyerOrder(row rowScanner) (*domain.BuyerOrder, error) {
	order := &domain.BuyerOrder{}
	var lines []byte
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.BuyerEmail,
		&lines,
		&order.Total,
		&order.Address,
		&order.Phone,
		&order.PaymentMethod,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode order lines: %w", err)
	}
	return order, nil
}

func scanSellerOrder(row rowScanner) (*domain.SellerOrder, error) {
	order := &domain.SellerOrder{}
	var lines []byte
	err := row.Scan(
		&order.ID,
		&order.BuyerOrderID,
		&order.SellerID,
		&order.BuyerID,
		&order.BuyerEmail,
		&lines,
		&order.Subtotal,
		&order.Address,
		&order.Phone,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode order lines: %w", err)
	}
	return order, nil
}
