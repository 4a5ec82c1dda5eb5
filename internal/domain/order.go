package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethodCOD is the only payment method offered at checkout.
const PaymentMethodCOD = "pay on delivery"

// OrderStatus is the lifecycle state shared by buyer and seller orders.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusCompleted: true, OrderStatusCancelled: true},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
// Completed and cancelled are terminal.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderLine is an immutable snapshot of a cart line taken at checkout.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	SellerRef
}

// BuyerOrder is the aggregate order recorded for the buyer.
type BuyerOrder struct {
	ID            uuid.UUID       `json:"id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	BuyerEmail    string          `json:"buyer_email"`
	Lines         []OrderLine     `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Address       string          `json:"address"`
	Phone         string          `json:"phone"`
	PaymentMethod string          `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SellerOrder is the part of a BuyerOrder attributed to one seller.
type SellerOrder struct {
	ID           uuid.UUID       `json:"id"`
	BuyerOrderID uuid.UUID       `json:"buyer_order_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	BuyerID      uuid.UUID       `json:"buyer_id"`
	BuyerEmail   string          `json:"buyer_email"`
	Lines        []OrderLine     `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Address      string          `json:"address"`
	Phone        string          `json:"phone"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SnapshotLines converts cart lines into order lines, keeping cart order.
func SnapshotLines(lines []*CartLine) []OrderLine {
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLine{
			ProductID: l.ID,
			Name:      l.Name,
			Price:     l.Price,
			SellerRef: l.SellerRef,
		})
	}
	return out
}

// LinesTotal sums line prices.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return total
}

// SplitBySeller builds one pending SellerOrder per distinct seller in order.
// Sellers appear in the order their first line appears.
func SplitBySeller(order *BuyerOrder, newID func() uuid.UUID) []*SellerOrder {
	bySeller := make(map[uuid.UUID]*SellerOrder)
	var out []*SellerOrder

	for _, line := range order.Lines {
		so, ok := bySeller[line.SellerID]
		if !ok {
			so = &SellerOrder{
				ID:           newID(),
				BuyerOrderID: order.ID,
				SellerID:     line.SellerID,
				BuyerID:      order.BuyerID,
				BuyerEmail:   order.BuyerEmail,
				Subtotal:     decimal.Zero,
				Address:      order.Address,
				Phone:        order.Phone,
				Status:       OrderStatusPending,
				CreatedAt:    order.CreatedAt,
				UpdatedAt:    order.CreatedAt,
			}
			bySeller[line.SellerID] = so
			out = append(out, so)
		}
		so.Lines = append(so.Lines, line)
		so.Subtotal = so.Subtotal.Add(line.Price)
	}

	return out
}

// OrderView is the ongoing/history split shown to a buyer or seller.
type OrderView[T any] struct {
	Ongoing []T `json:"ongoing"`
	History []T `json:"history"`
}

// Project sorts orders newest first and splits them by status: pending is
// ongoing, anything else is history.
func Project[T any](orders []T, status func(T) OrderStatus, created func(T) time.Time) OrderView[T] {
	sorted := make([]T, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return created(sorted[i]).After(created(sorted[j]))
	})

	view := OrderView[T]{Ongoing: []T{}, History: []T{}}
	for _, o := range sorted {
		if status(o) == OrderStatusPending {
			view.Ongoing = append(view.Ongoing, o)
		} else {
			view.History = append(view.History, o)
		}
	}
	return view
}

// ProjectBuyerOrders is Project specialised for buyer orders.
func ProjectBuyerOrders(orders []*BuyerOrder) OrderView[*BuyerOrder] {
	return Project(orders,
		func(o *BuyerOrder) OrderStatus { return o.Status },
		func(o *BuyerOrder) time.Time { return o.CreatedAt },
	)
}

// ProjectSellerOrders is Project specialised for seller orders.
func ProjectSellerOrders(orders []*SellerOrder) OrderView[*SellerOrder] {
	return Project(orders,
		func(o *SellerOrder) OrderStatus { return o.Status },
		func(o *SellerOrder) time.Time { return o.CreatedAt },
	)
}
