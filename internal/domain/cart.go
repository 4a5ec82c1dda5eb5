package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one product in a buyer's cart. Its ID is the product ID, so a
// buyer holds at most one line per product.
type CartLine struct {
	ID        uuid.UUID       `json:"id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	SellerRef                 // seller_id, seller_email, seller_name
	CreatedAt time.Time       `json:"created_at"`
}

// NewCartLine snapshots product p for buyerID.
func NewCartLine(buyerID uuid.UUID, p *Product, now time.Time) *CartLine {
	return &CartLine{
		ID:        p.ID,
		BuyerID:   buyerID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		SellerRef: p.Seller(),
		CreatedAt: now,
	}
}

// CartTotal sums line prices.
func CartTotal(lines []*CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return total
}
