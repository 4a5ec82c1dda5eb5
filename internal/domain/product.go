package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned when a product is posted without one.
const DefaultCategory = "Other"

// KnownCategories is the category picker offered to sellers.
var KnownCategories = []string{"All", "Accessories", "Clothes", "Art", "Other"}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Image       string          `json:"image" db:"image"`
	OwnerID     uuid.UUID       `json:"owner_id" db:"owner_id"`
	OwnerEmail  string          `json:"owner_email" db:"owner_email"`
	OwnerName   string          `json:"owner_name" db:"owner_name"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// SellerRef is the denormalized seller identity carried by cart and order lines.
type SellerRef struct {
	SellerID    uuid.UUID `json:"seller_id"`
	SellerEmail string    `json:"seller_email"`
	SellerName  string    `json:"seller_name"`
}

// Seller returns the product owner as a SellerRef.
func (p *Product) Seller() SellerRef {
	return SellerRef{SellerID: p.OwnerID, SellerEmail: p.OwnerEmail, SellerName: p.OwnerName}
}
