package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the buyer's cart with its running total
type Cart struct {
	Lines []*domain.CartLine `json:"lines"`
	Total decimal.Decimal    `json:"total"`
}

// CartService defines the cart use cases
type CartService interface {
	Add(ctx context.Context, buyerID, productID uuid.UUID) (*domain.CartLine, error)
	Remove(ctx context.Context, buyerID, productID uuid.UUID) error
	Get(ctx context.Context, buyerID uuid.UUID) (*Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo}
}

// Add snapshots the product into the cart. Adding the same product again
// refreshes the snapshot rather than adding a second line.
func (s *cartService) Add(ctx context.Context, buyerID, productID uuid.UUID) (*domain.CartLine, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	line := domain.NewCartLine(buyerID, product, time.Now())
	if err := s.cartRepo.Upsert(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return line, nil
}

func (s *cartService) Remove(ctx context.Context, buyerID, productID uuid.UUID) error {
	if err := s.cartRepo.Delete(ctx, buyerID, productID); err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove from cart: %w", err)
	}
	return nil
}

func (s *cartService) Get(ctx context.Context, buyerID uuid.UUID) (*Cart, error) {
	lines, err := s.cartRepo.List(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &Cart{Lines: lines, Total: domain.CartTotal(lines)}, nil
}
