package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*MaxPageSize within a Postgres integer OFFSET.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ProductInput is the editable part of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
}

// ProductQuery selects a page of the catalog
type ProductQuery struct {
	Category  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ProductPage is one page of products with the total match count
type ProductPage struct {
	Products   []*domain.Product `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// ProductService defines the catalog use cases
type ProductService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in ProductInput) (*domain.Product, error)
	Update(ctx context.Context, ownerID, productID uuid.UUID, in ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, ownerID, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, q ProductQuery) (*ProductPage, error)
	Search(ctx context.Context, text string, page, pageSize int) (*ProductPage, error)
	ListMine(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*ProductPage, error)
	Categories(ctx context.Context) ([]string, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	userRepo     repository.UserRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	userRepo repository.UserRepository,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
	}
}

// Create publishes a product owned by the calling seller. The seller's email
// and display name are copied onto the product.
func (s *productService) Create(ctx context.Context, ownerID uuid.UUID, in ProductInput) (*domain.Product, error) {
	in, err := normalizeProductInput(in)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seller: %w", err)
	}
	if owner.Role != domain.RoleBusiness {
		return nil, ErrForbidden
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		OwnerID:     owner.ID,
		OwnerEmail:  owner.Email,
		OwnerName:   owner.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// Update replaces the editable fields. Last write wins.
func (s *productService) Update(ctx context.Context, ownerID, productID uuid.UUID, in ProductInput) (*domain.Product, error) {
	in, err := normalizeProductInput(in)
	if err != nil {
		return nil, err
	}

	product, err := s.ownedProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Description = in.Description
	product.Price = in.Price
	product.Category = in.Category
	product.Image = in.Image
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// Delete removes the product. Cart lines holding it keep their snapshot.
func (s *productService) Delete(ctx context.Context, ownerID, productID uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, ownerID, productID); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return nil
}

func (s *productService) Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)

	products, total, err := s.productRepo.List(
		ctx,
		repository.ProductFilter{Category: strings.TrimSpace(q.Category)},
		page,
		pageSize,
		q.SortBy,
		repository.SortOrder(strings.ToUpper(q.SortOrder)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return newProductPage(products, total, page, pageSize), nil
}

func (s *productService) Search(ctx context.Context, text string, page, pageSize int) (*ProductPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	products, total, err := s.productRepo.Search(ctx, text, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	return newProductPage(products, total, page, pageSize), nil
}

// ListMine returns the caller's own products, newest first
func (s *productService) ListMine(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*ProductPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	products, total, err := s.productRepo.List(
		ctx,
		repository.ProductFilter{OwnerID: &ownerID},
		page,
		pageSize,
		"created_at",
		repository.SortOrderDesc,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller products: %w", err)
	}

	return newProductPage(products, total, page, pageSize), nil
}

// Categories merges the known picker entries with categories already in use.
// Known entries come first in their fixed order, the rest alphabetically.
func (s *productService) Categories(ctx context.Context) ([]string, error) {
	inUse, err := s.categoryRepo.ListInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	seen := make(map[string]bool, len(domain.KnownCategories)+len(inUse))
	categories := make([]string, 0, len(domain.KnownCategories)+len(inUse))
	for _, c := range domain.KnownCategories {
		seen[c] = true
		categories = append(categories, c)
	}

	var extra []string
	for _, c := range inUse {
		if !seen[c] {
			seen[c] = true
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)

	return append(categories, extra...), nil
}

func (s *productService) ownedProduct(ctx context.Context, ownerID, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	if product.OwnerID != ownerID {
		return nil, ErrNotProductOwner
	}

	return product, nil
}

func normalizeProductInput(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)

	if in.Name == "" {
		return in, invalid("name", "Name is required")
	}
	if !in.Price.IsPositive() {
		return in, invalid("price", "Price must be greater than 0")
	}
	if in.Category == "" || in.Category == "All" {
		in.Category = domain.DefaultCategory
	}

	return in, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page > MaxPage {
		page = MaxPage
	}
	return page, pageSize
}

func newProductPage(products []*domain.Product, total, page, pageSize int) *ProductPage {
	totalPages := (total + pageSize - 1) / pageSize
	return &ProductPage{
		Products:   products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
