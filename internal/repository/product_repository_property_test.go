package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Feature: marketplace, Property 10: Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	seller := seedUser(t, domain.RoleBusiness)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, cents int64, category string, image string) bool {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)

			product := &domain.Product{
				ID:          uuid.New(),
				Name:        name,
				Description: description,
				Price:       decimal.New(cents, -2),
				Category:    category,
				Image:       image,
				OwnerID:     seller.ID,
				OwnerEmail:  seller.Email,
				OwnerName:   seller.DisplayName,
				CreatedAt:   now,
				UpdatedAt:   now,
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.Description != product.Description {
				t.Logf("FAIL: text mismatch. Expected %q/%q, got %q/%q", product.Name, product.Description, retrieved.Name, retrieved.Description)
				return false
			}

			if !retrieved.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
				return false
			}

			if retrieved.Category != product.Category || retrieved.Image != product.Image {
				t.Logf("FAIL: Category/Image mismatch")
				return false
			}

			if retrieved.Seller() != product.Seller() {
				t.Logf("FAIL: Owner mismatch. Expected %+v, got %+v", product.Seller(), retrieved.Seller())
				return false
			}

			return !retrieved.CreatedAt.IsZero()
		},
		gen.RegexMatch(`[A-Za-z][A-Za-z0-9 ]{0,30}`),
		gen.AlphaString(),
		gen.Int64Range(1, 10_000_000),
		gen.OneConstOf("Accessories", "Clothes", "Art", "Other", "Garden"),
		gen.RegexMatch(`(https://img\.example\.com/[a-z0-9]{4,12}\.png)?`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: marketplace, Property 11: Product updates keep ownership
func TestProperty_ProductUpdateKeepsOwner(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	seller := seedUser(t, domain.RoleBusiness)
	intruder := seedUser(t, domain.RoleBusiness)

	properties := gopter.NewProperties(nil)

	properties.Property("update replaces editable fields but never the owner", prop.ForAll(
		func(newName string, cents int64) bool {
			ctx := context.Background()
			product := seedProduct(t, seller, "Original", "10.00", "Art")

			update := *product
			update.Name = newName
			update.Price = decimal.New(cents, -2)
			update.OwnerID = intruder.ID
			update.OwnerEmail = intruder.Email
			update.UpdatedAt = time.Now().UTC()

			if err := productRepo.Update(ctx, &update); err != nil {
				t.Logf("FAIL: update failed: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				return false
			}

			return retrieved.Name == newName &&
				retrieved.Price.Equal(update.Price) &&
				retrieved.OwnerID == seller.ID &&
				retrieved.OwnerEmail == seller.Email
		},
		gen.RegexMatch(`[A-Z][a-z]{2,20}`),
		gen.Int64Range(1, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_MissingProduct(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("FindByID: expected ErrProductNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Delete: expected ErrProductNotFound, got %v", err)
	}
	if err := repo.Update(ctx, &domain.Product{ID: uuid.New(), Price: decimal.NewFromInt(1)}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Update: expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_ListFilters(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	seller := seedUser(t, domain.RoleBusiness)
	other := seedUser(t, domain.RoleBusiness)
	category := "Filter-" + uuid.NewString()[:8]

	seedProduct(t, seller, "Cheap", "5.00", category)
	seedProduct(t, seller, "Pricey", "50.00", category)
	seedProduct(t, other, "Elsewhere", "7.00", category)

	byCategory, total, err := repo.List(ctx, ProductFilter{Category: category}, 1, 10, "price", SortOrderAsc)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 || len(byCategory) != 3 {
		t.Fatalf("Expected 3 products in category, got total=%d len=%d", total, len(byCategory))
	}
	if byCategory[0].Name != "Cheap" || byCategory[2].Name != "Pricey" {
		t.Errorf("Expected ascending price order, got %s..%s", byCategory[0].Name, byCategory[2].Name)
	}

	mine, total, err := repo.List(ctx, ProductFilter{Category: category, OwnerID: &seller.ID}, 1, 10, "name", SortOrderAsc)
	if err != nil {
		t.Fatalf("List by owner failed: %v", err)
	}
	if total != 2 || len(mine) != 2 {
		t.Fatalf("Expected 2 products for owner, got total=%d len=%d", total, len(mine))
	}
	for _, p := range mine {
		if p.OwnerID != seller.ID {
			t.Errorf("Product %s belongs to %s", p.Name, p.OwnerID)
		}
	}

	page2, _, err := repo.List(ctx, ProductFilter{Category: category}, 2, 2, "price", SortOrderAsc)
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if len(page2) != 1 || page2[0].Name != "Pricey" {
		t.Errorf("Expected last page to hold only Pricey, got %d items", len(page2))
	}
}

func TestProductRepository_Search(t *testing.T) {
	repo := NewProductRepository(testDB)
	seller := seedUser(t, domain.RoleBusiness)
	marker := "zq" + uuid.NewString()[:6]

	seedProduct(t, seller, "Lamp "+marker, "20.00", "Other")
	seedProduct(t, seller, "Chair", "30.00", "Other")

	found, total, err := repo.Search(context.Background(), marker, 1, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || len(found) != 1 || found[0].Name != "Lamp "+marker {
		t.Fatalf("Expected exactly the lamp, got total=%d", total)
	}
}

func TestCategoryRepository_ListInUse(t *testing.T) {
	seller := seedUser(t, domain.RoleBusiness)
	custom := "Custom-" + uuid.NewString()[:8]
	seedProduct(t, seller, "Vase", "12.00", custom)
	seedProduct(t, seller, "Jar", "8.00", custom)

	categories, err := NewCategoryRepository(testDB).ListInUse(context.Background())
	if err != nil {
		t.Fatalf("ListInUse failed: %v", err)
	}

	count := 0
	for _, c := range categories {
		if c == custom {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected %s exactly once, got %d", custom, count)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	cases := []struct{ in, want string }{
		{"lamp", `%lamp%`},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, c := range cases {
		if got := likePattern(c.in); got != c.want {
			t.Errorf("likePattern(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConditionsNumberPlaceholders(t *testing.T) {
	var where conditions
	if clause, args := where.sql(); clause != "" || args != nil {
		t.Fatalf("empty conditions should render nothing, got %q %v", clause, args)
	}

	where.add("category = ?", "Art")
	where.add("(name ILIKE ? OR description ILIKE ?)", "%x%")

	clause, args := where.sql()
	if clause != "WHERE category = $1 AND (name ILIKE $2 OR description ILIKE $2)" {
		t.Errorf("unexpected clause %q", clause)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}
