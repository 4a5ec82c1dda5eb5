package service

import (
	"context"
	"math"
	"testing"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductFixture() (ProductService, *mockProductRepository, *mockUserRepository) {
	products := newMockProductRepository()
	users := newMockUserRepository()
	return NewProductService(products, &mockCategoryRepository{products: products}, users), products, users
}

// Feature: marketplace, Property 12: Only the owner may change a product
func TestProperty_OnlyOwnerMayChangeProduct(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("updates and deletes by another seller are forbidden and change nothing", prop.ForAll(
		func(name string, cents int64, newCents int64) bool {
			svc, products, users := newProductFixture()
			ctx := context.Background()
			owner := users.add("owner@example.com", "Owner", domain.RoleBusiness)
			other := users.add("other@example.com", "Other", domain.RoleBusiness)

			product, err := svc.Create(ctx, owner.ID, ProductInput{Name: name, Price: decimal.New(cents, -2)})
			if err != nil {
				t.Logf("FAIL: create failed: %v", err)
				return false
			}

			_, err = svc.Update(ctx, other.ID, product.ID, ProductInput{Name: "Stolen", Price: decimal.New(newCents, -2)})
			if err != ErrNotProductOwner {
				t.Logf("FAIL: expected ErrNotProductOwner on update, got %v", err)
				return false
			}

			if err := svc.Delete(ctx, other.ID, product.ID); err != ErrNotProductOwner {
				t.Logf("FAIL: expected ErrNotProductOwner on delete, got %v", err)
				return false
			}

			stored := products.products[product.ID]
			return stored != nil && stored.Name == product.Name && stored.Price.Equal(decimal.New(cents, -2))
		},
		gen.RegexMatch(`[A-Z][a-z]{2,20}`),
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateProductDefaultsAndValidation(t *testing.T) {
	svc, _, users := newProductFixture()
	ctx := context.Background()
	seller := users.add("shop@example.com", "Corner Shop", domain.RoleBusiness)
	buyer := users.add("buyer@example.com", "Buyer", domain.RoleClient)

	product, err := svc.Create(ctx, seller.ID, ProductInput{Name: "  Mug ", Price: decimal.RequireFromString("7.50")})
	require.NoError(t, err)
	assert.Equal(t, "Mug", product.Name)
	assert.Equal(t, domain.DefaultCategory, product.Category)
	assert.Equal(t, seller.Email, product.OwnerEmail)
	assert.Equal(t, "Corner Shop", product.OwnerName)

	var verr *ValidationError
	_, err = svc.Create(ctx, seller.ID, ProductInput{Name: " ", Price: decimal.NewFromInt(1)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.Create(ctx, seller.ID, ProductInput{Name: "Free", Price: decimal.Zero})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price", verr.Field)

	_, err = svc.Create(ctx, buyer.ID, ProductInput{Name: "Nope", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateAndDeleteByOwner(t *testing.T) {
	svc, products, users := newProductFixture()
	ctx := context.Background()
	seller := users.add("shop@example.com", "Shop", domain.RoleBusiness)

	product, err := svc.Create(ctx, seller.ID, ProductInput{Name: "Lamp", Price: decimal.NewFromInt(20), Category: "Other"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, seller.ID, product.ID, ProductInput{Name: "Desk lamp", Price: decimal.NewFromInt(25), Category: "Art"})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", updated.Name)
	assert.Equal(t, "Art", products.products[product.ID].Category)

	require.NoError(t, svc.Delete(ctx, seller.ID, product.ID))
	_, err = svc.Get(ctx, product.ID)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestCategoriesMergeKnownAndInUse(t *testing.T) {
	svc, _, users := newProductFixture()
	ctx := context.Background()
	seller := users.add("shop@example.com", "Shop", domain.RoleBusiness)

	for _, c := range []string{"Garden", "Art", "Books"} {
		_, err := svc.Create(ctx, seller.ID, ProductInput{Name: "Thing", Price: decimal.NewFromInt(1), Category: c})
		require.NoError(t, err)
	}

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Accessories", "Clothes", "Art", "Other", "Books", "Garden"}, categories)
}

func TestListMineOnlyReturnsOwnProducts(t *testing.T) {
	svc, _, users := newProductFixture()
	ctx := context.Background()
	a := users.add("a@example.com", "A", domain.RoleBusiness)
	b := users.add("b@example.com", "B", domain.RoleBusiness)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, a.ID, ProductInput{Name: "A item", Price: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, b.ID, ProductInput{Name: "B item", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	page, err := svc.ListMine(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	for _, p := range page.Products {
		assert.Equal(t, a.ID, p.OwnerID)
	}
}

func TestListClampsHugePage(t *testing.T) {
	svc, _, users := newProductFixture()
	ctx := context.Background()
	owner := users.add("owner@example.com", "Owner", domain.RoleBusiness)
	_, err := svc.Create(ctx, owner.ID, ProductInput{Name: "Lamp", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)

	page, err := svc.ListMine(ctx, owner.ID, math.MaxInt, MaxPageSize)
	require.NoError(t, err)
	assert.Equal(t, MaxPage, page.Page)
	assert.Equal(t, 1, page.Total)
	assert.Empty(t, page.Products)
}

func TestNormalizePageBounds(t *testing.T) {
	page, size := normalizePage(math.MaxInt, math.MaxInt)
	assert.Equal(t, MaxPage, page)
	assert.Equal(t, MaxPageSize, size)
	assert.LessOrEqual(t, int64(page-1)*int64(size), int64(math.MaxInt32))

	page, size = normalizePage(-3, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)
}
