package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(context.Background(), testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}

	if code != 0 {
		log.Fatalf("tests failed with code %d", code)
	}
}

// seedUser stores a user of the given role and returns it.
func seedUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	user := &domain.User{
		ID:           id,
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuJ0v1m3qQwQ7xM0h7nN3r1z2y3x4w5v6",
		DisplayName:  "User " + id.String()[:4],
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// seedProduct stores a product owned by seller.
func seedProduct(t *testing.T, seller *domain.User, name, price, category string) *domain.Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: "",
		Price:       decimal.RequireFromString(price),
		Category:    category,
		OwnerID:     seller.ID,
		OwnerEmail:  seller.Email,
		OwnerName:   seller.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return product
}

func TestMigrationsReachLatestVersion(t *testing.T) {
	version, err := database.MigrationVersion(context.Background(), testDB, "../../migrations")
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != 7 {
		t.Fatalf("expected schema version 7, got %d", version)
	}
}
