//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/koloa-ledger/internal/database"
	"github.com/safar/koloa-ledger/internal/models"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, "../../migrations", "up"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

type fixture struct {
	user     *models.User
	products []*models.Product
}

// seed creates one staff user and a product per stock level, priced 10, 20, ...
func seed(t *testing.T, db *sql.DB, stocks ...int) fixture {
	t.Helper()
	ctx := context.Background()

	user, err := CreateUser(ctx, db, "Leilani", models.RoleStaff)
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	f := fixture{user: user}
	for i, stock := range stocks {
		product, err := CreateProduct(ctx, db, CreateProductRequest{
			Brand:    "Al Fakher",
			Name:     fmt.Sprintf("Flavour %d", i+1),
			Weight:   decimal.NewFromInt(250),
			Price:    decimal.NewFromInt(int64(10 * (i + 1))),
			Stock:    stock,
			MinStock: 2,
		})
		if err != nil {
			t.Fatalf("Create product %d: %v", i, err)
		}
		f.products = append(f.products, product)
	}
	return f
}

func stockOf(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()
	product, err := GetProduct(context.Background(), db, id)
	if err != nil {
		t.Fatalf("Get product %d: %v", id, err)
	}
	return product.Stock
}
