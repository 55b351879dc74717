package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type CreateProductRequest struct {
	Brand    string
	Name     string
	Weight   decimal.Decimal
	Price    decimal.Decimal
	Stock    int
	MinStock int
}

const productColumns = `id, brand, name, weight, price, stock, min_stock, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.Brand,
		&product.Name,
		&product.Weight,
		&product.Price,
		&product.Stock,
		&product.MinStock,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	query := `
		INSERT INTO products (brand, name, weight, price, stock, min_stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		req.Brand, req.Name, req.Weight, req.Price, req.Stock, req.MinStock))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.NotFoundf("product %d not found", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY brand, name, id
		LIMIT $1 OFFSET $2`

	products, err := queryProducts(ctx, db, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}

// ListLowStockProducts returns products at or below their reorder threshold,
// optionally restricted to one brand.
func ListLowStockProducts(ctx context.Context, db *sql.DB, brand string) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE stock <= min_stock
		  AND ($1 = '' OR brand = $1)
		ORDER BY brand, name, id`

	products, err := queryProducts(ctx, db, query, brand)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}

	return products, nil
}

func queryProducts(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// IncrementStock adds quantity to a product's stock and reports the change.
func IncrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (models.StockUpdate, error) {
	update := models.StockUpdate{ProductID: productID, AddedQuantity: quantity}

	err := tx.QueryRowContext(ctx,
		`UPDATE products
		 SET stock = stock + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING name, stock`,
		quantity, productID).Scan(&update.ProductName, &update.NewStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return update, ledger.NotFoundf("product %d not found", productID)
		}
		return update, fmt.Errorf("increment stock: %w", err)
	}

	update.PreviousStock = update.NewStock - quantity
	return update, nil
}
