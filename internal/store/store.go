package store

import (
	"context"
	"database/sql"

	"github.com/safar/koloa-ledger/internal/models"
)

// Store binds the package functions to one connection pool so they can be
// handed to the HTTP layer as an interface.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	return CreateOrder(ctx, s.db, req)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, s.db, id)
}

func (s *Store) ListOrders(ctx context.Context, filter OrderFilter, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, s.db, filter, cursor, limit)
}

func (s *Store) ConfirmOrder(ctx context.Context, orderID int64, notes string) (*models.Order, []models.StockUpdate, error) {
	return ConfirmOrder(ctx, s.db, orderID, notes)
}

func (s *Store) ReceiveOrderItem(ctx context.Context, orderID, itemID int64, quantity int, notes string) (*models.OrderItem, *models.Order, *models.StockUpdate, error) {
	return ReceiveOrderItem(ctx, s.db, orderID, itemID, quantity, notes)
}

func (s *Store) CancelOrder(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	return CancelOrder(ctx, s.db, orderID, reason)
}

func (s *Store) CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	return CreateProduct(ctx, s.db, req)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, s.db, id)
}

func (s *Store) ListProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, s.db, page, pageSize)
}

func (s *Store) ListLowStockProducts(ctx context.Context, brand string) ([]models.Product, error) {
	return ListLowStockProducts(ctx, s.db, brand)
}

func (s *Store) CreateUser(ctx context.Context, name, role string) (*models.User, error) {
	return CreateUser(ctx, s.db, name, role)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return GetUser(ctx, s.db, id)
}

func (s *Store) ListUsers(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListUsers(ctx, s.db, page, pageSize)
}
