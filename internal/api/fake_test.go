package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/models"
	"github.com/safar/koloa-ledger/internal/store"
)

var errBackendDown = errors.New("connection refused")

// fakeBackend keeps everything in memory and applies the ledger rules the
// same way the Postgres store does.
type fakeBackend struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	products map[int64]*models.Product
	orders   map[int64]*models.Order
	nextID   int64
	seq      int
	down     bool

	lastFilter store.OrderFilter
	lastLimit  int
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{
		users:    map[int64]*models.User{},
		products: map[int64]*models.Product{},
		orders:   map[int64]*models.Order{},
		nextID:   100,
	}
	f.users[1] = &models.User{ID: 1, Name: "Kai", Role: models.RoleAdmin}
	f.users[2] = &models.User{ID: 2, Name: "Leilani", Role: models.RoleStaff}
	f.products[10] = &models.Product{ID: 10, Brand: "Al Fakher", Name: "Double Apple", Price: decimal.RequireFromString("12.50"), Stock: 4, MinStock: 5}
	f.products[11] = &models.Product{ID: 11, Brand: "Al Fakher", Name: "Mint", Price: decimal.RequireFromString("11.00"), Stock: 9, MinStock: 2}
	f.products[12] = &models.Product{ID: 12, Brand: "Starbuzz", Name: "Blue Mist", Price: decimal.RequireFromString("18.00"), Stock: 0, MinStock: 1}
	return f
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) Ping(context.Context) error {
	if f.down {
		return errBackendDown
	}
	return nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, req store.CreateOrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errBackendDown
	}

	if err := ledger.CheckOrderKind(req.Type, req.Brand); err != nil {
		return nil, err
	}
	for _, line := range req.Items {
		if _, ok := f.products[line.ProductID]; !ok {
			return nil, ledger.ProductNotFound(line.ProductID)
		}
	}
	lines, err := ledger.KeepPositive(req.Items)
	if err != nil {
		return nil, err
	}

	f.seq++
	order := &models.Order{
		ID:          f.id(),
		OrderNumber: ledger.FormatOrderNumber(2026, f.seq),
		Type:        req.Type,
		Status:      models.OrderStatusPending,
		Notes:       ledger.AppendNotes("", req.Notes),
		UserID:      req.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if req.Type == models.OrderTypeBrand {
		brand := req.Brand
		order.Brand = &brand
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:              f.id(),
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			QuantityOrdered: line.Quantity,
			PriceAtTime:     f.products[line.ProductID].Price,
			Status:          models.ItemStatusPending,
		})
	}
	order.TotalItems, order.TotalPrice = ledger.Totals(order.Items)
	f.orders[order.ID] = order
	return copyOrder(order), nil
}

func (f *fakeBackend) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errBackendDown
	}
	order, ok := f.orders[id]
	if !ok {
		return nil, ledger.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (f *fakeBackend) ListOrders(_ context.Context, filter store.OrderFilter, cursor string, limit int) (*store.CursorPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, err
	}
	f.lastFilter = filter
	f.lastLimit = limit

	orders := []models.Order{}
	for _, order := range f.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		orders = append(orders, *copyOrder(order))
	}
	return &store.CursorPage{Items: orders}, nil
}

func (f *fakeBackend) ConfirmOrder(_ context.Context, orderID int64, notes string) (*models.Order, []models.StockUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil, ledger.ErrOrderNotFound
	}
	added, err := ledger.Confirm(order, notes, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	updates := make([]models.StockUpdate, 0, len(order.Items))
	for i, item := range order.Items {
		updates = append(updates, f.addStock(item.ProductID, added[i]))
	}
	return copyOrder(order), updates, nil
}

func (f *fakeBackend) ReceiveOrderItem(_ context.Context, orderID, itemID int64, quantity int, notes string) (*models.OrderItem, *models.Order, *models.StockUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil, nil, ledger.ErrOrderNotFound
	}
	item, err := ledger.Receive(order, itemID, quantity, notes, time.Now().UTC())
	if err != nil {
		return nil, nil, nil, err
	}
	update := f.addStock(item.ProductID, quantity)
	out := copyOrder(order)
	return out.Item(itemID), out, &update, nil
}

func (f *fakeBackend) CancelOrder(_ context.Context, orderID int64, reason string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, ledger.ErrOrderNotFound
	}
	if err := ledger.Cancel(order, reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	return copyOrder(order), nil
}

func (f *fakeBackend) addStock(productID int64, quantity int) models.StockUpdate {
	product := f.products[productID]
	update := models.StockUpdate{
		ProductID:     product.ID,
		ProductName:   product.Name,
		PreviousStock: product.Stock,
		AddedQuantity: quantity,
	}
	product.Stock += quantity
	update.NewStock = product.Stock
	return update
}

func (f *fakeBackend) CreateProduct(_ context.Context, req store.CreateProductRequest) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product := &models.Product{
		ID:       f.id(),
		Brand:    req.Brand,
		Name:     req.Name,
		Weight:   req.Weight,
		Price:    req.Price,
		Stock:    req.Stock,
		MinStock: req.MinStock,
	}
	f.products[product.ID] = product
	out := *product
	return &out, nil
}

func (f *fakeBackend) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return nil, ledger.NotFoundf("product %d not found", id)
	}
	out := *product
	return &out, nil
}

func (f *fakeBackend) ListProducts(_ context.Context, page, pageSize int) (*store.OffsetPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := make([]models.Product, 0, len(f.products))
	for _, product := range f.products {
		products = append(products, *product)
	}
	return store.NewOffsetPage(products, int64(len(products)), page, pageSize), nil
}

func (f *fakeBackend) ListLowStockProducts(_ context.Context, brand string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := []models.Product{}
	for _, product := range f.products {
		if product.Stock <= product.MinStock && (brand == "" || product.Brand == brand) {
			products = append(products, *product)
		}
	}
	return products, nil
}

func (f *fakeBackend) CreateUser(_ context.Context, name, role string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &models.User{ID: f.id(), Name: name, Role: role}
	f.users[user.ID] = user
	out := *user
	return &out, nil
}

func (f *fakeBackend) GetUser(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, ledger.NotFoundf("user %d not found", id)
	}
	out := *user
	return &out, nil
}

func (f *fakeBackend) ListUsers(_ context.Context, page, pageSize int) (*store.OffsetPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, *user)
	}
	return store.NewOffsetPage(users, int64(len(users)), page, pageSize), nil
}

func copyOrder(order *models.Order) *models.Order {
	out := *order
	out.Items = append([]models.OrderItem(nil), order.Items...)
	return &out
}
