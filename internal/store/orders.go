package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/safar/koloa-ledger/internal/database"
	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/models"
)

type CreateOrderRequest struct {
	UserID int64
	Type   string
	Brand  string
	Notes  string
	Items  []ledger.LineRequest
}

type OrderFilter struct {
	Status string
	Type   string
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now is replaced in tests that need fixed timestamps.
var now = func() time.Time { return time.Now().UTC() }

const orderColumns = `id, order_number, type, brand, status, total_items, total_price, notes, user_id,
	created_at, updated_at, completed_at, version`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Type,
		&order.Brand,
		&order.Status,
		&order.TotalItems,
		&order.TotalPrice,
		&order.Notes,
		&order.UserID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.CompletedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if err := ledger.CheckOrderKind(req.Type, req.Brand); err != nil {
		return nil, err
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.LedgerTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return ledger.Validationf("user %d not found", req.UserID)
		}

		ids := make([]int64, 0, len(req.Items))
		for _, item := range req.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := productsByID(ctx, tx, ids, false)
		if err != nil {
			return err
		}
		for _, item := range req.Items {
			if _, ok := products[item.ProductID]; !ok {
				return ledger.ProductNotFound(item.ProductID)
			}
		}

		lines, err := ledger.KeepPositive(req.Items)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.OrderItem{
				ProductID:       line.ProductID,
				QuantityOrdered: line.Quantity,
				PriceAtTime:     products[line.ProductID].Price,
				Status:          models.ItemStatusPending,
			})
		}
		totalItems, totalPrice := ledger.Totals(items)

		createdAt := now()
		orderNumber, err := nextOrderNumber(ctx, tx, createdAt.Year())
		if err != nil {
			return err
		}

		var brand *string
		if req.Type == models.OrderTypeBrand {
			brand = &req.Brand
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, type, brand, status, total_items, total_price, notes, user_id,
			                     created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, 1)
			 RETURNING id`,
			orderNumber, req.Type, brand, models.OrderStatusPending, totalItems, totalPrice,
			ledger.AppendNotes("", req.Notes), req.UserID, createdAt).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity_ordered, quantity_received, price_at_time,
				                          status, notes, created_at, updated_at)
				 VALUES ($1, $2, $3, 0, $4, $5, '', $6, $6)`,
				orderID, item.ProductID, item.QuantityOrdered, item.PriceAtTime, item.Status, createdAt)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		order, err = getOrder(ctx, tx, orderID, false)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id, false)
}

// ConfirmOrder receives everything still outstanding on the order and
// returns one stock update per line, index-aligned with the order's lines.
func ConfirmOrder(ctx context.Context, db *sql.DB, orderID int64, notes string) (*models.Order, []models.StockUpdate, error) {
	var (
		order   *models.Order
		updates []models.StockUpdate
	)

	err := database.WithRetry(ctx, db, database.LedgerTxOptions(), func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}

		added, err := ledger.Confirm(current, notes, now())
		if err != nil {
			return err
		}

		products, err := productsByID(ctx, tx, current.ProductIDs(), true)
		if err != nil {
			return err
		}

		updates = make([]models.StockUpdate, 0, len(current.Items))
		for i := range current.Items {
			item := &current.Items[i]
			if added[i] == 0 {
				product := products[item.ProductID]
				updates = append(updates, models.StockUpdate{
					ProductID:     product.ID,
					ProductName:   product.Name,
					PreviousStock: product.Stock,
					NewStock:      product.Stock,
				})
				continue
			}

			update, err := IncrementStock(ctx, tx, item.ProductID, added[i])
			if err != nil {
				return err
			}
			if p, ok := products[item.ProductID]; ok {
				p.Stock = update.NewStock
			}
			updates = append(updates, update)

			if err := updateOrderItem(ctx, tx, item); err != nil {
				return err
			}
		}

		if err := updateOrder(ctx, tx, current); err != nil {
			return err
		}

		order, err = getOrder(ctx, tx, orderID, false)
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	return order, updates, nil
}

// ReceiveOrderItem records quantity more units arriving for one line.
func ReceiveOrderItem(ctx context.Context, db *sql.DB, orderID, itemID int64, quantity int, notes string) (*models.OrderItem, *models.Order, *models.StockUpdate, error) {
	if quantity <= 0 {
		return nil, nil, nil, ledger.ErrInvalidQuantity
	}

	var (
		order  *models.Order
		item   *models.OrderItem
		update models.StockUpdate
	)

	err := database.WithRetry(ctx, db, database.LedgerTxOptions(), func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}

		received, err := ledger.Receive(current, itemID, quantity, notes, now())
		if err != nil {
			return err
		}

		if _, err := productsByID(ctx, tx, []int64{received.ProductID}, true); err != nil {
			return err
		}

		update, err = IncrementStock(ctx, tx, received.ProductID, quantity)
		if err != nil {
			return err
		}

		if err := updateOrderItem(ctx, tx, received); err != nil {
			return err
		}
		if err := updateOrder(ctx, tx, current); err != nil {
			return err
		}

		order, err = getOrder(ctx, tx, orderID, false)
		if err != nil {
			return err
		}
		item = order.Item(itemID)
		return nil
	})

	if err != nil {
		return nil, nil, nil, err
	}

	return item, order, &update, nil
}

// CancelOrder cancels a pending order. Stock and lines are not touched.
func CancelOrder(ctx context.Context, db *sql.DB, orderID int64, reason string) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.LedgerTxOptions(), func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}

		if err := ledger.Cancel(current, reason, now()); err != nil {
			return err
		}

		if err := updateOrder(ctx, tx, current); err != nil {
			return err
		}

		order, err = getOrder(ctx, tx, orderID, false)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, filter OrderFilter, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR type = $2)
		  AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`

	rows, err := db.QueryContext(ctx, query, filter.Status, filter.Type, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// getOrder loads an order with its lines. With forUpdate the order row and
// its line rows stay locked until the transaction ends.
func getOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := orderItems(ctx, q, []int64{id}, forUpdate)
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

func attachItems(ctx context.Context, q querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := orderItems(ctx, q, ids, false)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return nil
}

func orderItems(ctx context.Context, q querier, orderIDs []int64, forUpdate bool) (map[int64][]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity_ordered, oi.quantity_received, oi.price_at_time,
		       oi.status, oi.received_at, oi.notes, oi.created_at, oi.updated_at,
		       p.id, p.brand, p.name, p.price, p.stock
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`
	if forUpdate {
		query += ` FOR UPDATE OF oi`
	}

	rows, err := q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		snapshot := &models.ProductSnapshot{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.QuantityOrdered,
			&item.QuantityReceived,
			&item.PriceAtTime,
			&item.Status,
			&item.ReceivedAt,
			&item.Notes,
			&item.CreatedAt,
			&item.UpdatedAt,
			&snapshot.ID,
			&snapshot.Brand,
			&snapshot.Name,
			&snapshot.Price,
			&snapshot.Stock,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Product = snapshot
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// productsByID reads the given products keyed by id. With forUpdate the rows
// are locked in ascending id order. Missing ids are absent from the map.
func productsByID(ctx context.Context, tx *sql.Tx, ids []int64, forUpdate bool) (map[int64]*models.Product, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := tx.QueryContext(ctx, query, pq.Array(unique))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(unique))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func updateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1,
		     notes = $2,
		     completed_at = $3,
		     updated_at = $4,
		     version = version + 1
		 WHERE id = $5`,
		order.Status, order.Notes, order.CompletedAt, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func updateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE order_items
		 SET quantity_received = $1,
		     status = $2,
		     received_at = $3,
		     notes = $4,
		     updated_at = $5
		 WHERE id = $6 AND order_id = $7`,
		item.QuantityReceived, item.Status, item.ReceivedAt, item.Notes, item.UpdatedAt, item.ID, item.OrderID)
	if err != nil {
		return fmt.Errorf("update order item: %w", err)
	}
	return nil
}
