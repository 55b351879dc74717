// Package ledger holds the restock order rules: which lines an order keeps,
// how line and order statuses follow from received quantities, and which
// transitions each status allows. It does no I/O; internal/store applies
// these rules inside a transaction.
package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/safar/koloa-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds every stored quantity and total; the columns are
// 32-bit integers.
const MaxQuantity = math.MaxInt32

type LineRequest struct {
	ProductID int64
	Quantity  int
}

// CheckOrderKind validates the order type and the brand it requires.
func CheckOrderKind(orderType, brand string) error {
	switch orderType {
	case models.OrderTypeGeneral:
		return nil
	case models.OrderTypeBrand:
		if strings.TrimSpace(brand) == "" {
			return Validationf("brand is required for brand orders")
		}
		return nil
	default:
		return Validationf("order type must be %q or %q", models.OrderTypeGeneral, models.OrderTypeBrand)
	}
}

// KeepPositive drops lines with a quantity of zero or less. It fails when
// nothing is left or when a line or the order total exceeds MaxQuantity.
func KeepPositive(lines []LineRequest) ([]LineRequest, error) {
	kept := make([]LineRequest, 0, len(lines))
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if line.Quantity > MaxQuantity {
			return nil, Validationf("quantity for product %d must be at most %d", line.ProductID, MaxQuantity)
		}
		total += line.Quantity
		if total > MaxQuantity {
			return nil, Validationf("order must contain at most %d items in total", MaxQuantity)
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyOrder
	}
	return kept, nil
}

// Totals sums quantities and quantity*priceAtTime over the lines.
func Totals(items []models.OrderItem) (int, decimal.Decimal) {
	totalItems := 0
	totalPrice := decimal.Zero
	for _, item := range items {
		totalItems += item.QuantityOrdered
		totalPrice = totalPrice.Add(item.PriceAtTime.Mul(decimal.NewFromInt(int64(item.QuantityOrdered))))
	}
	return totalItems, totalPrice
}

func LineStatus(received, ordered int) string {
	switch {
	case received <= 0:
		return models.ItemStatusPending
	case received >= ordered:
		return models.ItemStatusCompleted
	default:
		return models.ItemStatusPartial
	}
}

// OrderStatus derives the status of a non-cancelled order from its lines.
func OrderStatus(items []models.OrderItem) string {
	if len(items) == 0 {
		return models.OrderStatusPending
	}
	completed, started := 0, 0
	for _, item := range items {
		switch item.Status {
		case models.ItemStatusCompleted:
			completed++
			started++
		case models.ItemStatusPartial:
			started++
		}
	}
	switch {
	case completed == len(items):
		return models.OrderStatusCompleted
	case started > 0:
		return models.OrderStatusPartial
	default:
		return models.OrderStatusPending
	}
}

// AppendNotes joins extra onto existing with a newline. Blank extra is ignored.
func AppendNotes(existing, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return existing
	}
	if existing == "" {
		return extra
	}
	return existing + "\n" + extra
}

// Confirm receives everything still pending on every line. The returned
// slice holds the quantity added per line, index-aligned with order.Items;
// already complete lines report 0.
func Confirm(order *models.Order, notes string, now time.Time) ([]int, error) {
	if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusPartial {
		return nil, ErrNotConfirmable
	}

	added := make([]int, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		pending := item.PendingQuantity()
		if pending <= 0 {
			continue
		}
		item.QuantityReceived = item.QuantityOrdered
		item.Status = models.ItemStatusCompleted
		item.ReceivedAt = timePtr(now)
		item.UpdatedAt = now
		added[i] = pending
	}

	order.Status = models.OrderStatusCompleted
	order.CompletedAt = timePtr(now)
	order.Notes = AppendNotes(order.Notes, notes)
	order.UpdatedAt = now
	return added, nil
}

// Receive records quantity more units on one line and recomputes the
// order status. It returns the updated line, which aliases order.Items.
func Receive(order *models.Order, itemID int64, quantity int, notes string, now time.Time) (*models.OrderItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item := order.Item(itemID)
	if item == nil {
		return nil, ErrOrderItemNotFound
	}

	if order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	if quantity > item.PendingQuantity() {
		return nil, Validationf("cannot receive %d units: ordered %d, already received %d",
			quantity, item.QuantityOrdered, item.QuantityReceived)
	}

	item.QuantityReceived += quantity
	item.Status = LineStatus(item.QuantityReceived, item.QuantityOrdered)
	if item.Status == models.ItemStatusCompleted {
		item.ReceivedAt = timePtr(now)
	}
	item.Notes = AppendNotes(item.Notes, notes)
	item.UpdatedAt = now

	order.Status = OrderStatus(order.Items)
	if order.Status == models.OrderStatusCompleted && order.CompletedAt == nil {
		order.CompletedAt = timePtr(now)
	}
	order.UpdatedAt = now
	return item, nil
}

// Cancel moves a pending order to cancelled. Lines and stock are untouched.
func Cancel(order *models.Order, reason string, now time.Time) error {
	if order.Status != models.OrderStatusPending {
		return ErrNotCancellable
	}
	order.Status = models.OrderStatusCancelled
	order.Notes = AppendNotes(order.Notes, reason)
	order.UpdatedAt = now
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
