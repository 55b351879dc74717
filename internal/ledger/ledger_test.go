package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/koloa-ledger/internal/models"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func pendingOrder(quantities ...int) *models.Order {
	order := &models.Order{ID: 1, Status: models.OrderStatusPending}
	for i, qty := range quantities {
		order.Items = append(order.Items, models.OrderItem{
			ID:              int64(i + 1),
			OrderID:         1,
			ProductID:       int64(100 + i),
			QuantityOrdered: qty,
			PriceAtTime:     decimal.NewFromInt(10),
			Status:          models.ItemStatusPending,
		})
	}
	return order
}

func TestKeepPositiveDropsNonPositiveLines(t *testing.T) {
	kept, err := KeepPositive([]LineRequest{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 0},
		{ProductID: 3, Quantity: -1},
	})
	require.NoError(t, err)
	require.Equal(t, []LineRequest{{ProductID: 1, Quantity: 5}}, kept)
}

func TestKeepPositiveRejectsEmptyOrder(t *testing.T) {
	_, err := KeepPositive([]LineRequest{{ProductID: 1, Quantity: 0}, {ProductID: 2, Quantity: -3}})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at least one item")

	_, err = KeepPositive(nil)
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestKeepPositiveBoundsQuantities(t *testing.T) {
	_, err := KeepPositive([]LineRequest{{ProductID: 7, Quantity: MaxQuantity + 1}})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "quantity for product 7 must be at most 2147483647", err.Error())

	_, err = KeepPositive([]LineRequest{
		{ProductID: 1, Quantity: MaxQuantity - 1},
		{ProductID: 2, Quantity: 2},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at most 2147483647 items in total")

	kept, err := KeepPositive([]LineRequest{
		{ProductID: 1, Quantity: MaxQuantity - 1},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}

func TestTotals(t *testing.T) {
	items := []models.OrderItem{
		{QuantityOrdered: 5, PriceAtTime: decimal.RequireFromString("12.50")},
		{QuantityOrdered: 2, PriceAtTime: decimal.RequireFromString("3.25")},
	}
	totalItems, totalPrice := Totals(items)
	assert.Equal(t, 7, totalItems)
	assert.True(t, totalPrice.Equal(decimal.RequireFromString("69.00")), "got %s", totalPrice)
}

func TestLineStatus(t *testing.T) {
	assert.Equal(t, models.ItemStatusPending, LineStatus(0, 5))
	assert.Equal(t, models.ItemStatusPartial, LineStatus(1, 5))
	assert.Equal(t, models.ItemStatusPartial, LineStatus(4, 5))
	assert.Equal(t, models.ItemStatusCompleted, LineStatus(5, 5))
}

func TestOrderStatusCoversEveryLineCombination(t *testing.T) {
	statuses := []string{models.ItemStatusPending, models.ItemStatusPartial, models.ItemStatusCompleted}
	for _, a := range statuses {
		for _, b := range statuses {
			for _, c := range statuses {
				items := []models.OrderItem{{Status: a}, {Status: b}, {Status: c}}

				want := models.OrderStatusPending
				switch {
				case a == models.ItemStatusCompleted && b == models.ItemStatusCompleted && c == models.ItemStatusCompleted:
					want = models.OrderStatusCompleted
				case a != models.ItemStatusPending || b != models.ItemStatusPending || c != models.ItemStatusPending:
					want = models.OrderStatusPartial
				}

				assert.Equal(t, want, OrderStatus(items), "lines %s/%s/%s", a, b, c)
			}
		}
	}
}

func TestAppendNotes(t *testing.T) {
	assert.Equal(t, "", AppendNotes("", "  "))
	assert.Equal(t, "first", AppendNotes("", "first"))
	assert.Equal(t, "first\nsecond", AppendNotes("first", " second "))
	assert.Equal(t, "first", AppendNotes("first", ""))
}

func TestConfirmCompletesEveryLine(t *testing.T) {
	order := pendingOrder(3, 5)

	added, err := Confirm(order, "all in", now)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, added)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)
	assert.Equal(t, "all in", order.Notes)
	for _, item := range order.Items {
		assert.Equal(t, models.ItemStatusCompleted, item.Status)
		assert.Equal(t, item.QuantityOrdered, item.QuantityReceived)
		require.NotNil(t, item.ReceivedAt)
	}
}

func TestConfirmPartialOrderReportsZeroForCompleteLines(t *testing.T) {
	order := pendingOrder(2, 4)
	_, err := Receive(order, 1, 2, "", now)
	require.NoError(t, err)
	_, err = Receive(order, 2, 1, "", now)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPartial, order.Status)

	order.Notes = "ordered by phone"
	added, err := Confirm(order, "rest arrived", now)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, added)
	assert.Equal(t, "ordered by phone\nrest arrived", order.Notes)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestConfirmRejectsClosedOrders(t *testing.T) {
	for _, status := range []string{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		order := pendingOrder(1)
		order.Status = status
		_, err := Confirm(order, "", now)
		require.ErrorIs(t, err, ErrConflict, status)
		assert.Equal(t, 0, order.Items[0].QuantityReceived)
	}
}

func TestReceiveAccumulatesToCompletion(t *testing.T) {
	order := pendingOrder(5)

	item, err := Receive(order, 1, 2, "first box", now)
	require.NoError(t, err)
	assert.Equal(t, 2, item.QuantityReceived)
	assert.Equal(t, models.ItemStatusPartial, item.Status)
	assert.Nil(t, item.ReceivedAt)
	assert.Equal(t, models.OrderStatusPartial, order.Status)
	assert.Nil(t, order.CompletedAt)

	item, err = Receive(order, 1, 3, "second box", now)
	require.NoError(t, err)
	assert.Equal(t, 5, item.QuantityReceived)
	assert.Equal(t, models.ItemStatusCompleted, item.Status)
	assert.NotNil(t, item.ReceivedAt)
	assert.Equal(t, "first box\nsecond box", item.Notes)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
}

func TestReceiveRejections(t *testing.T) {
	t.Run("non-positive quantity", func(t *testing.T) {
		order := pendingOrder(5)
		_, err := Receive(order, 1, 0, "", now)
		require.ErrorIs(t, err, ErrInvalidQuantity)
		_, err = Receive(order, 1, -2, "", now)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown line", func(t *testing.T) {
		order := pendingOrder(5)
		_, err := Receive(order, 99, 1, "", now)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled order", func(t *testing.T) {
		order := pendingOrder(5)
		order.Status = models.OrderStatusCancelled
		_, err := Receive(order, 1, 1, "", now)
		require.ErrorIs(t, err, ErrOrderCancelled)
		assert.Equal(t, 0, order.Items[0].QuantityReceived)
	})

	t.Run("over receipt", func(t *testing.T) {
		order := pendingOrder(5)
		_, err := Receive(order, 1, 2, "", now)
		require.NoError(t, err)

		_, err = Receive(order, 1, 4, "", now)
		require.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "cannot receive 4 units: ordered 5, already received 2", err.Error())
		assert.Equal(t, 2, order.Items[0].QuantityReceived)
		assert.Equal(t, models.ItemStatusPartial, order.Items[0].Status)
	})
}

func TestReceiveRejectsHugeIncrement(t *testing.T) {
	order := pendingOrder(5)
	_, err := Receive(order, 1, 2, "", now)
	require.NoError(t, err)

	_, err = Receive(order, 1, math.MaxInt, "", now)
	require.ErrorIs(t, err, ErrValidation)
	item := order.Items[0]
	assert.Equal(t, 2, item.QuantityReceived)
	assert.Equal(t, models.ItemStatusPartial, item.Status)
	assert.Equal(t, models.OrderStatusPartial, order.Status)
}

func TestReceiveKeepsQuantityWithinBounds(t *testing.T) {
	order := pendingOrder(4)
	for _, qty := range []int{1, 3, 2, math.MaxInt, 1, 5} {
		_, _ = Receive(order, 1, qty, "", now)
		item := order.Items[0]
		require.GreaterOrEqual(t, item.QuantityReceived, 0)
		require.LessOrEqual(t, item.QuantityReceived, item.QuantityOrdered)
		require.Equal(t, LineStatus(item.QuantityReceived, item.QuantityOrdered), item.Status)
	}
	assert.Equal(t, 4, order.Items[0].QuantityReceived)
}

func TestCancel(t *testing.T) {
	order := pendingOrder(3)
	require.NoError(t, Cancel(order, "supplier closed", now))
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, "supplier closed", order.Notes)
	assert.Equal(t, models.ItemStatusPending, order.Items[0].Status)
	assert.Equal(t, 0, order.Items[0].QuantityReceived)

	for _, status := range []string{models.OrderStatusPartial, models.OrderStatusCompleted, models.OrderStatusCancelled} {
		order := pendingOrder(3)
		order.Status = status
		err := Cancel(order, "", now)
		require.ErrorIs(t, err, ErrNotCancellable, status)
		assert.Equal(t, status, order.Status)
	}
}

func TestErrorKinds(t *testing.T) {
	err := ProductNotFound(42)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "product 42 not found", err.Error())

	assert.True(t, errors.Is(ErrOrderNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrNotConfirmable, ErrConflict))
}

func TestCheckOrderKind(t *testing.T) {
	require.NoError(t, CheckOrderKind(models.OrderTypeGeneral, ""))
	require.NoError(t, CheckOrderKind(models.OrderTypeBrand, "Al Fakher"))
	require.ErrorIs(t, CheckOrderKind(models.OrderTypeBrand, "  "), ErrValidation)
	require.ErrorIs(t, CheckOrderKind("weekly", ""), ErrValidation)
}
