package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

type Product struct {
	ID        int64           `json:"id"`
	Brand     string          `json:"brand"`
	Name      string          `json:"name"`
	Weight    decimal.Decimal `json:"weight"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	MinStock  int             `json:"minStock"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Version   int             `json:"version"`
}

type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Type        string          `json:"type"`
	Brand       *string         `json:"brand,omitempty"`
	Status      string          `json:"status"`
	TotalItems  int             `json:"totalItems"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Notes       string          `json:"notes,omitempty"`
	UserID      int64           `json:"userId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Version     int             `json:"version"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// Item returns the line with the given id, or nil.
func (o *Order) Item(id int64) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

type OrderItem struct {
	ID               int64            `json:"id"`
	OrderID          int64            `json:"orderId"`
	ProductID        int64            `json:"inventoryItemId"`
	QuantityOrdered  int              `json:"quantityOrdered"`
	QuantityReceived int              `json:"quantityReceived"`
	PriceAtTime      decimal.Decimal  `json:"priceAtTime"`
	Status           string           `json:"status"`
	ReceivedAt       *time.Time       `json:"receivedAt,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Product          *ProductSnapshot `json:"inventoryItem,omitempty"`
}

// PendingQuantity is what is still owed on the line.
func (i OrderItem) PendingQuantity() int {
	return i.QuantityOrdered - i.QuantityReceived
}

// ProductSnapshot is the product view embedded in order responses.
type ProductSnapshot struct {
	ID    int64           `json:"id"`
	Brand string          `json:"brand"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// StockUpdate records one reception's effect on a product's stock.
type StockUpdate struct {
	ProductID     int64  `json:"productId"`
	ProductName   string `json:"productName"`
	PreviousStock int    `json:"previousStock"`
	AddedQuantity int    `json:"addedQuantity"`
	NewStock      int    `json:"newStock"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPartial   = "partial"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	ItemStatusPending   = "pending"
	ItemStatusPartial   = "partial"
	ItemStatusCompleted = "completed"
)

const (
	OrderTypeGeneral = "general"
	OrderTypeBrand   = "brand"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)
