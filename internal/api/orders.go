package api

import (
	"log/slog"
	"net/http"

	"github.com/safar/koloa-ledger/internal/authz"
	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/models"
	"github.com/safar/koloa-ledger/internal/store"
)

// Line fields carry no tags: unknown product ids and non-positive
// quantities are the ledger's to report or drop.
type orderLineRequest struct {
	InventoryItemID int64 `json:"inventoryItemId"`
	QuantityOrdered int   `json:"quantityOrdered"`
}

type createOrderRequest struct {
	Type  string             `json:"type" validate:"required,oneof=general brand"`
	Brand string             `json:"brand" validate:"max=100"`
	Items []orderLineRequest `json:"items" validate:"dive"`
	Notes string             `json:"notes" validate:"max=2000"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type receiveRequest struct {
	QuantityReceived int    `json:"quantityReceived"`
	Notes            string `json:"notes" validate:"max=2000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type confirmResponse struct {
	Order        *models.Order        `json:"order"`
	StockUpdates []models.StockUpdate `json:"stockUpdates"`
}

type receiveResponse struct {
	OrderItem   *models.OrderItem   `json:"orderItem"`
	Order       *models.Order       `json:"order"`
	StockUpdate *models.StockUpdate `json:"stockUpdate"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown user"})
		return
	}

	var req createOrderRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	lines := make([]ledger.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, ledger.LineRequest{ProductID: item.InventoryItemID, Quantity: item.QuantityOrdered})
	}

	order, err := h.backend.CreateOrder(r.Context(), store.CreateOrderRequest{
		UserID: user.ID,
		Type:   req.Type,
		Brand:  req.Brand,
		Notes:  req.Notes,
		Items:  lines,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordOrderCreated(order.Type)
	h.logger.Info("order created",
		slog.String("order_number", order.OrderNumber),
		slog.Int("total_items", order.TotalItems),
		slog.Int64("user_id", user.ID),
	)
	writeJSON(w, http.StatusCreated, order)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.OrderFilter{Status: q.Get("status"), Type: q.Get("type")}
	if err := h.validate.Var(filter.Status, "omitempty,oneof=pending partial completed cancelled"); err != nil {
		h.writeError(w, r, ledger.Validationf("invalid status %q", filter.Status))
		return
	}
	if err := h.validate.Var(filter.Type, "omitempty,oneof=general brand"); err != nil {
		h.writeError(w, r, ledger.Validationf("invalid type %q", filter.Type))
		return
	}

	limit, err := queryInt(r, "limit", store.DefaultPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.backend.ListOrders(r.Context(), filter, q.Get("cursor"), store.ClampPageSize(limit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.backend.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req notesRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, updates, err := h.backend.ConfirmOrder(r.Context(), id, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	added := 0
	for _, update := range updates {
		added += update.AddedQuantity
	}
	h.metrics.RecordTransition(order.Status)
	h.metrics.AddStockReceived(added)
	h.logger.Info("order confirmed",
		slog.String("order_number", order.OrderNumber),
		slog.Int("units_received", added),
	)
	writeJSON(w, http.StatusOK, confirmResponse{Order: order, StockUpdates: updates})
}

func (h *handler) receiveOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req receiveRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, order, update, err := h.backend.ReceiveOrderItem(r.Context(), orderID, itemID, req.QuantityReceived, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordTransition(order.Status)
	h.metrics.AddStockReceived(update.AddedQuantity)
	h.logger.Info("order item received",
		slog.String("order_number", order.OrderNumber),
		slog.Int64("item_id", item.ID),
		slog.Int("quantity", update.AddedQuantity),
		slog.String("status", order.Status),
	)
	writeJSON(w, http.StatusOK, receiveResponse{OrderItem: item, Order: order, StockUpdate: update})
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req cancelRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.backend.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordTransition(order.Status)
	h.logger.Info("order cancelled", slog.String("order_number", order.OrderNumber))
	writeJSON(w, http.StatusOK, order)
}
