package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/koloa-ledger/internal/models"
	"github.com/safar/koloa-ledger/internal/store"
)

type createProductRequest struct {
	Brand    string          `json:"brand" validate:"required,max=100"`
	Name     string          `json:"name" validate:"required,max=200"`
	Weight   decimal.Decimal `json:"weight" validate:"gte=0"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Stock    int             `json:"stock" validate:"gte=0"`
	MinStock int             `json:"minStock" validate:"gte=0"`
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := h.backend.CreateProduct(r.Context(), store.CreateProductRequest{
		Brand:    strings.TrimSpace(req.Brand),
		Name:     strings.TrimSpace(req.Name),
		Weight:   req.Weight,
		Price:    req.Price,
		Stock:    req.Stock,
		MinStock: req.MinStock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, size, err := h.pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.backend.ListProducts(r.Context(), page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) listLowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.backend.ListLowStockProducts(r.Context(), strings.TrimSpace(r.URL.Query().Get("brand")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Product{"items": products})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := h.backend.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
