package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Abu-doc/Cart/internal/domain"
)

type cartEngine interface {
	Upsert(ctx context.Context, cartID, productID string, delta int64) (domain.UpsertResult, error)
	Remove(ctx context.Context, cartID, itemID string) error
	View(ctx context.Context, cartID string) (domain.CartView, error)
}

type CartHandler struct {
	cart    cartEngine
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(cart cartEngine, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		logger:  logger,
	}
}

// UpsertItemRequestDTO carries a signed quantity delta.
type UpsertItemRequestDTO struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

type UpsertItemResponseDTO struct {
	OK      bool             `json:"ok"`
	Item    *domain.LineItem `json:"item,omitempty"`
	Removed bool             `json:"removed,omitempty"`
}

type OKResponseDTO struct {
	OK bool `json:"ok"`
}

// POST /api/cart
func (h *CartHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpsertItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.cart.Upsert(ctx, cartIDFromContext(r.Context()), req.ProductID, req.Qty)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, UpsertItemResponseDTO{
		OK:      true,
		Item:    res.Item,
		Removed: res.Removed,
	})
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.View(ctx, cartIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if view.Items == nil {
		view.Items = []domain.EnrichedLineItem{}
	}

	respondJSON(w, http.StatusOK, view)
}

// DELETE /api/cart/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Remove(ctx, cartIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, OKResponseDTO{OK: true})
}
