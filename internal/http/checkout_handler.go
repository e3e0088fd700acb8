package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Abu-doc/Cart/internal/domain"
)

type checkoutProcessor interface {
	Checkout(ctx context.Context, cartID string, req domain.CheckoutRequest) (domain.Receipt, error)
}

type CheckoutHandler struct {
	checkout checkoutProcessor
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout checkoutProcessor, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		logger:   logger,
	}
}

// CheckoutItemDTO deliberately has no price: totals come from the catalog.
type CheckoutItemDTO struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

type CheckoutRequestDTO struct {
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	CartItems []CheckoutItemDTO `json:"cartItems"`
}

// POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := h.checkout.Checkout(ctx, cartIDFromContext(r.Context()), req.toDomain())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, receipt)
}

func (d CheckoutRequestDTO) toDomain() domain.CheckoutRequest {
	out := domain.CheckoutRequest{Name: d.Name, Email: d.Email}
	if d.CartItems == nil {
		return out
	}
	out.Items = make([]domain.CheckoutItem, len(d.CartItems))
	for i, item := range d.CartItems {
		out.Items[i] = domain.CheckoutItem{ProductID: item.ProductID, Qty: item.Qty}
	}
	return out
}
