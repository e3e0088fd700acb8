package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/Abu-doc/Cart/internal/logger"
	"github.com/Abu-doc/Cart/internal/repository"
)

// CartService owns the line item rules: merge by product, create only on a
// positive delta, and delete once the quantity drops to zero or below.
type CartService struct {
	repo    repository.CartRepository
	catalog ProductCatalog
	logger  *zap.Logger
}

func NewCartService(repo repository.CartRepository, catalog ProductCatalog, l *zap.Logger) *CartService {
	if l == nil {
		l = zap.NewNop()
	}
	return &CartService{
		repo:    repo,
		catalog: catalog,
		logger:  l,
	}
}

// Upsert applies delta units of productID to the cart.
func (s *CartService) Upsert(ctx context.Context, cartID, productID string, delta int64) (domain.UpsertResult, error) {
	cartID = normalizeCartID(cartID)
	log := logger.FromContext(ctx, s.logger).With(
		zap.String("cart_id", cartID),
		zap.String("product_id", productID),
		zap.Int64("delta", delta))

	if strings.TrimSpace(productID) == "" || delta == 0 {
		return domain.UpsertResult{}, domain.NewValidationError("invalid data: productId is required and qty must be a non-zero integer")
	}
	if delta > domain.MaxQty || delta < -domain.MaxQty {
		return domain.UpsertResult{}, domain.NewValidationError("invalid data: qty must be between -%d and %d", domain.MaxQty, domain.MaxQty)
	}

	if delta > 0 {
		ok, err := s.catalog.Exists(ctx, productID)
		if err != nil {
			return domain.UpsertResult{}, fmt.Errorf("check product: %w", err)
		}
		if !ok {
			return domain.UpsertResult{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
	}

	item, err := s.repo.Increment(ctx, cartID, productID, delta)
	if errors.Is(err, domain.ErrItemNotFound) {
		return domain.UpsertResult{}, domain.NewValidationError("quantity must be positive to create an item")
	}
	if errors.Is(err, domain.ErrQtyLimit) {
		return domain.UpsertResult{}, domain.NewValidationError("quantity of a line cannot exceed %d", domain.MaxQty)
	}
	if err != nil {
		log.Error("increment line failed", zap.Error(err))
		return domain.UpsertResult{}, fmt.Errorf("increment line: %w", err)
	}

	if item.Qty > 0 {
		log.Debug("line updated", zap.String("item_id", item.ID), zap.Int64("qty", item.Qty))
		return domain.UpsertResult{Item: &item}, nil
	}

	deleted, err := s.repo.DeleteIfNonPositive(ctx, cartID, item.ID)
	if err != nil {
		log.Error("delete emptied line failed", zap.Error(err))
		return domain.UpsertResult{}, fmt.Errorf("delete emptied line: %w", err)
	}
	if deleted {
		log.Debug("line removed", zap.String("item_id", item.ID))
		return domain.UpsertResult{Removed: true}, nil
	}

	// A concurrent increment lifted the quantity before our delete; report what is stored now.
	current, err := s.repo.FindByProduct(ctx, cartID, productID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return domain.UpsertResult{Removed: true}, nil
	}
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("reload line: %w", err)
	}
	if current.Qty <= 0 {
		return domain.UpsertResult{Removed: true}, nil
	}
	return domain.UpsertResult{Item: &current}, nil
}

// Remove deletes a line by its own id. Unknown ids are not an error.
func (s *CartService) Remove(ctx context.Context, cartID, itemID string) error {
	cartID = normalizeCartID(cartID)
	if strings.TrimSpace(itemID) == "" {
		return domain.NewValidationError("line item id is required")
	}

	deleted, err := s.repo.Delete(ctx, cartID, itemID)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}

	logger.FromContext(ctx, s.logger).Debug("remove line",
		zap.String("cart_id", cartID),
		zap.String("item_id", itemID),
		zap.Bool("deleted", deleted))
	return nil
}

// View joins the stored lines with live catalog prices.
func (s *CartService) View(ctx context.Context, cartID string) (domain.CartView, error) {
	cartID = normalizeCartID(cartID)

	items, err := s.repo.List(ctx, cartID)
	if err != nil {
		return domain.CartView{}, fmt.Errorf("list lines: %w", err)
	}

	view := domain.CartView{Items: make([]domain.EnrichedLineItem, 0, len(items))}
	for _, item := range items {
		if item.Qty <= 0 {
			// mid-removal by a concurrent upsert
			continue
		}

		p, err := s.catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx, s.logger).Warn("skipping line for unknown product",
				zap.String("cart_id", cartID),
				zap.String("item_id", item.ID),
				zap.String("product_id", item.ProductID))
			continue
		}
		if err != nil {
			return domain.CartView{}, fmt.Errorf("price line %s: %w", item.ID, err)
		}

		enriched, err := domain.Enrich(item, p)
		if err != nil {
			return domain.CartView{}, fmt.Errorf("price line %s: %w", item.ID, err)
		}
		if view.Total, err = view.Total.Plus(enriched.LineTotal); err != nil {
			return domain.CartView{}, fmt.Errorf("cart total: %w", err)
		}
		view.Items = append(view.Items, enriched)
	}

	return view, nil
}

func normalizeCartID(cartID string) string {
	if cartID = strings.TrimSpace(cartID); cartID == "" {
		return domain.DefaultCartID
	}
	return cartID
}
