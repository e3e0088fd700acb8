package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/Abu-doc/Cart/internal/logger"
	"github.com/Abu-doc/Cart/internal/repository"
)

type ReceiptPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error
}

type ReceiptMailer interface {
	SendReceipt(ctx context.Context, event domain.CheckoutCompleted) error
}

type CheckoutOption func(*CheckoutService)

func WithPublisher(p ReceiptPublisher) CheckoutOption {
	return func(s *CheckoutService) { s.publisher = p }
}

func WithMailer(m ReceiptMailer) CheckoutOption {
	return func(s *CheckoutService) { s.mailer = m }
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

// WithAnnounceBuffer sets how many receipts may wait for the publisher and
// mailer before new ones are dropped.
func WithAnnounceBuffer(n int) CheckoutOption {
	return func(s *CheckoutService) { s.announceBuffer = n }
}

// WithAnnounceTimeout bounds the publish and mail calls for one receipt.
func WithAnnounceTimeout(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) { s.announceTimeout = d }
}

const (
	defaultAnnounceBuffer  = 64
	defaultAnnounceTimeout = 10 * time.Second
)

type announcement struct {
	ctx   context.Context
	event domain.CheckoutCompleted
}

// CheckoutService turns a submitted cart into a receipt priced from the catalog.
// Receipts are published and mailed by a background worker; call Close to drain it.
type CheckoutService struct {
	repo      repository.CartRepository
	catalog   ProductCatalog
	currency  currency.Unit
	publisher ReceiptPublisher
	mailer    ReceiptMailer
	now       func() time.Time
	logger    *zap.Logger

	announceBuffer  int
	announceTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan announcement
	done   chan struct{}
}

func NewCheckoutService(repo repository.CartRepository, catalog ProductCatalog, unit currency.Unit, l *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	if l == nil {
		l = zap.NewNop()
	}
	s := &CheckoutService{
		repo:            repo,
		catalog:         catalog,
		currency:        unit,
		now:             time.Now,
		logger:          l,
		announceBuffer:  defaultAnnounceBuffer,
		announceTimeout: defaultAnnounceTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.publisher != nil || s.mailer != nil {
		s.queue = make(chan announcement, max(s.announceBuffer, 0))
		s.done = make(chan struct{})
		go s.runAnnouncer()
	}
	return s
}

// Close stops accepting receipts and waits until queued ones are announced or ctx ends.
func (s *CheckoutService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return nil
	}
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain receipt announcements: %w", ctx.Err())
	}
}

// Checkout prices req.Items with current catalog prices, clears the cart and
// returns the receipt. Client-side prices never enter the total.
//
// The cart is cleared as a whole even when req.Items differs from what is stored.
func (s *CheckoutService) Checkout(ctx context.Context, cartID string, req domain.CheckoutRequest) (domain.Receipt, error) {
	cartID = normalizeCartID(cartID)
	log := logger.FromContext(ctx, s.logger).With(zap.String("cart_id", cartID))

	if err := validateCheckout(req); err != nil {
		return domain.Receipt{}, err
	}

	var total domain.Money
	for _, item := range req.Items {
		p, err := s.catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("checkout skips unknown product", zap.String("product_id", item.ProductID))
			continue
		}
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("price %s: %w", item.ProductID, err)
		}
		line, err := p.Price.Times(item.Qty)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("price %s: %w", item.ProductID, err)
		}
		if total, err = total.Plus(line); err != nil {
			return domain.Receipt{}, fmt.Errorf("checkout total: %w", err)
		}
	}

	cleared, err := s.repo.Clear(ctx, cartID)
	if err != nil {
		log.Error("clear cart failed", zap.Error(err))
		return domain.Receipt{}, fmt.Errorf("clear cart: %w", err)
	}

	now := s.now().UTC()
	receipt := domain.Receipt{
		ReceiptID: newReceiptID(now),
		Total:     total,
		Currency:  s.currency.String(),
		Timestamp: now,
	}

	log.Info("checkout completed",
		zap.String("receipt_id", receipt.ReceiptID),
		zap.String("total", total.Format(s.currency)),
		zap.Int("submitted_lines", len(req.Items)),
		zap.Int64("cleared_lines", cleared))

	s.enqueue(ctx, log, domain.CheckoutCompleted{
		Receipt:       receipt,
		CartID:        cartID,
		CustomerName:  strings.TrimSpace(req.Name),
		CustomerEmail: strings.TrimSpace(req.Email),
		Items:         req.Items,
	})

	return receipt, nil
}

// enqueue never blocks the checkout: when the worker is behind, the receipt
// is dropped with a warning. The receipt itself is already final.
func (s *CheckoutService) enqueue(ctx context.Context, log *zap.Logger, event domain.CheckoutCompleted) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queue == nil {
		return
	}
	if s.closed {
		log.Warn("receipt not announced, service closing", zap.String("receipt_id", event.Receipt.ReceiptID))
		return
	}

	select {
	case s.queue <- announcement{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		log.Warn("receipt announcement dropped, queue full", zap.String("receipt_id", event.Receipt.ReceiptID))
	}
}

func (s *CheckoutService) runAnnouncer() {
	defer close(s.done)
	for a := range s.queue {
		s.announce(a)
	}
}

func (s *CheckoutService) announce(a announcement) {
	ctx, cancel := context.WithTimeout(a.ctx, s.announceTimeout)
	defer cancel()
	log := logger.FromContext(ctx, s.logger).With(
		zap.String("cart_id", a.event.CartID),
		zap.String("receipt_id", a.event.Receipt.ReceiptID))

	if s.publisher != nil {
		if err := s.publisher.PublishCheckoutCompleted(ctx, a.event); err != nil {
			log.Warn("publish receipt failed", zap.Error(err))
		}
	}
	if s.mailer != nil {
		if err := s.mailer.SendReceipt(ctx, a.event); err != nil {
			log.Warn("mail receipt failed", zap.Error(err))
		}
	}
}

func validateCheckout(req domain.CheckoutRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return domain.NewValidationError("invalid checkout data: name and email are required")
	}
	if req.Items == nil {
		return domain.NewValidationError("invalid checkout data: cartItems must be an array")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.NewValidationError("invalid checkout data: cartItems[%d].productId is required", i)
		}
		if item.Qty <= 0 {
			return domain.NewValidationError("invalid checkout data: cartItems[%d].qty must be positive", i)
		}
		if item.Qty > domain.MaxQty {
			return domain.NewValidationError("invalid checkout data: cartItems[%d].qty must not exceed %d", i, domain.MaxQty)
		}
	}
	return nil
}

// newReceiptID is time-ordered by its millisecond prefix; the random suffix
// separates checkouts that land in the same millisecond.
func newReceiptID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("RCT-%d-%s", now.UnixMilli(), suffix)
}
