package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps carts in process memory. Lines of a cart are kept in insertion order.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string][]*domain.LineItem // cartID -> lines
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string][]*domain.LineItem),
		now:   time.Now,
	}
}

func (m *MemoryRepository) Increment(_ context.Context, cartID, productID string, delta int64) (domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.findLocked(cartID, productID); item != nil {
		if delta > domain.MaxQty-item.Qty {
			return domain.LineItem{}, domain.ErrQtyLimit
		}
		item.Qty += delta
		return *item, nil
	}

	if delta <= 0 {
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	if delta > domain.MaxQty {
		return domain.LineItem{}, domain.ErrQtyLimit
	}

	item := &domain.LineItem{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Qty:       delta,
		CreatedAt: m.now().UTC(),
	}
	m.carts[cartID] = append(m.carts[cartID], item)
	return *item, nil
}

func (m *MemoryRepository) DeleteIfNonPositive(_ context.Context, cartID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteLocked(cartID, itemID, func(item *domain.LineItem) bool {
		return item.Qty <= 0
	}), nil
}

func (m *MemoryRepository) FindByProduct(_ context.Context, cartID, productID string) (domain.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item := m.findLocked(cartID, productID)
	if item == nil {
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	return *item, nil
}

func (m *MemoryRepository) Delete(_ context.Context, cartID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteLocked(cartID, itemID, func(*domain.LineItem) bool { return true }), nil
}

func (m *MemoryRepository) List(_ context.Context, cartID string) ([]domain.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := m.carts[cartID]
	items := make([]domain.LineItem, 0, len(lines))
	for _, item := range lines {
		items = append(items, *item)
	}
	return items, nil
}

func (m *MemoryRepository) Clear(_ context.Context, cartID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.carts[cartID])
	delete(m.carts, cartID)
	return int64(n), nil
}

func (m *MemoryRepository) findLocked(cartID, productID string) *domain.LineItem {
	for _, item := range m.carts[cartID] {
		if item.ProductID == productID {
			return item
		}
	}
	return nil
}

func (m *MemoryRepository) deleteLocked(cartID, itemID string, cond func(*domain.LineItem) bool) bool {
	lines := m.carts[cartID]
	for i, item := range lines {
		if item.ID != itemID {
			continue
		}
		if !cond(item) {
			return false
		}
		m.carts[cartID] = append(lines[:i], lines[i+1:]...)
		if len(m.carts[cartID]) == 0 {
			delete(m.carts, cartID)
		}
		return true
	}
	return false
}
