package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/Abu-doc/Cart/internal/repository"
)

var seedProducts = []domain.Product{
	{ID: "p1", Name: "Vibe Tee", Price: 599, Image: "tee.png"},
	{ID: "p2", Name: "Vibe Hoodie", Price: 500, Image: "hoodie.png"},
	{ID: "p3", Name: "Vibe Cap", Price: 399, Image: "cap.png"},
}

type mockProductRepository struct {
	m        sync.RWMutex
	products map[string]domain.Product
	order    []string
	err      error
	calls    atomic.Int64
	block    chan struct{}
}

func newMockProductRepository(products ...domain.Product) *mockProductRepository {
	r := &mockProductRepository{products: make(map[string]domain.Product)}
	for _, p := range products {
		r.products[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r
}

func (r *mockProductRepository) wait(ctx context.Context) error {
	if r.block == nil {
		return nil
	}
	select {
	case <-r.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *mockProductRepository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	r.calls.Add(1)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.Product, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *mockProductRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	r.calls.Add(1)
	if err := r.wait(ctx); err != nil {
		return domain.Product{}, err
	}
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return domain.Product{}, r.err
	}
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p, nil
}

func (r *mockProductRepository) setPrice(id string, price domain.Money) {
	r.m.Lock()
	defer r.m.Unlock()
	p := r.products[id]
	p.Price = price
	r.products[id] = p
}

func (r *mockProductRepository) remove(id string) {
	r.m.Lock()
	defer r.m.Unlock()
	delete(r.products, id)
}

func (r *mockProductRepository) fail(err error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.err = err
}

// racingRepository simulates a concurrent increment landing between
// Increment and DeleteIfNonPositive.
type racingRepository struct {
	repository.CartRepository
	restoreQty int64
}

func (r *racingRepository) DeleteIfNonPositive(ctx context.Context, cartID, itemID string) (bool, error) {
	lines, err := r.CartRepository.List(ctx, cartID)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if line.ID == itemID {
			if _, err := r.CartRepository.Increment(ctx, cartID, line.ProductID, r.restoreQty-line.Qty); err != nil {
				return false, err
			}
		}
	}
	return r.CartRepository.DeleteIfNonPositive(ctx, cartID, itemID)
}

// failingRepository fails the named operation with a store error.
type failingRepository struct {
	repository.CartRepository
	op string
}

var errBackendDown = errors.New("connection refused")

func (r *failingRepository) fail(op string) error {
	if r.op == op {
		return domain.NewStoreError(op, errBackendDown)
	}
	return nil
}

func (r *failingRepository) Increment(ctx context.Context, cartID, productID string, delta int64) (domain.LineItem, error) {
	if err := r.fail("increment"); err != nil {
		return domain.LineItem{}, err
	}
	return r.CartRepository.Increment(ctx, cartID, productID, delta)
}

func (r *failingRepository) List(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	if err := r.fail("list"); err != nil {
		return nil, err
	}
	return r.CartRepository.List(ctx, cartID)
}

func (r *failingRepository) Delete(ctx context.Context, cartID, itemID string) (bool, error) {
	if err := r.fail("delete"); err != nil {
		return false, err
	}
	return r.CartRepository.Delete(ctx, cartID, itemID)
}

func (r *failingRepository) Clear(ctx context.Context, cartID string) (int64, error) {
	if err := r.fail("clear"); err != nil {
		return 0, err
	}
	return r.CartRepository.Clear(ctx, cartID)
}

type recordingPublisher struct {
	m      sync.Mutex
	events []domain.CheckoutCompleted
	err    error
}

func (p *recordingPublisher) PublishCheckoutCompleted(_ context.Context, event domain.CheckoutCompleted) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type recordingMailer struct {
	m      sync.Mutex
	events []domain.CheckoutCompleted
	err    error
}

func (r *recordingMailer) SendReceipt(_ context.Context, event domain.CheckoutCompleted) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.events = append(r.events, event)
	return r.err
}
