package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Abu-doc/Cart/internal/domain"
)

// ProductRepository is the read side of the catalog store.
type ProductRepository interface {
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// ProductCatalog is what the cart engine and checkout need from the catalog.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// lookupTimeout bounds a shared lookup, which no single caller's context governs.
const lookupTimeout = 5 * time.Second

// CatalogService serves product lookups. Nothing is cached: concurrent identical
// lookups share one in-flight query, so prices are always read live.
type CatalogService struct {
	repo ProductRepository
	sfg  singleflight.Group
}

func NewCatalogService(repo ProductRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, err := s.shared(ctx, "products", func(ctx context.Context) (interface{}, error) {
		return s.repo.GetAllProducts(ctx)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.Product)), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	v, err := s.shared(ctx, "product:"+id, func(ctx context.Context) (interface{}, error) {
		return s.repo.GetProduct(ctx, id)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

func (s *CatalogService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// shared runs fn once per key for all concurrent callers. The query runs under
// a context detached from whichever caller started it, so one client going
// away does not fail the others; each caller still stops waiting on its own ctx.
func (s *CatalogService) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return fn(lookupCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
