package repository

import (
	"sync"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/suite"
)

// cartRepositorySuite runs the same behaviour checks against every backend.
type cartRepositorySuite struct {
	suite.Suite

	repo  CartRepository
	reset func()
}

func (s *cartRepositorySuite) SetupTest() {
	if s.reset != nil {
		s.reset()
	}
}

func (s *cartRepositorySuite) TestIncrementCreatesThenMerges() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	productID := gofakeit.UUID()

	created, err := s.repo.Increment(ctx, cartID, productID, 2)
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.Equal(productID, created.ProductID)
	s.Equal(int64(2), created.Qty)
	s.False(created.CreatedAt.IsZero())

	merged, err := s.repo.Increment(ctx, cartID, productID, 1)
	s.Require().NoError(err)
	s.Equal(created.ID, merged.ID)
	s.Equal(int64(3), merged.Qty)

	items, err := s.repo.List(ctx, cartID)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *cartRepositorySuite) TestIncrementMissingWithNonPositiveDelta() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()

	for _, delta := range []int64{-1, 0} {
		_, err := s.repo.Increment(ctx, cartID, gofakeit.UUID(), delta)
		s.ErrorIs(err, domain.ErrItemNotFound)
	}

	items, err := s.repo.List(ctx, cartID)
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *cartRepositorySuite) TestIncrementRefusesToExceedMaxQty() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	productID := gofakeit.UUID()

	_, err := s.repo.Increment(ctx, cartID, productID, domain.MaxQty+1)
	s.ErrorIs(err, domain.ErrQtyLimit)

	full, err := s.repo.Increment(ctx, cartID, productID, domain.MaxQty)
	s.Require().NoError(err)
	s.Equal(domain.MaxQty, full.Qty)

	_, err = s.repo.Increment(ctx, cartID, productID, 1)
	s.ErrorIs(err, domain.ErrQtyLimit)

	current, err := s.repo.FindByProduct(ctx, cartID, productID)
	s.Require().NoError(err)
	s.Equal(domain.MaxQty, current.Qty, "a refused increment must not change the line")

	lowered, err := s.repo.Increment(ctx, cartID, productID, -1)
	s.Require().NoError(err)
	s.Equal(domain.MaxQty-1, lowered.Qty)

	items, err := s.repo.List(ctx, cartID)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *cartRepositorySuite) TestDeleteIfNonPositive() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	productID := gofakeit.UUID()

	item, err := s.repo.Increment(ctx, cartID, productID, 1)
	s.Require().NoError(err)

	deleted, err := s.repo.DeleteIfNonPositive(ctx, cartID, item.ID)
	s.Require().NoError(err)
	s.False(deleted, "positive line must survive")

	item, err = s.repo.Increment(ctx, cartID, productID, -3)
	s.Require().NoError(err)
	s.Equal(int64(-2), item.Qty)

	deleted, err = s.repo.DeleteIfNonPositive(ctx, cartID, item.ID)
	s.Require().NoError(err)
	s.True(deleted)

	_, err = s.repo.FindByProduct(ctx, cartID, productID)
	s.ErrorIs(err, domain.ErrItemNotFound)
}

func (s *cartRepositorySuite) TestDeleteIsIdempotent() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()

	item, err := s.repo.Increment(ctx, cartID, gofakeit.UUID(), 4)
	s.Require().NoError(err)

	deleted, err := s.repo.Delete(ctx, cartID, item.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.repo.Delete(ctx, cartID, item.ID)
	s.Require().NoError(err)
	s.False(deleted)

	deleted, err = s.repo.Delete(ctx, cartID, "not-an-id")
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *cartRepositorySuite) TestDeleteRespectsCartPartition() {
	ctx := s.T().Context()

	item, err := s.repo.Increment(ctx, "cart-a", gofakeit.UUID(), 1)
	s.Require().NoError(err)

	deleted, err := s.repo.Delete(ctx, "cart-b", item.ID)
	s.Require().NoError(err)
	s.False(deleted)

	items, err := s.repo.List(ctx, "cart-a")
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *cartRepositorySuite) TestListKeepsInsertionOrder() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	products := []string{"vibe-tee", "hoodie", "cap"}

	for _, p := range products {
		_, err := s.repo.Increment(ctx, cartID, p, 1)
		s.Require().NoError(err)
	}
	// merging must not move the line
	_, err := s.repo.Increment(ctx, cartID, "vibe-tee", 5)
	s.Require().NoError(err)

	items, err := s.repo.List(ctx, cartID)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	for i, p := range products {
		s.Equal(p, items[i].ProductID)
		s.Equal(cartID, items[i].CartID)
	}
	s.Equal(int64(6), items[0].Qty)
}

func (s *cartRepositorySuite) TestClear() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	otherCartID := gofakeit.UUID()

	for i := 0; i < 3; i++ {
		_, err := s.repo.Increment(ctx, cartID, gofakeit.UUID(), 1)
		s.Require().NoError(err)
	}
	_, err := s.repo.Increment(ctx, otherCartID, gofakeit.UUID(), 1)
	s.Require().NoError(err)

	n, err := s.repo.Clear(ctx, cartID)
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	items, err := s.repo.List(ctx, cartID)
	s.Require().NoError(err)
	s.Empty(items)

	n, err = s.repo.Clear(ctx, cartID)
	s.Require().NoError(err)
	s.Zero(n)

	items, err = s.repo.List(ctx, otherCartID)
	s.Require().NoError(err)
	s.Len(items, 1)

	// a cleared cart accepts new lines
	_, err = s.repo.Increment(ctx, cartID, "cap", 2)
	s.Require().NoError(err)
}

func (s *cartRepositorySuite) TestConcurrentIncrementsAreNotLost() {
	ctx := s.T().Context()
	cartID := gofakeit.UUID()
	productID := gofakeit.UUID()

	_, err := s.repo.Increment(ctx, cartID, productID, 1)
	s.Require().NoError(err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.Increment(ctx, cartID, productID, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	item, err := s.repo.FindByProduct(ctx, cartID, productID)
	s.Require().NoError(err)
	s.Equal(int64(workers+1), item.Qty)
}
