package repository

import (
	"context"

	"github.com/Abu-doc/Cart/internal/domain"
)

// CartRepository stores line items per cart partition.
// Consumers define this interface, not the storage backends.
//
// Backend failures are returned as *domain.StoreError.
type CartRepository interface {
	// Increment atomically adds delta to the quantity of the line for productID.
	// A missing line is created only when delta is positive; otherwise domain.ErrItemNotFound.
	// An increment that would leave the line above domain.MaxQty is refused with
	// domain.ErrQtyLimit and changes nothing.
	// The returned item carries the quantity after the increment, which may be non-positive.
	Increment(ctx context.Context, cartID, productID string, delta int64) (domain.LineItem, error)
	// DeleteIfNonPositive removes the line only while its quantity is <= 0.
	DeleteIfNonPositive(ctx context.Context, cartID, itemID string) (bool, error)
	FindByProduct(ctx context.Context, cartID, productID string) (domain.LineItem, error)
	// Delete removes the line regardless of quantity. Unknown ids report false, not an error.
	Delete(ctx context.Context, cartID, itemID string) (bool, error)
	// List returns lines in insertion order.
	List(ctx context.Context, cartID string) ([]domain.LineItem, error)
	Clear(ctx context.Context, cartID string) (int64, error)
}
