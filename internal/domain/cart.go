package domain

import "time"

// DefaultCartID is the partition every request lands in unless a caller names its own cart.
const DefaultCartID = "global"

// MaxQty bounds both a stored line quantity and any single change to it.
const MaxQty int64 = 10_000

type LineItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"-"`
	ProductID string    `json:"productId"`
	Qty       int64     `json:"qty"`
	CreatedAt time.Time `json:"-"`
}

// EnrichedLineItem is a line item joined with its product.
type EnrichedLineItem struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Image     string `json:"image"`
	Qty       int64  `json:"qty"`
	LineTotal Money  `json:"lineTotal"`
}

// CartView is derived on every read and never stored.
type CartView struct {
	Items []EnrichedLineItem `json:"items"`
	Total Money              `json:"total"`
}

type UpsertResult struct {
	Removed bool
	Item    *LineItem
}

func Enrich(item LineItem, p Product) (EnrichedLineItem, error) {
	lineTotal, err := p.Price.Times(item.Qty)
	if err != nil {
		return EnrichedLineItem{}, err
	}
	return EnrichedLineItem{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Qty:       item.Qty,
		LineTotal: lineTotal,
	}, nil
}
