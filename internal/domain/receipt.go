package domain

import "time"

type CheckoutItem struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

type CheckoutRequest struct {
	Name  string
	Email string
	// Items is nil when the caller sent no list at all; an empty list is a valid checkout.
	Items []CheckoutItem
}

// Receipt is created once per checkout and never mutated.
type Receipt struct {
	ReceiptID string    `json:"receiptId"`
	Total     Money     `json:"total"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCompleted is announced after a receipt has been issued and the cart cleared.
type CheckoutCompleted struct {
	Receipt       Receipt        `json:"receipt"`
	CartID        string         `json:"cartId"`
	CustomerName  string         `json:"customerName"`
	CustomerEmail string         `json:"customerEmail"`
	Items         []CheckoutItem `json:"items"`
}
