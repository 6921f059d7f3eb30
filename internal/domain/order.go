package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is fixed at creation time. Price is the catalog unit price
// snapshotted when the order was validated; the display name is never
// persisted and is joined in from the catalog on reads that need it.
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name,omitempty"`
}

type OrderReceipt struct {
	OrderID    uuid.UUID `json:"orderId"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Order struct {
	ID             uuid.UUID     `json:"id"`
	Status         OrderStatus   `json:"status"`
	Paid           bool          `json:"paid"`
	PaidAt         *time.Time    `json:"paidAt"`
	TotalAmount    float64       `json:"totalAmount"`
	TotalItems     int           `json:"totalItems"`
	StripeChargeID string        `json:"stripeChargeId,omitempty"`
	Items          []OrderItem   `json:"items,omitempty"`
	Receipt        *OrderReceipt `json:"receipt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
