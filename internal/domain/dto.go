package domain

import "github.com/google/uuid"

// CreateOrderItem is one requested line: a catalog reference plus a quantity.
// The price is resolved from the catalog during creation, never supplied by
// the caller.
type CreateOrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items"`
}

type OrderPagination struct {
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
	Status OrderStatus `json:"status,omitempty"`
}

type PaginationMeta struct {
	TotalPage int `json:"totalPage"`
	Page      int `json:"page"`
	LastPage  int `json:"lastPage"`
}

type PaginatedOrders struct {
	Data []*Order       `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type ChangeOrderStatusRequest struct {
	ID     uuid.UUID   `json:"id"`
	Status OrderStatus `json:"status"`
}

// PaidOrderEvent is the payment service's success notification.
type PaidOrderEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	StripePaymentID string    `json:"stripePaymentId"`
	ReceiptURL      string    `json:"receiptUrl"`
}
