package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	paymentsQueue         = "payments"
	paymentSessionPattern = "create.payment.session"
)

// SessionItem is one priced cart line in a payment-session request.
type SessionItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type paymentSessionRequest struct {
	OrderID  uuid.UUID     `json:"orderId"`
	Currency string        `json:"currency"`
	Items    []SessionItem `json:"items"`
}

type PaymentGateway interface {
	// CreatePaymentSession opens a payable session for the order's priced
	// cart. The session is opaque to this service and passed through to the
	// caller untouched.
	CreatePaymentSession(ctx context.Context, orderID uuid.UUID, currency string, items []SessionItem) (json.RawMessage, error)
}

type PaymentHandler struct {
	caller  Caller
	timeout time.Duration
}

func NewPaymentHandler(caller Caller, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		caller:  caller,
		timeout: timeout,
	}
}

func (h *PaymentHandler) CreatePaymentSession(ctx context.Context, orderID uuid.UUID, currency string, items []SessionItem) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := paymentSessionRequest{
		OrderID:  orderID,
		Currency: currency,
		Items:    items,
	}

	session, err := h.caller.Call(ctx, paymentsQueue, paymentSessionPattern, req)
	if err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}
	return session, nil
}
