package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrProductValidation covers bad input during creation: an empty item
	// list or product ids the catalog does not know.
	ErrProductValidation = errors.New("product validation failed")

	// ErrCatalogUnavailable and ErrPaymentUnavailable tag upstream transport
	// failures. The bus router still collapses create-flow failures into one
	// generic client fault, but logs and tests can tell the causes apart.
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
	ErrPaymentUnavailable = errors.New("payment service unavailable")

	ErrUnknownStatus = errors.New("unknown order status")
)

type OrderNotFoundError struct {
	ID uuid.UUID
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order with id %s not found", e.ID)
}
