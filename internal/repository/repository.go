package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/google/uuid"
)

var ErrOrderNotFound = errors.New("order not found")

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository persists the order aggregate. CreateOrder and ApplyPayment
// are transactional: either every row of the aggregate change is written or
// none is.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	ApplyPayment(ctx context.Context, id uuid.UUID, chargeID, receiptURL string, paidAt time.Time) (*domain.Order, error)
	RunMigrations(*Credentials) error
	Close() error
}
