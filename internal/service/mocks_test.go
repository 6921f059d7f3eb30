package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/Nest-ms-1/orders-ms/internal/gateway"
	"github.com/Nest-ms-1/orders-ms/internal/repository"
	"github.com/google/uuid"
)

// MockRepository implements repository.OrderRepository for testing
type MockRepository struct {
	Order      *domain.Order // returned by GetOrderByID when GetErr is nil
	GetErr     error
	CreateErr  error
	UpdateErr  error
	PaymentErr error

	ListOrders_   []*domain.Order
	ListTotal     int
	ListErr       error
	ListStatusArg *domain.OrderStatus
	ListPageArg   int
	ListLimitArg  int

	Created       *domain.Order // captures the order passed to CreateOrder
	UpdateCalls   int
	UpdatedStatus domain.OrderStatus
	PaymentCalls  int
	ChargeIDArg   string
	ReceiptArg    string
}

func (m *MockRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = order
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Order == nil || m.Order.ID != id {
		return nil, repository.ErrOrderNotFound
	}
	// Copy so tests can keep comparing against the fixture.
	copied := *m.Order
	copied.Items = append([]domain.OrderItem(nil), m.Order.Items...)
	return &copied, nil
}

func (m *MockRepository) ListOrders(_ context.Context, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	m.ListStatusArg = status
	m.ListPageArg = page
	m.ListLimitArg = limit
	return m.ListOrders_, m.ListTotal, m.ListErr
}

func (m *MockRepository) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.UpdateCalls++
	m.UpdatedStatus = status
	updated := *m.Order
	updated.Status = status
	return &updated, nil
}

func (m *MockRepository) ApplyPayment(_ context.Context, id uuid.UUID, chargeID, receiptURL string, paidAt time.Time) (*domain.Order, error) {
	if m.PaymentErr != nil {
		return nil, m.PaymentErr
	}
	m.PaymentCalls++
	m.ChargeIDArg = chargeID
	m.ReceiptArg = receiptURL
	paid := *m.Order
	paid.Status = domain.OrderStatusPaid
	paid.Paid = true
	paid.PaidAt = &paidAt
	paid.StripeChargeID = chargeID
	return &paid, nil
}

func (m *MockRepository) RunMigrations(*repository.Credentials) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

// MockCatalogGateway implements gateway.CatalogGateway for testing
type MockCatalogGateway struct {
	Products []gateway.Product
	Err      error
	Calls    int
	IDsArg   []int64
}

func (m *MockCatalogGateway) ValidateProducts(_ context.Context, ids []int64) ([]gateway.Product, error) {
	m.Calls++
	m.IDsArg = ids
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Products, nil
}

// MockPaymentGateway implements gateway.PaymentGateway for testing
type MockPaymentGateway struct {
	Session  json.RawMessage
	Err      error
	Calls    int
	OrderArg uuid.UUID
	CurArg   string
	ItemsArg []gateway.SessionItem
}

func (m *MockPaymentGateway) CreatePaymentSession(_ context.Context, orderID uuid.UUID, currency string, items []gateway.SessionItem) (json.RawMessage, error) {
	m.Calls++
	m.OrderArg = orderID
	m.CurArg = currency
	m.ItemsArg = items
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

// newTestOrderService creates a fully wired OrderServiceImpl for testing
func newTestOrderService(repo *MockRepository, catalog *MockCatalogGateway, payment *MockPaymentGateway) *OrderServiceImpl {
	return NewOrderService(repo, catalog, payment)
}
