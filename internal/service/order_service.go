package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/Nest-ms-1/orders-ms/internal/gateway"
	"github.com/Nest-ms-1/orders-ms/internal/repository"
	"github.com/google/uuid"
)

// Currency is fixed for every payment session; there is no multi-currency
// negotiation in this service.
const Currency = "usd"

const (
	defaultPage  = 1
	defaultLimit = 10
)

type CreateOrderResponse struct {
	Order          *domain.Order   `json:"order"`
	PaymentSession json.RawMessage `json:"paymentSession"`
}

type OrderService interface {
	Create(ctx context.Context, req *domain.CreateOrderRequest) (*CreateOrderResponse, error)
	FindAll(ctx context.Context, pagination *domain.OrderPagination) (*domain.PaginatedOrders, error)
	FindOne(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	PaidOrder(ctx context.Context, event *domain.PaidOrderEvent) error
}

type OrderServiceImpl struct {
	repo    repository.OrderRepository
	catalog gateway.CatalogGateway
	payment gateway.PaymentGateway
}

func NewOrderService(repo repository.OrderRepository, catalog gateway.CatalogGateway, payment gateway.PaymentGateway) *OrderServiceImpl {
	return &OrderServiceImpl{
		repo:    repo,
		catalog: catalog,
		payment: payment,
	}
}

// Create runs the order creation sequence: validate every referenced product
// against the catalog, snapshot prices and totals, persist the aggregate in
// one transaction, then open a payment session for it. Nothing is written
// unless validation succeeds; a payment failure after the write leaves the
// order PENDING without a session and surfaces the error.
func (s *OrderServiceImpl) Create(ctx context.Context, req *domain.CreateOrderRequest) (*CreateOrderResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order has no items: %w", ErrProductValidation)
	}

	ids := distinctProductIDs(req.Items)

	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	byID := make(map[int64]gateway.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("product %d not in catalog: %w", id, ErrProductValidation)
		}
	}

	var totalAmount float64
	var totalItems int
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product := byID[line.ProductID]
		totalAmount += product.Price * float64(line.Quantity)
		totalItems += line.Quantity
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
	}

	order := &domain.Order{
		ID:          uuid.New(),
		Status:      domain.OrderStatusPending,
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Items:       items,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// Display names are never stored; join them onto the response from the
	// catalog reply that just validated the order.
	for i := range order.Items {
		order.Items[i].Name = byID[order.Items[i].ProductID].Name
	}

	session, err := s.createPaymentSession(ctx, order)
	if err != nil {
		return nil, err
	}

	return &CreateOrderResponse{
		Order:          order,
		PaymentSession: session,
	}, nil
}

func (s *OrderServiceImpl) createPaymentSession(ctx context.Context, order *domain.Order) (json.RawMessage, error) {
	sessionItems := make([]gateway.SessionItem, 0, len(order.Items))
	for _, item := range order.Items {
		sessionItems = append(sessionItems, gateway.SessionItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	session, err := s.payment.CreatePaymentSession(ctx, order.ID, Currency, sessionItems)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentUnavailable, err)
	}
	return session, nil
}

// FindAll returns one page of bare order rows. Items and catalog names are
// not hydrated on listings.
func (s *OrderServiceImpl) FindAll(ctx context.Context, pagination *domain.OrderPagination) (*domain.PaginatedOrders, error) {
	page := pagination.Page
	if page <= 0 {
		page = defaultPage
	}
	limit := pagination.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var status *domain.OrderStatus
	if pagination.Status != "" {
		if !domain.ValidStatus(pagination.Status) {
			return nil, fmt.Errorf("status %q: %w", pagination.Status, ErrUnknownStatus)
		}
		status = &pagination.Status
	}

	orders, total, err := s.repo.ListOrders(ctx, status, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	// lastPage is duplicated as totalPage for backward compatibility with
	// existing callers of this contract.
	lastPage := (total + limit - 1) / limit
	return &domain.PaginatedOrders{
		Data: orders,
		Meta: domain.PaginationMeta{
			TotalPage: lastPage,
			Page:      page,
			LastPage:  lastPage,
		},
	}, nil
}

// FindOne loads the aggregate and resolves item display names live from the
// catalog. The catalog is the sole source of truth for names, so a failed
// resolution fails the read rather than returning nameless items.
func (s *OrderServiceImpl) FindOne(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, &OrderNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range order.Items {
		name, ok := names[order.Items[i].ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d missing from catalog reply: %w", order.Items[i].ProductID, ErrCatalogUnavailable)
		}
		order.Items[i].Name = name
	}

	return order, nil
}

// ChangeStatus is idempotent: requesting the order's current status returns
// it unchanged without a write. Any other known status value is applied
// unconditionally; there is no transition table.
func (s *OrderServiceImpl) ChangeStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, ErrUnknownStatus)
	}

	order, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		return order, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// PaidOrder applies a payment.succeeded notification. The store makes the
// whole change atomically and tolerates redelivery, so no status precheck is
// done here.
func (s *OrderServiceImpl) PaidOrder(ctx context.Context, event *domain.PaidOrderEvent) error {
	log.Printf("order paid: id=%s charge=%s", event.OrderID, event.StripePaymentID)

	_, err := s.repo.ApplyPayment(ctx, event.OrderID, event.StripePaymentID, event.ReceiptURL, time.Now().UTC())
	if errors.Is(err, repository.ErrOrderNotFound) {
		return &OrderNotFoundError{ID: event.OrderID}
	}
	if err != nil {
		return fmt.Errorf("apply payment: %w", err)
	}
	return nil
}

func distinctProductIDs(items []domain.CreateOrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
